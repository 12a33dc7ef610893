package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/service"
)

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage tenant products",
		Long:  "Register, list, and remove products that map license keys to Roblox group whitelists.",
	}

	cmd.AddCommand(newProductAddCmd())
	cmd.AddCommand(newProductListCmd())
	cmd.AddCommand(newProductRemoveCmd())

	return cmd
}

// productService opens the store and wraps it in a ProductService for CLI
// use. Callers must Close the returned store.
func productService() (*config.Store, *service.ProductService, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return store, service.NewProductService(store, service.DefaultCacheTTL, logger), nil
}

// ---------- product add ----------

func newProductAddCmd() *cobra.Command {
	var (
		guildID string
		name    string
		apiKey  string
		groupID string
		roleID  string
		message string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a product for a Discord server",
		Example: `  groupgate product add --guild 123456789 --name "VIP Access" \
      --api-key ph_xxxxxxxx --group 7654321 --role 255`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, products, err := productService()
			if err != nil {
				return err
			}
			defer store.Close()

			p := &model.Product{
				GuildID: guildID,
				Name:    name,
				APIKey:  apiKey,
				GroupID: groupID,
				RoleID:  roleID,
				Message: message,
			}
			if err := products.Add(context.Background(), p); err != nil {
				return fmt.Errorf("add product: %w", err)
			}
			fmt.Printf("Registered product %q for guild %s\n", name, guildID)
			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "Discord guild ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Product name (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Licensing provider credential (required)")
	cmd.Flags().StringVar(&groupID, "group", "", "Roblox group ID (required)")
	cmd.Flags().StringVar(&roleID, "role", "", "Roblox role ID to assign")
	cmd.Flags().StringVar(&message, "message", "", "Custom message shown to buyers after redemption")
	cmd.MarkFlagRequired("guild")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("api-key")
	cmd.MarkFlagRequired("group")

	return cmd
}

// ---------- product list ----------

func newProductListCmd() *cobra.Command {
	var (
		guildID    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List products configured for a Discord server",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, products, err := productService()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := products.List(context.Background(), guildID)
			if err != nil {
				return fmt.Errorf("list products: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if len(list) == 0 {
				fmt.Println("No products configured. Use 'groupgate product add' to register one.")
				return nil
			}

			fmt.Printf("%-24s %-12s %-12s\n", "NAME", "GROUP", "ROLE")
			fmt.Printf("%-24s %-12s %-12s\n", "----", "-----", "----")
			for _, p := range list {
				fmt.Printf("%-24s %-12s %-12s\n", p.Name, p.GroupID, p.RoleID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "Discord guild ID (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("guild")

	return cmd
}

// ---------- product remove ----------

func newProductRemoveCmd() *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a product",
		Long:    "Remove a product and all whitelist entries granted through it.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, products, err := productService()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := products.Remove(context.Background(), guildID, args[0]); err != nil {
				return fmt.Errorf("remove product: %w", err)
			}
			fmt.Printf("Removed product %q from guild %s\n", args[0], guildID)
			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "Discord guild ID (required)")
	cmd.MarkFlagRequired("guild")

	return cmd
}
