package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/model"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used by bot consumers to call the redemption API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		label     string
		rateLimit int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  groupgate key create --label "production bot"
  groupgate key create --label "staging bot" --rate-limit 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(label, rateLimit)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 120, "Redemption requests per minute allowed for this key")

	return cmd
}

func runKeyCreate(label string, rateLimit int) error {
	if rateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", rateLimit)
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Generate 32 random bytes, hex encode, prefix with "ggk_"
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Errorf("generate random key: %w", err)
	}
	rawKey := "ggk_" + hex.EncodeToString(randomBytes)

	keyHash := config.HashAPIKey(rawKey)

	// Use first 12 chars as prefix (ggk_ + 8 hex chars)
	keyPrefix := rawKey[:12]

	apiKey := &model.APIKey{
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Label:     label,
		RateLimit: rateLimit,
		IsActive:  true,
	}

	if err := store.CreateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", rawKey)
	fmt.Printf("  Rate limit: %d/min\n", rateLimit)
	if label != "" {
		fmt.Printf("  Label:      %s\n", label)
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		Prefix    string `json:"prefix"`
		Label     string `json:"label"`
		RateLimit int    `json:"rate_limit"`
		Active    bool   `json:"active"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		rows[i] = keyRow{
			Prefix:    k.KeyPrefix,
			Label:     k.Label,
			RateLimit: k.RateLimit,
			Active:    k.IsActive,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'groupgate key create' to create one.")
		return nil
	}

	fmt.Printf("%-16s %-24s %-12s %-8s\n", "PREFIX", "LABEL", "RATE/MIN", "ACTIVE")
	fmt.Printf("%-16s %-24s %-12s %-8s\n", "------", "-----", "--------", "------")
	for _, k := range rows {
		active := "yes"
		if !k.Active {
			active = "no"
		}
		fmt.Printf("%-16s %-24s %-12d %-8s\n", k.Prefix, k.Label, k.RateLimit, active)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	var matched *model.APIKey
	for i := range keys {
		if strings.HasPrefix(keys[i].KeyPrefix, prefix) {
			matched = &keys[i]
			break
		}
	}
	if matched == nil {
		return fmt.Errorf("no API key found with prefix %q", prefix)
	}

	if err := store.RevokeAPIKey(context.Background(), matched.ID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key with prefix %q\n", matched.KeyPrefix)
	return nil
}
