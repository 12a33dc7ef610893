package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groupgate/groupgate/internal/config"
	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/service"
)

// ProductHandler manages per-tenant product configuration. All endpoints
// require admin authentication; the router enforces that before these
// handlers run.
type ProductHandler struct {
	products *service.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// createProductRequest is the payload for registering a product.
type createProductRequest struct {
	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
	GroupID string `json:"group_id"`
	RoleID  string `json:"role_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// updateProductRequest carries a partial product update. Only the fields
// present in the body are changed.
type updateProductRequest struct {
	APIKey  *string `json:"api_key,omitempty"`
	GroupID *string `json:"group_id,omitempty"`
	RoleID  *string `json:"role_id,omitempty"`
	Message *string `json:"message,omitempty"`
}

// Create registers a new product for a tenant.
// POST /api/v1/tenants/{guildID}/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var req createProductRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	p := &model.Product{
		GuildID: guildID,
		Name:    req.Name,
		APIKey:  req.APIKey,
		GroupID: req.GroupID,
		RoleID:  req.RoleID,
		Message: req.Message,
	}
	if err := h.products.Add(r.Context(), p); err != nil {
		writeProductError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusCreated, p)
}

// List returns all products configured for a tenant. Credentials are never
// included in the response.
// GET /api/v1/tenants/{guildID}/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	products, err := h.products.List(r.Context(), guildID)
	if err != nil {
		writeProductError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, products)
}

// Update applies a partial update to a product.
// PATCH /api/v1/tenants/{guildID}/products/{name}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	name := chi.URLParam(r, "name")

	var req updateProductRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	upd := model.ProductUpdate{
		APIKey:  req.APIKey,
		GroupID: req.GroupID,
		RoleID:  req.RoleID,
		Message: req.Message,
	}
	p, err := h.products.Update(r.Context(), guildID, name, upd)
	if err != nil {
		writeProductError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, p)
}

// Delete removes a product. Whitelist entries granted through it are
// removed with it.
// DELETE /api/v1/tenants/{guildID}/products/{name}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	name := chi.URLParam(r, "name")

	if err := h.products.Remove(r.Context(), guildID, name); err != nil {
		writeProductError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"message": "Product removed",
	})
}

// writeProductError maps product service errors onto HTTP status codes.
func writeProductError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *service.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		writeError(w, r, http.StatusBadRequest, cfgErr.Error())
	case errors.Is(err, service.ErrDuplicateProduct):
		writeError(w, r, http.StatusConflict, "A product with that name already exists")
	case errors.Is(err, config.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Product not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "Product operation failed")
	}
}
