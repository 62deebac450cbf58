// Package catalog expone los endpoints del catálogo de productos.
package catalog

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	catalogsvc "github.com/mercadorhq/mercador/internal/catalog"
	httperrors "github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// Controller maneja los endpoints del catálogo.
type Controller struct {
	catalog catalogsvc.Service
}

// NewController crea el controller del catálogo.
func NewController(catalog catalogsvc.Service) *Controller {
	return &Controller{catalog: catalog}
}

// ─── DTOs ───

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Active      bool   `json:"active"`
}

type upsertProductRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Active      bool   `json:"active"`
}

func toProductResponse(p *store.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Active:      p.Active,
	}
}

// ─── Handlers públicos ───

// List maneja GET /v1/products (solo activos para el público).
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	products, err := c.catalog.List(r.Context(), true)
	if err != nil {
		logger.From(r.Context()).Error("product list failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Get maneja GET /v1/products/{idOrSlug}.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrSlug")

	// Los IDs son UUID; cualquier otra cosa se trata como slug.
	var (
		product *store.Product
		err     error
	)
	if looksLikeUUID(key) {
		product, err = c.catalog.GetByID(r.Context(), key)
	} else {
		product, err = c.catalog.GetBySlug(r.Context(), key)
	}
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrProductNotFound)
			return
		}
		logger.From(r.Context()).Error("product lookup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	if !product.Active {
		httperrors.WriteError(w, httperrors.ErrProductNotFound)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toProductResponse(product))
}

// ─── Handlers admin ───

// AdminList maneja GET /v1/admin/products (incluye inactivos).
func (c *Controller) AdminList(w http.ResponseWriter, r *http.Request) {
	products, err := c.catalog.List(r.Context(), false)
	if err != nil {
		logger.From(r.Context()).Error("admin product list failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Create maneja POST /v1/admin/products.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Slug == "" || req.PriceCents <= 0 || req.Currency == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("name, slug, price_cents y currency son obligatorios"))
		return
	}

	product, err := c.catalog.Create(r.Context(), store.CreateProductInput{
		Name:        req.Name,
		Slug:        strings.ToLower(req.Slug),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(req.Currency),
		Active:      req.Active,
	})
	if err != nil {
		logger.From(r.Context()).Error("product create failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update maneja PUT /v1/admin/products/{id}.
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req upsertProductRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.PriceCents <= 0 || req.Currency == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("name, price_cents y currency son obligatorios"))
		return
	}

	product, err := c.catalog.Update(r.Context(), id, store.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(req.Currency),
		Active:      req.Active,
	})
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrProductNotFound)
			return
		}
		logger.From(r.Context()).Error("product update failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete maneja DELETE /v1/admin/products/{id}.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.catalog.Delete(r.Context(), id); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrProductNotFound)
			return
		}
		logger.From(r.Context()).Error("product delete failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func looksLikeUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}
