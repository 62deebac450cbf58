// Package licenses expone el listado de licencias del usuario.
package licenses

import (
	"net/http"
	"time"

	httperrors "github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/http/middlewares"
	licensessvc "github.com/mercadorhq/mercador/internal/licenses"
	"github.com/mercadorhq/mercador/internal/observability/logger"
)

// Controller maneja el endpoint de licencias.
type Controller struct {
	licenses licensessvc.Service
}

// NewController crea el controller de licencias.
func NewController(licenses licensessvc.Service) *Controller {
	return &Controller{licenses: licenses}
}

type licenseResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Key       string    `json:"key"`
	IssuedAt  time.Time `json:"issued_at"`
}

// List maneja GET /v1/licenses (requiere auth).
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	items, err := c.licenses.ListByUser(r.Context(), id.UserID)
	if err != nil {
		logger.From(r.Context()).Error("license list failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	out := make([]licenseResponse, 0, len(items))
	for _, l := range items {
		out = append(out, licenseResponse{
			ID:        l.ID,
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			Key:       l.Key,
			IssuedAt:  l.IssuedAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}
