// Package checkout expone los endpoints de órdenes y el webhook de Wompi.
package checkout

import (
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	checkoutsvc "github.com/mercadorhq/mercador/internal/checkout"
	mercadorhttp "github.com/mercadorhq/mercador/internal/http"
	httperrors "github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/http/middlewares"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

const maxWebhookBodySize = 256 * 1024 // 256KB

// Controller maneja órdenes y eventos de pago.
type Controller struct {
	checkout checkoutsvc.Service
}

// NewController crea el controller de checkout.
func NewController(checkout checkoutsvc.Service) *Controller {
	return &Controller{checkout: checkout}
}

// ─── DTOs ───

type createOrderRequest struct {
	ProductID string `json:"product_id"`
}

type orderResponse struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func toOrderResponse(o *store.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		ProductID:   o.ProductID,
		Reference:   o.Reference,
		Status:      o.Status,
		AmountCents: o.AmountCents,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
	}
}

// ─── Handlers ───

// CreateOrder maneja POST /v1/orders (requiere auth).
func (c *Controller) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var req createOrderRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("product_id es obligatorio"))
		return
	}

	order, err := c.checkout.CreateOrder(r.Context(), id.UserID, req.ProductID)
	if err != nil {
		switch {
		case stderrors.Is(err, store.ErrNotFound), stderrors.Is(err, checkoutsvc.ErrProductInactive):
			httperrors.WriteError(w, httperrors.ErrProductNotFound)
		default:
			logger.From(r.Context()).Error("order creation failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder maneja GET /v1/orders/{id} (requiere auth).
func (c *Controller) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	order, err := c.checkout.GetOrder(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrOrderNotFound)
			return
		}
		logger.From(r.Context()).Error("order lookup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders maneja GET /v1/orders (requiere auth).
func (c *Controller) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	orders, err := c.checkout.ListOrders(r.Context(), id.UserID)
	if err != nil {
		logger.From(r.Context()).Error("order list failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// WompiWebhook maneja POST /v1/webhooks/wompi.
// Wompi reintenta los eventos no confirmados, así que los duplicados y los
// estados sin efecto responden 200; solo la firma inválida responde 403.
func (c *Controller) WompiWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("checkout.WompiWebhook"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest)
		return
	}
	defer r.Body.Close()

	result, err := c.checkout.HandleWompiEvent(ctx, body)
	if err != nil {
		switch {
		case stderrors.Is(err, checkoutsvc.ErrInvalidChecksum):
			log.Warn("wompi event with invalid checksum rejected")
			mercadorhttp.RecordWompiEvent("invalid_signature")
			httperrors.WriteError(w, httperrors.ErrInvalidSignature)

		case stderrors.Is(err, checkoutsvc.ErrUnknownOrder):
			log.Warn("wompi event for unknown reference")
			mercadorhttp.RecordWompiEvent("error")
			httperrors.WriteError(w, httperrors.ErrOrderNotFound)

		case stderrors.Is(err, checkoutsvc.ErrAmountMismatch):
			log.Warn("wompi event amount mismatch")
			mercadorhttp.RecordWompiEvent("error")
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("el monto del evento no coincide con la orden"))

		default:
			log.Error("wompi event processing failed", logger.Err(err))
			mercadorhttp.RecordWompiEvent("error")
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	if result.Processed {
		mercadorhttp.RecordWompiEvent("processed")
		if result.Status == store.OrderStatusPaid {
			mercadorhttp.RecordLicenseIssued()
		}
	} else {
		mercadorhttp.RecordWompiEvent("ignored")
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"reference": result.Reference,
		"status":    result.Status,
		"processed": result.Processed,
	})
}
