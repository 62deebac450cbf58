package checkout

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mercadorhq/mercador/internal/licenses"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// =================================================================================
// CHECKOUT SERVICE
// =================================================================================

// Errores del servicio de checkout.
var (
	ErrProductInactive = stderrors.New("checkout: product is not active")
	ErrUnknownOrder    = stderrors.New("checkout: no order for reference")
	ErrAmountMismatch  = stderrors.New("checkout: event amount does not match order")
)

// Notifier envía la confirmación de compra al cliente. La implementación
// real vive en internal/email.
type Notifier interface {
	SendPurchaseConfirmation(ctx context.Context, order *store.Order, license *store.License) error
}

// Deps son las dependencias del servicio.
type Deps struct {
	Orders   store.OrderRepository
	Products store.ProductRepository
	Licenses licenses.Service
	Notifier Notifier

	// WompiEventsSecret firma los eventos entrantes del webhook.
	WompiEventsSecret string
}

// EventResult resume qué pasó con un evento de webhook.
type EventResult struct {
	Reference string
	OrderID   string
	Status    string
	// Processed es false cuando el evento se ignoró (duplicado o estado sin efecto).
	Processed bool
}

// Service crea órdenes y procesa los eventos de pago.
type Service interface {
	// CreateOrder crea una orden PENDING para un producto activo y devuelve
	// la referencia que el frontend pasa al widget de pago.
	CreateOrder(ctx context.Context, userID, productID string) (*store.Order, error)

	// HandleWompiEvent valida la firma y aplica la transición de estado.
	// Es idempotente por referencia: reentregas del mismo evento no
	// duplican licencias ni correos.
	HandleWompiEvent(ctx context.Context, body []byte) (*EventResult, error)

	// GetOrder devuelve una orden del usuario.
	GetOrder(ctx context.Context, userID, orderID string) (*store.Order, error)

	// ListOrders lista las órdenes del usuario.
	ListOrders(ctx context.Context, userID string) ([]store.Order, error)
}

type service struct {
	deps Deps
}

// New crea el servicio de checkout.
func New(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) CreateOrder(ctx context.Context, userID, productID string) (*store.Order, error) {
	product, err := s.deps.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductInactive
	}

	// La referencia viaja a Wompi y vuelve en el evento; debe ser única.
	reference := newReference()

	order, err := s.deps.Orders.Create(ctx, store.CreateOrderInput{
		UserID:      userID,
		ProductID:   product.ID,
		Reference:   reference,
		AmountCents: product.PriceCents,
		Currency:    product.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	logger.From(ctx).Info("order created",
		logger.Component("checkout.service"),
		logger.OrderID(order.ID),
		logger.UserID(userID),
		logger.ProductID(product.ID),
		logger.Reference(reference),
	)
	return order, nil
}

func (s *service) HandleWompiEvent(ctx context.Context, body []byte) (*EventResult, error) {
	event, err := ParseWompiEvent(body)
	if err != nil {
		return nil, err
	}

	// Paso 1: firma. Un checksum inválido se rechaza antes de tocar la DB.
	if err := event.VerifyChecksum(s.deps.WompiEventsSecret); err != nil {
		return nil, err
	}

	tx := event.Data.Transaction
	log := logger.From(ctx).With(
		logger.Component("checkout.service"),
		logger.Reference(tx.Reference),
		logger.String("wompi_status", tx.Status),
	)

	// Paso 2: la referencia debe corresponder a una orden nuestra.
	order, err := s.deps.Orders.GetByReference(ctx, tx.Reference)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownOrder
		}
		return nil, fmt.Errorf("looking up order by reference: %w", err)
	}

	result := &EventResult{Reference: tx.Reference, OrderID: order.ID, Status: order.Status}

	// Paso 3: idempotencia. Las órdenes terminales no se tocan de nuevo.
	if order.Status != store.OrderStatusPending {
		log.Info("event ignored, order already in terminal state",
			logger.OrderID(order.ID),
			logger.String("order_status", order.Status),
		)
		return result, nil
	}

	// Paso 4: el monto del evento debe cuadrar con la orden.
	if tx.AmountInCents != order.AmountCents || !strings.EqualFold(tx.Currency, order.Currency) {
		return nil, ErrAmountMismatch
	}

	// Paso 5: transición de estado.
	switch tx.Status {
	case WompiStatusApproved:
		return s.markPaid(ctx, log, order, result)
	case WompiStatusDeclined, WompiStatusError:
		if err := s.deps.Orders.SetStatus(ctx, order.ID, store.OrderStatusDeclined, nil); err != nil {
			return nil, fmt.Errorf("marking order declined: %w", err)
		}
		result.Status = store.OrderStatusDeclined
		result.Processed = true
		log.Info("order declined", logger.OrderID(order.ID))
		return result, nil
	case WompiStatusVoided:
		if err := s.deps.Orders.SetStatus(ctx, order.ID, store.OrderStatusVoided, nil); err != nil {
			return nil, fmt.Errorf("marking order voided: %w", err)
		}
		result.Status = store.OrderStatusVoided
		result.Processed = true
		log.Info("order voided", logger.OrderID(order.ID))
		return result, nil
	default:
		log.Warn("unknown transaction status, event ignored")
		return result, nil
	}
}

// markPaid marca la orden como pagada, emite la licencia y notifica.
// La notificación es best-effort: el correo no puede revertir el pago.
func (s *service) markPaid(ctx context.Context, log *zap.Logger, order *store.Order, result *EventResult) (*EventResult, error) {
	now := time.Now().UTC()
	if err := s.deps.Orders.SetStatus(ctx, order.ID, store.OrderStatusPaid, &now); err != nil {
		return nil, fmt.Errorf("marking order paid: %w", err)
	}
	order.Status = store.OrderStatusPaid
	order.PaidAt = &now

	license, err := s.deps.Licenses.IssueForOrder(ctx, order)
	if err != nil {
		// La orden ya está PAID; la licencia puede reintentarse con una
		// reentrega del evento (IssueForOrder es idempotente).
		return nil, fmt.Errorf("issuing license for paid order: %w", err)
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.SendPurchaseConfirmation(ctx, order, license); err != nil {
			log.Warn("purchase confirmation email failed", logger.Err(err), logger.OrderID(order.ID))
		}
	}

	result.Status = store.OrderStatusPaid
	result.Processed = true
	log.Info("order paid and license issued", logger.OrderID(order.ID))
	return result, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID string) (*store.Order, error) {
	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Una orden ajena se reporta como inexistente, no como prohibida.
	if order.UserID != userID {
		return nil, store.ErrNotFound
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID string) ([]store.Order, error) {
	return s.deps.Orders.ListByUser(ctx, userID)
}

// newReference genera una referencia de pago única.
func newReference() string {
	return "mercador-" + uuid.NewString()
}
