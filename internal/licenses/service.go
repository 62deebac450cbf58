package licenses

import (
	"context"
	"fmt"

	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// =================================================================================
// LICENSE SERVICE
// =================================================================================

// Deps son las dependencias del servicio de licencias.
type Deps struct {
	Licenses store.LicenseRepository
}

// Service emite y consulta licencias.
type Service interface {
	// IssueForOrder emite una licencia para una orden pagada. Es idempotente:
	// si la orden ya tiene licencias, devuelve la existente sin emitir otra.
	IssueForOrder(ctx context.Context, order *store.Order) (*store.License, error)

	// ListByUser lista las licencias de un usuario.
	ListByUser(ctx context.Context, userID string) ([]store.License, error)
}

type service struct {
	deps Deps
}

// New crea el servicio de licencias.
func New(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) IssueForOrder(ctx context.Context, order *store.Order) (*store.License, error) {
	log := logger.From(ctx).With(
		logger.Component("licenses.service"),
		logger.OrderID(order.ID),
	)

	// Idempotencia: una orden pagada emite exactamente una licencia.
	existing, err := s.deps.Licenses.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("listing licenses for order: %w", err)
	}
	if len(existing) > 0 {
		log.Info("license already issued for order", logger.Key(existing[0].Key))
		return &existing[0], nil
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	lic, err := s.deps.Licenses.Create(ctx, store.CreateLicenseInput{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		UserID:    order.UserID,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("creating license: %w", err)
	}

	log.Info("license issued",
		logger.ProductID(lic.ProductID),
		logger.UserID(lic.UserID),
	)
	return lic, nil
}

func (s *service) ListByUser(ctx context.Context, userID string) ([]store.License, error) {
	return s.deps.Licenses.ListByUser(ctx, userID)
}
