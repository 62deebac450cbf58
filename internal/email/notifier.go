package email

import (
	"context"
	"fmt"

	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// =================================================================================
// PURCHASE NOTIFIER
// =================================================================================

// PurchaseNotifier arma y envía la confirmación de compra. Implementa el
// Notifier que consume el servicio de checkout.
type PurchaseNotifier struct {
	sender   Sender
	renderer InvoiceRenderer
	profiles store.ProfileRepository
	products store.ProductRepository
}

// NewPurchaseNotifier crea el notifier.
func NewPurchaseNotifier(sender Sender, renderer InvoiceRenderer, profiles store.ProfileRepository, products store.ProductRepository) *PurchaseNotifier {
	if renderer == nil {
		renderer = NewInvoiceRenderer()
	}
	return &PurchaseNotifier{
		sender:   sender,
		renderer: renderer,
		profiles: profiles,
		products: products,
	}
}

// SendPurchaseConfirmation envía la licencia y la factura al comprador.
func (n *PurchaseNotifier) SendPurchaseConfirmation(ctx context.Context, order *store.Order, license *store.License) error {
	profile, err := n.profiles.GetByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("email: resolving buyer profile: %w", err)
	}

	// El nombre del producto es cosmético; si falla el lookup se usa el ID.
	product, err := n.products.GetByID(ctx, order.ProductID)
	if err != nil {
		logger.From(ctx).Warn("product lookup for invoice failed",
			logger.Component("email.notifier"),
			logger.ProductID(order.ProductID),
			logger.Err(err),
		)
		product = nil
	}

	htmlBody, textBody, err := n.renderer.Render(invoiceDataFor(order, product, license))
	if err != nil {
		return err
	}

	subject := "Tu compra en Mercador: licencia y factura"
	if err := n.sender.Send(ctx, profile.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("email: sending purchase confirmation: %w", err)
	}

	logger.From(ctx).Info("purchase confirmation sent",
		logger.Component("email.notifier"),
		logger.OrderID(order.ID),
		logger.Email(profile.Email),
	)
	return nil
}
