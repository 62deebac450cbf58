// Package email envía notificaciones transaccionales (confirmaciones de
// compra con licencia y factura). Soporta dos transportes: Mailgun para
// prod y SMTP para dev/staging.
package email

import "context"

// Sender es el transporte de correo. Las implementaciones no deciden
// contenido, solo entregan.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Config selecciona y configura el transporte.
type Config struct {
	// Driver: "mailgun" | "smtp" | "noop"
	Driver string

	Mailgun MailgunConfig
	SMTP    SMTPConfig
}

// New construye el Sender según el driver configurado.
func New(cfg Config) (Sender, error) {
	switch cfg.Driver {
	case "mailgun":
		return NewMailgun(cfg.Mailgun)
	case "smtp":
		return NewSMTP(cfg.SMTP), nil
	default:
		return noopSender{}, nil
	}
}

// noopSender descarta correos. Útil en tests y entornos sin transporte.
type noopSender struct{}

func (noopSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	return nil
}
