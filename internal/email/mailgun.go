package email

import (
	"context"
	"errors"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/mercadorhq/mercador/internal/observability/logger"
)

// MailgunConfig configura el transporte de Mailgun.
type MailgunConfig struct {
	APIKey string
	Domain string
	From   string

	// Timeout por envío. Cero usa 30s.
	Timeout time.Duration
}

// MailgunSender entrega correos vía la API de Mailgun.
type MailgunSender struct {
	cfg MailgunConfig
	mg  *mailgun.MailgunImpl
}

// NewMailgun crea el sender de Mailgun validando la configuración.
func NewMailgun(cfg MailgunConfig) (*MailgunSender, error) {
	if cfg.APIKey == "" || cfg.Domain == "" || cfg.From == "" {
		return nil, errors.New("email: mailgun requires api key, domain and from address")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MailgunSender{
		cfg: cfg,
		mg:  mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
	}, nil
}

// Send entrega un correo multipart (texto + HTML).
func (s *MailgunSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	log := logger.From(ctx).With(
		logger.Component("email.mailgun"),
		logger.String("to", to),
		logger.String("subject", subject),
	)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	message := s.mg.NewMessage(s.cfg.From, subject, textBody, to)
	if htmlBody != "" {
		message.SetHtml(htmlBody)
	}

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		log.Error("mailgun send failed", logger.Err(err))
		return err
	}

	log.Info("email queued", logger.String("mailgun_id", id))
	return nil
}
