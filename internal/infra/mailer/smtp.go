package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/config"
	"bookstore-payments/internal/domain/ports/adapter"
)

var _ adapter.Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends transactional mail (purchase verified, purchase declined)
// over plain SMTP. Delivery is best-effort by contract: callers log failures
// and move on.
type SMTPMailer struct {
	cfg config.SMTPConfig
	log *zerolog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n"
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n%s\r\n%s",
		m.cfg.From, to, subject, mime, htmlBody))

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	m.log.Debug().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

var _ adapter.Mailer = (*NoopMailer)(nil)

// NoopMailer is the dev-mode stand-in when no SMTP host is configured.
type NoopMailer struct {
	log *zerolog.Logger
}

func NewNoopMailer(logger *zerolog.Logger) *NoopMailer {
	return &NoopMailer{log: logger}
}

func (m *NoopMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info().Str("to", to).Str("subject", subject).Msg("noop mail send")
	return nil
}
