// Package mailer delivers transactional email through a configurable transport.
package mailer

import (
	"context"
	"fmt"
	"net/mail"

	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	To       []mail.Address
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the transport named by cfg.Driver.
func New(cfg config.MailConfig, appName string, logger *zap.Logger) (Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	switch cfg.Driver {
	case config.MailDriverSMTP:
		if cfg.SMTPHost == "" || cfg.FromAddress == "" {
			return nil, fmt.Errorf("smtp not configured (SMTP_HOST/MAIL_FROM_ADDRESS)")
		}
		return NewSMTPMailer(cfg, from, appName), nil
	case config.MailDriverSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid not configured (SENDGRID_API_KEY)")
		}
		return NewSendGridMailer(cfg.SendGridAPIKey, from, appName), nil
	case config.MailDriverLog, "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

func subjectPrefix(appName string) string {
	if appName == "" {
		return ""
	}
	return "[" + appName + "] "
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer for development environments.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message envelope.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.Address)
	}
	m.logger.Info("email suppressed", zap.Strings("to", to), zap.String("subject", msg.Subject))
	return nil
}
