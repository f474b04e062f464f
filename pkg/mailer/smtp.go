package mailer

import (
	"context"
	"crypto/tls"
	"net/mail"

	gomail "github.com/go-mail/mail/v2"

	"github.com/noah-isme/project-submission-api/pkg/config"
)

// SMTPMailer sends mail through an SMTP relay using STARTTLS.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   mail.Address
	prefix string
}

// NewSMTPMailer configures a dialer from cfg.
func NewSMTPMailer(cfg config.MailConfig, from mail.Address, appName string) *SMTPMailer {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass)
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.SMTPHost,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec
	}
	return &SMTPMailer{dialer: d, from: from, prefix: subjectPrefix(appName)}
}

// Send delivers msg. Messages without recipients are dropped.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(m.build(msg))
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetAddressHeader("From", m.from.Address, m.from.Name)
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, out.FormatAddress(addr.Address, addr.Name))
	}
	out.SetHeader("To", to...)
	out.SetHeader("Subject", m.prefix+msg.Subject)
	if msg.TextBody != "" {
		out.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			out.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		out.SetBody("text/html", msg.HTMLBody)
	}
	return out
}
