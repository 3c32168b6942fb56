// Package email sends order-assignment emails through SES or SMTP.
package email

import (
	"context"
	"fmt"

	"cakeshop-notifier/internal/common/config"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// NewSender selects the provider named in cfg. It returns nil, nil when
// email is disabled.
func NewSender(cfg config.NotificationConfig, ses SESService) (Sender, error) {
	switch cfg.Email.Provider {
	case "":
		return nil, nil
	case "ses":
		if ses == nil {
			return nil, fmt.Errorf("ses provider selected but no SES client available")
		}
		return NewSESSender(ses, cfg.Email.FromEmail), nil
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
			From:     cfg.Email.FromEmail,
		}), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}
