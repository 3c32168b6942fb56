package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
)

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
}

type SMTPSender struct {
	config SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{config: cfg}
}

func (s *SMTPSender) Provider() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewEmailSendFailedError(s.Provider(), fmt.Errorf("context cancelled before sending email: %w", err))
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return apperrors.NewEmailSendFailedError(s.Provider(), fmt.Errorf("recipient contains a line break"))
	}

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.deliver(ctx, auth, msg.To, buildMessage(s.config.From, msg)); err != nil {
		return apperrors.NewEmailSendFailedError(s.Provider(), err)
	}
	return nil
}

// deliver runs one SMTP session. Every read and write is bounded by ctx.
func (s *SMTPSender) deliver(ctx context.Context, auth smtp.Auth, to string, msg []byte) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read SMTP greeting: %w", err)
	}
	defer client.Close()

	startTLS := s.config.UseTLS
	if !startTLS {
		startTLS, _ = client.Extension("STARTTLS")
	}
	if startTLS {
		if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// buildMessage renders RFC 5322 headers and a text or multipart body.
func buildMessage(from string, msg Message) []byte {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject)))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	b.WriteString("X-Priority: 1\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.Text)
		return []byte(b.String())
	}

	boundary := fmt.Sprintf("cakeshop-%d", time.Now().UnixNano())
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Text + "\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
