// Package notify sends transactional e-mails to customers.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// OrderConfirmation is the data rendered into the confirmation e-mail.
type OrderConfirmation struct {
	To       string
	Name     string
	OrderID  string
	Items    []domain.OrderItem
	Currency string
	Total    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{cfg: cfg, auth: auth, send: smtp.SendMail}
}

func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, c OrderConfirmation) error {
	subject := fmt.Sprintf("Order confirmation #%s", shortID(c.OrderID))
	if err := m.deliver(ctx, "order_confirmation.html", c.To, subject, c); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("order confirmation sent", zap.String("order_id", c.OrderID))
	return nil
}

// Welcome is the data rendered into the signup e-mail.
type Welcome struct {
	To        string
	Name      string
	Code      string
	ExpiresAt time.Time
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, w Welcome) error {
	if err := m.deliver(ctx, "welcome.html", w.To, "Welcome to RedClaw, confirm your e-mail", w); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("welcome mail sent", zap.String("to", w.To))
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, tmpl, to, subject string, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}
	msg := buildMessage(m.cfg.From, to, subject, body.Bytes())

	// net/smtp has no context support; give up before dialing if the caller is gone
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := m.send(addr, m.auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject string, html []byte) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(html)
	return b.Bytes()
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
