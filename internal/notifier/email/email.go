// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

// Send delivers the alert as a plain-text mail. net/smtp has no context
// support, so ctx is only checked before dialing.
func (e *Email) Send(ctx context.Context, alert core.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sendEmail(alert.Message, e.formatAlert(alert))
}

func (e *Email) formatAlert(alert core.Alert) string {
	closeAt := ""
	if alert.CloseTime > 0 {
		closeAt = time.UnixMilli(alert.CloseTime).UTC().Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf(`%s

Strategy: %s
Symbol: %s
Direction: %s
Price: %.4f
Timeframe: %s
Candle close (UTC): %s
`,
		alert.Message,
		alert.Strategy,
		alert.Symbol,
		alert.Direction,
		alert.Price,
		alert.Timeframe,
		closeAt,
	)
}

func (e *Email) buildMessage(subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	))
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := e.sendMail(addr, auth, e.from, e.to, e.buildMessage(subject, body)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}
