// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package mailer delivers notification emails for contact and quote
// inquiries. SMTP is used when configured; otherwise messages are logged.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"coursepress/internal/apperr"
)

// Message is a plain-text email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Notifier sends messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP sends mail through an SMTP relay using STARTTLS when offered.
type SMTP struct {
	client  *mail.Client
	from    string
	timeout time.Duration
}

// NewSMTP creates an SMTP notifier. Every send is bounded by timeout.
func NewSMTP(host string, port int, user, password, from string, timeout time.Duration) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{client: client, from: from, timeout: timeout}, nil
}

// Send delivers msg. The whole exchange (dial, TLS, auth, data) must finish
// within the configured timeout or ctx's deadline, whichever is sooner.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return apperr.Invalid("to", "is required")
	}
	m, err := s.compose(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(ctx, fmt.Errorf("send mail: %w", err))
	}
	return nil
}

func (s *SMTP) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, apperr.Unexpected(fmt.Errorf("sender %q: %w", s.from, err))
	}
	if err := m.To(msg.To); err != nil {
		return nil, apperr.Invalid("to", "is not a valid email address")
	}
	if msg.ReplyTo != "" {
		// The reply address comes from a public form; a bad one must not
		// stop the notification.
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			slog.Warn("reply-to address dropped", "error", err)
		}
	}
	m.Subject(sanitizeHeader(msg.Subject))
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// sanitizeHeader drops line breaks so user input cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func classify(ctx context.Context, err error) error {
	var ne net.Error
	if ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
		return apperr.Timeout(err)
	}
	return apperr.Unexpected(err)
}

// Log writes messages to the structured log instead of sending them.
// Used in development when no SMTP relay is configured.
type Log struct{}

func (Log) Send(_ context.Context, msg Message) error {
	slog.Info("email (not sent, smtp not configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"reply_to", msg.ReplyTo,
	)
	return nil
}
