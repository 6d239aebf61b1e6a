// Package mail delivers outgoing email for the contact form.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends a Message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrDisabled is returned when no SMTP server or recipient is configured.
var ErrDisabled = errors.New("mail: delivery is not configured")

// SMTPConfig describes the outgoing server.
type SMTPConfig struct {
	Host     string
	Port     int
	UseSSL   bool
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP server. It dials a fresh connection
// per message; contact mail is rare.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Host == "" {
		return ErrDisabled
	}

	email, err := buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mail: creating SMTP client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return fmt.Errorf("mail: sending via %s: %w", m.cfg.Host, err)
	}

	m.logger.Info("mail sent",
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.UseSSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

// buildMessage converts msg into a go-mail message, validating addresses.
func buildMessage(msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrDisabled
	}

	email := gomail.NewMsg()
	if err := email.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", msg.From, err)
	}
	if err := email.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mail: invalid recipients: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := email.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("mail: invalid reply-to %q: %w", msg.ReplyTo, err)
		}
	}
	email.Subject(msg.Subject)
	email.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return email, nil
}
