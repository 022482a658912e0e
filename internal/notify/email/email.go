// Package email delivers HTML notifications over SMTP.
package email

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

// Config holds SMTP settings. An empty Host disables delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

var _ order.Notifier = (*Mailer)(nil)

// Mailer sends messages through an SMTP relay.
type Mailer struct {
	cfg  Config
	send sendFunc
}

// New creates a Mailer. When cfg.Host is empty messages are logged and
// dropped.
func New(cfg Config) (*Mailer, error) {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	m := &Mailer{cfg: cfg}
	if cfg.Host == "" {
		return m, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		return client.DialAndSendWithContext(ctx, msg)
	}
	return m, nil
}

// Enabled reports whether an SMTP relay is configured.
func (m *Mailer) Enabled() bool { return m.cfg.Host != "" }

// Send delivers an HTML message to a single recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	lg := zctx.From(ctx).With(zap.String("to", to), zap.String("subject", subject))
	if !m.Enabled() {
		lg.Info("SMTP not configured, dropping email")
		return nil
	}
	if to == "" {
		return errors.New("empty recipient")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "recipient")
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := m.send(ctx, msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	lg.Debug("Email sent")
	return nil
}
