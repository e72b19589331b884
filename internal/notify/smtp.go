package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
)

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a submission server, upgrading with
// STARTTLS when offered and authenticating with the sender credentials.
type SMTPMailer struct {
	cfg       config.SMTPConfig
	timeout   time.Duration
	tlsConfig *tls.Config
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:       cfg,
		timeout:   30 * time.Second,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	port := m.cfg.Port
	if port == 0 {
		port = config.DefaultSMTPPort
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTLSConfig(m.tlsConfig),
	}
	if m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Sender),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

// Send delivers msg. The whole conversation is bounded by ctx and the mailer timeout.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm, err := msg.mailMsg()
	if err != nil {
		return err
	}
	c, err := m.client()
	if err != nil {
		return m.fail(err, "invalid SMTP client settings")
	}

	if m.cfg.Password != "" {
		slog.Info("Logging into SMTP server", logfields.Recipient(m.cfg.Sender))
	}
	if err := c.DialAndSendWithContext(ctx, mm); err != nil {
		if errors.Is(err, mail.ErrPlainAuthNotSupported) {
			return ferrors.AuthError("SMTP authentication failed").
				WithCause(err).
				WithContext("host", m.cfg.Host).
				Build()
		}
		return m.fail(err, "failed to send mail")
	}

	for _, to := range msg.To {
		slog.Info("Sent failure notification", logfields.Recipient(to), logfields.Subject(msg.Subject))
	}
	return nil
}

func (m *SMTPMailer) fail(err error, msg string) error {
	return ferrors.NotifyError(msg).
		WithCause(err).
		WithContext("addr", m.cfg.Address()).
		Build()
}

// NotifyFailure builds and sends the failure mail for logPath. Delivery
// problems are logged and never returned.
func NotifyFailure(ctx context.Context, mailer Mailer, cfg config.SMTPConfig, logPath string, cause error) {
	if mailer == nil || !cfg.IsEnabled() {
		slog.Info("Failure notification disabled")
		return
	}
	msg, err := FailureMessage(cfg, logPath, cause)
	if err != nil {
		slog.Error("Unable to build failure notification", logfields.Error(err))
		return
	}
	slog.Info("Sending failure notification", logfields.Recipient(cfg.Receiver))
	if err := mailer.Send(ctx, msg); err != nil {
		slog.Error("Unable to send email", logfields.Error(err))
	}
}
