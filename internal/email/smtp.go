package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/dukerupert/mailrelay/internal/domain"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - local catchers like Mailpit accept unauthenticated mail
	Password string // optional
}

// SMTPSender implements Sender using go-mail. It is meant for local
// development against a mail catcher; production traffic uses GraphSender.
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{config: config, logger: logger}
}

// Send delivers msg over SMTP. The token is ignored.
func (s *SMTPSender) Send(ctx context.Context, _ string, msg *Message) error {
	const op = "smtp.send"

	m, err := buildMsg(msg)
	if err != nil {
		return domain.Internal(err, op, "failed to build message")
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return domain.Internal(err, op, "failed to create SMTP client")
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return domain.Delivery(err, op, "SMTP delivery failed")
	}

	s.logger.Debug("smtp: message accepted", "host", s.config.Host, "port", s.config.Port)
	return nil
}

func buildMsg(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.FromFormat(msg.From.Name, msg.From.Address); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	for _, to := range msg.To {
		if err := m.AddToFormat(to.Name, to.Address); err != nil {
			return nil, fmt.Errorf("invalid to address: %w", err)
		}
	}
	if len(msg.ReplyTo) > 0 {
		rt := msg.ReplyTo[0]
		if err := m.ReplyToFormat(rt.Name, rt.Address); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)

	// Prefer HTML with text fallback, or just text
	if msg.HTMLBody != "" && msg.TextBody != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	} else if msg.HTMLBody != "" {
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}

// clientOptions returns go-mail client options based on configuration.
func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		// 25, and 1025 for Mailpit/MailHog
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}
