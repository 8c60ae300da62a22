package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/mailrelay/internal/auth"
	"github.com/dukerupert/mailrelay/internal/domain"
	"github.com/dukerupert/mailrelay/internal/email"
	"github.com/dukerupert/mailrelay/internal/telemetry"
)

// DefaultUpstreamTimeout bounds each call to the identity provider and the mail API.
const DefaultUpstreamTimeout = 10 * time.Second

// RelayService turns a contact-form submission into one delivered email.
type RelayService interface {
	// Submit validates fields and relays them. A nil error means the
	// submission was either sent or silently dropped by the honeypot.
	Submit(ctx context.Context, fields map[string]string) (Outcome, error)
}

// Outcome is the disposition of a submission that did not fail.
type Outcome string

const (
	OutcomeSent     Outcome = telemetry.OutcomeSent
	OutcomeHoneypot Outcome = telemetry.OutcomeHoneypot
)

// RelayConfig is the immutable configuration of a RelayService.
type RelayConfig struct {
	// Mailbox sends and receives every message.
	Mailbox string

	// Missing names configuration variables that are unset. When non-empty,
	// every valid submission fails with ECONFIG before any upstream call.
	Missing []string

	HoneypotField   string
	UpstreamTimeout time.Duration
}

type relayService struct {
	config  RelayConfig
	tokens  auth.TokenSource
	sender  email.Sender
	metrics *telemetry.RelayMetrics
	logger  *slog.Logger
}

// NewRelayService creates a RelayService. metrics may be nil.
func NewRelayService(cfg RelayConfig, tokens auth.TokenSource, sender email.Sender, metrics *telemetry.RelayMetrics, logger *slog.Logger) RelayService {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.HoneypotField == "" {
		cfg.HoneypotField = domain.DefaultHoneypotField
	}
	cfg.Missing = append([]string(nil), cfg.Missing...)
	if logger == nil {
		logger = slog.Default()
	}

	return &relayService{
		config:  cfg,
		tokens:  tokens,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
	}
}

// Submit runs honeypot, validation, configuration check, token acquisition
// and delivery in that order, stopping at the first failure.
func (s *relayService) Submit(ctx context.Context, fields map[string]string) (outcome Outcome, err error) {
	const op = "relay.submit"

	defer func() {
		if err != nil {
			s.metrics.RecordSubmission(domain.ErrorCode(err))
			return
		}
		s.metrics.RecordSubmission(string(outcome))
	}()

	sub := domain.NewSubmission(fields, s.config.HoneypotField)

	if sub.IsBot() {
		s.logger.InfoContext(ctx, "honeypot tripped, submission dropped")
		return OutcomeHoneypot, nil
	}

	if err := sub.Validate(); err != nil {
		return "", err
	}

	if len(s.config.Missing) > 0 {
		s.logger.ErrorContext(ctx, "relay configuration incomplete", "missing", s.config.Missing)
		return "", domain.Config(op, "missing "+strings.Join(s.config.Missing, ", "))
	}

	token, err := s.token(ctx)
	if err != nil {
		return "", err
	}

	msg, err := email.Compose(sub, s.config.Mailbox)
	if err != nil {
		return "", domain.Internal(err, op, "failed to compose message")
	}

	if err := s.send(ctx, token, msg); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "contact message relayed", "has_phone", sub.Phone != "")
	return OutcomeSent, nil
}

func (s *relayService) token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	token, err := s.tokens.Token(ctx)
	s.metrics.ObserveUpstream(telemetry.CallToken, start, err)
	if err != nil {
		if !isDomainError(err) {
			return "", domain.Auth(err, "relay.token", "token acquisition failed")
		}
		return "", err
	}
	return token, nil
}

func (s *relayService) send(ctx context.Context, token string, msg *email.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	err := s.sender.Send(ctx, token, msg)
	s.metrics.ObserveUpstream(telemetry.CallSend, start, err)
	if err != nil {
		if !isDomainError(err) {
			return domain.Delivery(err, "relay.send", "mail delivery failed")
		}
		return err
	}
	return nil
}

func isDomainError(err error) bool {
	var e *domain.Error
	return errors.As(err, &e)
}
