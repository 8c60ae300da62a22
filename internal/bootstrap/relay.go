// Package bootstrap builds the relay's object graph from configuration. It is
// shared by the long-running server and the serverless entrypoint.
package bootstrap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dukerupert/mailrelay/internal"
	"github.com/dukerupert/mailrelay/internal/auth"
	"github.com/dukerupert/mailrelay/internal/email"
	"github.com/dukerupert/mailrelay/internal/handler"
	"github.com/dukerupert/mailrelay/internal/middleware"
	"github.com/dukerupert/mailrelay/internal/router"
	"github.com/dukerupert/mailrelay/internal/service"
	"github.com/dukerupert/mailrelay/internal/telemetry"
)

// ContactPath is the only route that accepts submissions.
const ContactPath = "/api/contact"

// Options tweak how the relay is assembled.
type Options struct {
	// ExposeMetrics mounts GET /metrics. Serverless deployments leave it off.
	ExposeMetrics bool

	// HTTPClient is used for mail API calls. Nil means a client with a 30s timeout.
	HTTPClient *http.Client

	// Tokens and Sender replace the transports chosen from configuration.
	// Tests use them to substitute fakes.
	Tokens auth.TokenSource
	Sender email.Sender
}

// Relay is the assembled application.
type Relay struct {
	Handler  http.Handler
	Service  service.RelayService
	Tokens   auth.TokenSource
	Missing  []string
	Registry *prometheus.Registry

	cleanup func()
}

// Close flushes telemetry. It is safe to call more than once.
func (r *Relay) Close() {
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
}

// New assembles the relay. Incomplete credentials do not fail here; they are
// logged once and every submission then answers with a configuration error.
func New(cfg *internal.Config, logger *slog.Logger, opts Options) (*Relay, error) {
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return nil, err
	}

	missing := cfg.Credentials.Missing(cfg.RequiresApp())
	if len(missing) > 0 {
		logger.Error("credential configuration incomplete, submissions will fail",
			"missing", missing,
			"credentials", cfg.Credentials,
		)
	} else {
		logger.Info("credential configuration loaded",
			"transport", cfg.Relay.Transport,
			"credentials", cfg.Credentials,
		)
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = NewTokenSource(cfg, logger)
	}
	sender := opts.Sender
	if sender == nil {
		sender = NewSender(cfg, opts.HTTPClient, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relayMetrics := telemetry.NewRelayMetrics(reg)
	httpMetrics := middleware.NewMetrics("mailrelay", reg, ContactPath, "/health", "/metrics")

	relay := service.NewRelayService(service.RelayConfig{
		Mailbox:         cfg.Credentials.MailboxAddress,
		Missing:         missing,
		HoneypotField:   cfg.Relay.HoneypotField,
		UpstreamTimeout: cfg.Relay.UpstreamTimeout,
	}, tokens, sender, relayMetrics, logger)

	contact := handler.NewContactHandler(relay, cfg.Relay.FallbackContact, logger)
	health := handler.NewHealthHandler(cfg.Relay.Transport, missing)

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.Recovery(logger, cfg.Relay.FallbackContact),
		httpMetrics.Middleware,
		telemetry.SentryMiddleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
	)

	api := r.Group(router.CORS(cfg.Relay.AllowedOrigins))
	api.Post(ContactPath, contact.Submit)
	api.Options(ContactPath, contact.Submit)
	api.Any(ContactPath, contact.MethodNotAllowed)

	r.Get("/health", health.Check)
	if opts.ExposeMetrics {
		r.Handle(http.MethodGet, "/metrics", httpMetrics.Handler())
	}

	return &Relay{
		Handler:  r,
		Service:  relay,
		Tokens:   tokens,
		Missing:  missing,
		Registry: reg,
		cleanup:  flushSentry,
	}, nil
}

// NewTokenSource picks the token source for the configured transport.
// A credential that cannot be built yields a source that always fails with
// the construction error, so the process still starts.
func NewTokenSource(cfg *internal.Config, logger *slog.Logger) auth.TokenSource {
	if !cfg.RequiresApp() {
		return auth.None{}
	}

	cred, err := auth.NewClientSecretCredential(auth.ClientSecret{
		TenantID:     cfg.Credentials.TenantID,
		ClientID:     cfg.Credentials.ClientID,
		ClientSecret: cfg.Credentials.ClientSecret,
	})
	if err != nil {
		logger.Warn("token source unavailable", "error", err)
		return auth.Unavailable{Err: err}
	}

	if cfg.Relay.TokenCache {
		return auth.NewCachedSource(cred, cfg.Graph.Scope, cfg.Relay.UpstreamTimeout)
	}
	return auth.NewCredentialSource(cred, cfg.Graph.Scope)
}

// NewSender picks the mail transport.
func NewSender(cfg *internal.Config, client *http.Client, logger *slog.Logger) email.Sender {
	switch cfg.Relay.Transport {
	case internal.TransportSMTP:
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     int(cfg.SMTP.Port),
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, logger)
	case internal.TransportLog:
		return email.NewLogSender(logger)
	default:
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		return email.NewGraphSender(cfg.Graph.APIRoot, client)
	}
}
