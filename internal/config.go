package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mail transports supported by the relay.
const (
	TransportGraph = "graph"
	TransportSMTP  = "smtp"
	TransportLog   = "log"
)

type Config struct {
	Env      string
	LogLevel string
	Port     uint16

	Credentials CredentialConfig
	Graph       GraphConfig
	SMTP        SMTPConfig
	Relay       RelayConfig
	Sentry      SentryConfig
}

// CredentialConfig is the app registration used to send mail.
// It is loaded once at startup and never mutated afterwards.
type CredentialConfig struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	MailboxAddress string
}

// GraphConfig holds the mail API endpoints.
type GraphConfig struct {
	APIRoot string
	Scope   string
}

// SMTPConfig is only used when MAIL_TRANSPORT=smtp (local development).
type SMTPConfig struct {
	Host     string
	Port     uint16
	Username string
	Password string
}

// RelayConfig controls request handling.
type RelayConfig struct {
	Transport       string
	FallbackContact string
	HoneypotField   string
	UpstreamTimeout time.Duration
	TokenCache      bool
	AllowedOrigins  []string
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// NewConfig loads configuration from .env files and the environment.
// Values already set on v (for example bound CLI flags) take precedence.
// A nil v uses a fresh viper instance.
//
// Missing credentials are not an error here: the relay starts and reports a
// configuration error on every request instead.
func NewConfig(v *viper.Viper) (*Config, error) {
	loadDotEnv()

	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Port:     v.GetUint16("PORT"),
		Credentials: CredentialConfig{
			TenantID:       strings.TrimSpace(v.GetString("TENANT_ID")),
			ClientID:       strings.TrimSpace(v.GetString("CLIENT_ID")),
			ClientSecret:   strings.TrimSpace(v.GetString("CLIENT_SECRET")),
			MailboxAddress: strings.TrimSpace(v.GetString("MAILBOX_ADDRESS")),
		},
		Graph: GraphConfig{
			APIRoot: strings.TrimSuffix(v.GetString("GRAPH_API_ROOT"), "/"),
			Scope:   v.GetString("GRAPH_SCOPE"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetUint16("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
		},
		Relay: RelayConfig{
			Transport:       strings.ToLower(v.GetString("MAIL_TRANSPORT")),
			FallbackContact: v.GetString("FALLBACK_CONTACT"),
			HoneypotField:   v.GetString("HONEYPOT_FIELD"),
			UpstreamTimeout: v.GetDuration("UPSTREAM_TIMEOUT"),
			TokenCache:      v.GetBool("TOKEN_CACHE"),
			AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Sentry: SentryConfig{
			DSN:              v.GetString("SENTRY_DSN"),
			Enabled:          v.GetBool("SENTRY_ENABLED"),
			Environment:      v.GetString("SENTRY_ENVIRONMENT"),
			Release:          v.GetString("SENTRY_RELEASE"),
			SampleRate:       v.GetFloat64("SENTRY_SAMPLE_RATE"),
			TracesSampleRate: v.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
			Debug:            v.GetBool("SENTRY_DEBUG"),
		},
	}

	if cfg.Relay.FallbackContact == "" {
		cfg.Relay.FallbackContact = cfg.Credentials.MailboxAddress
	}

	// Validate env
	if cfg.Env != "dev" && cfg.Env != "prod" {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	switch cfg.Relay.Transport {
	case TransportGraph, TransportSMTP, TransportLog:
	default:
		return nil, fmt.Errorf("MAIL_TRANSPORT must be one of graph, smtp, log (got %q)", cfg.Relay.Transport)
	}

	if cfg.Relay.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	if cfg.Relay.HoneypotField == "" {
		return nil, fmt.Errorf("HONEYPOT_FIELD must not be empty")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", 3000)
	v.SetDefault("GRAPH_API_ROOT", "https://graph.microsoft.com/v1.0")
	v.SetDefault("GRAPH_SCOPE", "https://graph.microsoft.com/.default")
	v.SetDefault("MAIL_TRANSPORT", TransportGraph)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("HONEYPOT_FIELD", "website")
	v.SetDefault("UPSTREAM_TIMEOUT", 10*time.Second)
	v.SetDefault("TOKEN_CACHE", true)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("SENTRY_ENABLED", false)
	v.SetDefault("SENTRY_ENVIRONMENT", "development")
	v.SetDefault("SENTRY_SAMPLE_RATE", 1.0)
	v.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.0)
}

// loadDotEnv tries .env in the working directory, then up to two parents.
func loadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	dir, _ := os.Getwd()
	for i := 0; i < 2; i++ {
		dir = filepath.Join(dir, "..")
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return
		}
	}
	slog.Default().Debug(".env file not found, using environment variables and defaults")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Missing returns the names of unset credential variables.
// Only the names are reported, never the values.
func (c CredentialConfig) Missing(requireApp bool) []string {
	var missing []string
	if requireApp {
		if c.TenantID == "" {
			missing = append(missing, "TENANT_ID")
		}
		if c.ClientID == "" {
			missing = append(missing, "CLIENT_ID")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "CLIENT_SECRET")
		}
	}
	if c.MailboxAddress == "" {
		missing = append(missing, "MAILBOX_ADDRESS")
	}
	return missing
}

// RequiresApp reports whether the transport authenticates with the app registration.
func (c *Config) RequiresApp() bool {
	return c.Relay.Transport == TransportGraph
}

// LogValue implements slog.LogValuer. Secrets are reduced to presence flags.
func (c CredentialConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("tenant_id_set", c.TenantID != ""),
		slog.Bool("client_id_set", c.ClientID != ""),
		slog.Bool("client_secret_set", c.ClientSecret != ""),
		slog.String("mailbox", MaskAddress(c.MailboxAddress)),
	)
}

// MaskAddress keeps the first character of the local part and the domain:
// "jane@example.com" becomes "j***@example.com".
func MaskAddress(addr string) string {
	if addr == "" {
		return ""
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
