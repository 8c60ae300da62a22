// Package api is the serverless entrypoint. The hosting platform calls
// Handler for every request routed to /api/contact.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/dukerupert/mailrelay/internal"
	"github.com/dukerupert/mailrelay/internal/bootstrap"
	"github.com/dukerupert/mailrelay/internal/domain"
)

var (
	once    sync.Once
	handler http.Handler
	initErr error
)

// setup builds the relay once per cold start. Configuration is read here and
// never again for the lifetime of the instance.
func setup() {
	cfg, err := internal.NewConfig(nil)
	if err != nil {
		initErr = domain.WrapError(err, domain.ECONFIG, "api.setup", "invalid configuration")
		slog.Error("relay initialization failed", "error", err)
		return
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	relay, err := bootstrap.New(cfg, logger, bootstrap.Options{})
	if err != nil {
		initErr = domain.Internal(err, "api.setup", "relay initialization failed")
		logger.Error("relay initialization failed", "error", err)
		return
	}

	handler = relay.Handler
	logger.Info("relay initialized for serverless")
}

// Handler is the entry point for serverless functions.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      false,
			"message": domain.ErrorMessage(initErr, os.Getenv("FALLBACK_CONTACT")),
		})
		return
	}

	handler.ServeHTTP(w, r)
}
