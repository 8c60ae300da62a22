package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mailrelay/internal/domain"
	"github.com/dukerupert/mailrelay/internal/form"
	"github.com/dukerupert/mailrelay/internal/middleware"
	"github.com/dukerupert/mailrelay/internal/service"
	"github.com/dukerupert/mailrelay/internal/telemetry"
)

// ThanksMessage is returned for sent and honeypot submissions alike so bots
// cannot tell the two apart.
const ThanksMessage = "Thanks! Your message has been sent."

// MethodNotAllowedMessage is returned for methods the contact route does not serve.
const MethodNotAllowedMessage = "Submissions must use POST."

// ContactResponse is the body of every /api/contact response.
type ContactResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ContactHandler relays contact-form posts.
type ContactHandler struct {
	relay           service.RelayService
	fallbackContact string
	logger          *slog.Logger
}

// NewContactHandler creates a new contact handler. fallbackContact is the
// address shown to visitors when delivery fails; it may be empty.
func NewContactHandler(relay service.RelayService, fallbackContact string, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{
		relay:           relay,
		fallbackContact: fallbackContact,
		logger:          logger,
	}
}

// Submit handles POST /api/contact.
//
// Response codes:
//   - 200: sent, or dropped by the honeypot
//   - 400: missing or oversized fields
//   - 500: configuration, token, delivery or unexpected failure
//
// Every outcome, panics included, ends in exactly one JSON response.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	responded := false
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		telemetry.CapturePanic(r.Context(), rec)
		err := domain.Internal(fmt.Errorf("panic: %v", rec), "contact.submit", "unexpected failure")
		if !responded {
			h.respondError(w, r, err)
			return
		}
		middleware.GetLogger(r.Context(), h.logger).Error("panic after response", "error", err)
	}()

	parsed := form.Parse(r)
	logger := middleware.GetLogger(r.Context(), h.logger)
	logger.Debug("contact form parsed", "encoding", parsed.Encoding.String(), "fields", len(parsed.Fields))

	_, err := h.relay.Submit(r.Context(), parsed.Fields)
	responded = true
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ContactResponse{OK: true, Message: ThanksMessage})
}

// MethodNotAllowed answers any method other than POST and OPTIONS on the
// contact route, keeping the JSON response shape.
func (h *ContactHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.GetLogger(r.Context(), h.logger).Info("contact method not allowed", "method", r.Method)
	w.Header().Set("Allow", "POST, OPTIONS")
	writeJSON(w, http.StatusMethodNotAllowed, ContactResponse{OK: false, Message: MethodNotAllowedMessage})
}

func (h *ContactHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := domain.ErrorCodeToHTTPStatus(code)
	logger := middleware.GetLogger(r.Context(), h.logger)

	attrs := []any{
		"error", err.Error(),
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
	}

	if status >= http.StatusInternalServerError {
		logger.Error("contact relay failed", attrs...)
		telemetry.CaptureError(r.Context(), err, map[string]any{"code": code, "op": domain.ErrorOp(err)})
	} else {
		logger.Info("contact submission rejected", attrs...)
	}

	writeJSON(w, status, ContactResponse{
		OK:      false,
		Message: domain.ErrorMessage(err, h.fallbackContact),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
