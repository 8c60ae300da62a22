package email

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of sending them.
// Useful for development and testing.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new log-based sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message details. The token is ignored.
func (s *LogSender) Send(ctx context.Context, _ string, msg *Message) error {
	to := make([]string, len(msg.To))
	for i, a := range msg.To {
		to[i] = a.Address
	}
	replyTo := ""
	if len(msg.ReplyTo) > 0 {
		replyTo = msg.ReplyTo[0].Address
	}

	s.logger.InfoContext(ctx, "email (log transport, not sent)",
		"to", to,
		"reply_to", replyTo,
		"subject", msg.Subject,
		"text", msg.TextBody,
	)
	return nil
}
