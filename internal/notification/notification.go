package notification

import (
	"context"
	"log/slog"
)

const (
	// KindBalanceChanged tells an account that a reward credit landed.
	KindBalanceChanged = "balance_changed"
	// KindGiftReceived tells an anchor that a viewer sent a gift.
	KindGiftReceived = "gift_received"
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Notifier delivers notifications to downstream systems. Delivery is best
// effort: callers log failures and move on.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. Used in development.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"body", message.Body,
		"amount", message.Amount,
		"currency", message.Currency,
	)
	return nil
}
