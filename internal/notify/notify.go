package notify

import (
	"context"
	"log/slog"
	"time"
)

// Outcome describes a finished transfer attempt for the notification layer.
// Delivery is best effort: the ledger has already committed (or refused) by
// the time an Outcome is emitted.
type Outcome struct {
	TransactionID string    `json:"transaction_id,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	FromAccount   string    `json:"from_account"`
	ToAccount     string    `json:"to_account"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	TransferOutcome(ctx context.Context, o Outcome)
}

// LogNotifier writes outcomes to the structured log. It is the default when
// no message broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) TransferOutcome(_ context.Context, o Outcome) {
	n.logger.Info("transfer outcome",
		"transaction_id", o.TransactionID,
		"reference", o.Reference,
		"from_account", o.FromAccount,
		"to_account", o.ToAccount,
		"amount", o.Amount,
		"currency", o.Currency,
		"type", o.Type,
		"status", o.Status,
		"reason", o.Reason,
	)
}
