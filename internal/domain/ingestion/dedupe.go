package ingestion

import (
	"context"
	"fmt"

	"payalert/internal/domain/transaction"
)

// Gate checks whether a source message has already been recorded.
// The unique index on message_id remains the authoritative guard; this check
// only avoids needless model calls and inserts.
type Gate struct {
	repo transaction.Repository
}

func NewGate(repo transaction.Repository) *Gate {
	return &Gate{repo: repo}
}

// Seen reports whether a transaction exists for the message id.
// Messages without an id are never considered seen.
func (g *Gate) Seen(ctx context.Context, messageID *string) (bool, error) {
	if messageID == nil || *messageID == "" {
		return false, nil
	}
	exists, err := g.repo.ExistsByMessageID(ctx, *messageID)
	if err != nil {
		return false, fmt.Errorf("failed to check message id: %w", err)
	}
	return exists, nil
}
