package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access
type Repository interface {
	// Create inserts a new row. Returns ErrDuplicateMessage when the message id is already stored.
	Create(ctx context.Context, params CreateTransactionParams) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	// ListByCompany returns rows created at or after since, newest first.
	ListByCompany(ctx context.Context, companyID string, since time.Time, limit int) ([]*Transaction, error)
	ListByStatus(ctx context.Context, companyID string, status Status, limit int) ([]*Transaction, error)
	// Transition moves a row from one status to another only if it is still in from.
	// Returns false when the row was not in the expected status.
	Transition(ctx context.Context, id string, from, to Status) (bool, error)
	// Complete writes extracted fields and sets status completed. Only new or processing rows are touched.
	Complete(ctx context.Context, id string, params CompleteParams) (*Transaction, error)
	// Fail sets status failed on a new or processing row.
	Fail(ctx context.Context, id string) error
	UpdateDescription(ctx context.Context, id, companyID string, description *string) (*Transaction, error)
	// FailStale marks processing rows older than the cutoff as failed.
	FailStale(ctx context.Context, before time.Time) (int64, error)
}
