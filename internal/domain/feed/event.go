package feed

import (
	"context"

	"payalert/internal/domain/transaction"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event is a change to a transaction row delivered to subscribers.
// Status and PrevStatus describe the write itself. Transaction is the row as
// loaded afterwards and may already reflect later writes.
type Event struct {
	Op          Op                       `json:"op"`
	Status      transaction.Status       `json:"status,omitempty"`
	PrevStatus  transaction.Status       `json:"prev_status,omitempty"`
	Transaction *transaction.Transaction `json:"transaction"`
}

// CompanyID returns the owning company of the changed row.
func (e Event) CompanyID() string {
	if e.Transaction == nil {
		return ""
	}
	return e.Transaction.CompanyID
}

// WrittenStatus is the status this change wrote, falling back to the loaded
// row when the event did not carry one.
func (e Event) WrittenStatus() transaction.Status {
	if e.Status != "" {
		return e.Status
	}
	if e.Transaction == nil {
		return ""
	}
	return e.Transaction.Status
}

// BecameCompleted reports whether this change moved the row into completed.
func (e Event) BecameCompleted() bool {
	if e.Transaction == nil || e.WrittenStatus() != transaction.StatusCompleted {
		return false
	}
	return e.Op == OpInsert || e.PrevStatus != transaction.StatusCompleted
}

// Sink receives change events.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes each event to every sink in order.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Publish(ctx, ev)
	}
}
