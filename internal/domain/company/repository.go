package company

import "context"

// Repository defines the interface for company data access
type Repository interface {
	Create(ctx context.Context, rec CreateRecord) (*Company, error)
	// GetByID returns nil, nil when no company matches.
	GetByID(ctx context.Context, id string) (*Company, error)
	GetByCode(ctx context.Context, code string) (*Company, error)
	// ListPollable returns active companies with a stored mailbox token.
	ListPollable(ctx context.Context) ([]*Company, error)
	SetMailboxToken(ctx context.Context, id, encryptedToken string) error
	SetSystemActive(ctx context.Context, id string, active bool) error
}
