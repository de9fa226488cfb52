package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultWindow = 24 * time.Hour
	MaxWindow     = 7 * 24 * time.Hour
	listLimit     = 500
)

// Service contains the read-side and annotation logic used by dashboard viewers
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new transaction service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListRecent returns the company's transactions created within the window, newest first.
// A zero window means DefaultWindow.
func (s *Service) ListRecent(ctx context.Context, companyID string, window time.Duration) ([]*Transaction, error) {
	if companyID == "" {
		return nil, errors.New("company id is required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if window > MaxWindow {
		window = MaxWindow
	}

	txs, err := s.repo.ListByCompany(ctx, companyID, s.now().Add(-window), listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// Annotate sets or clears the human-entered item description.
// Only transactions owned by companyID can be annotated.
func (s *Service) Annotate(ctx context.Context, companyID, id string, description string) (*Transaction, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, fmt.Errorf("%w: max %d characters", ErrDescriptionTooLong, MaxDescriptionLength)
	}

	var desc *string
	if description != "" {
		desc = &description
	}

	tx, err := s.repo.UpdateDescription(ctx, id, companyID, desc)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrNotFound
	}
	return tx, nil
}

// SweepStale fails rows stuck in processing for longer than olderThan,
// typically left behind by a crash mid-batch. Rows never go back to new.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("stale threshold must be positive")
	}
	n, err := s.repo.FailStale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale transactions: %w", err)
	}
	return n, nil
}
