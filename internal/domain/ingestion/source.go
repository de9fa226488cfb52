package ingestion

import (
	"context"
	"errors"
	"fmt"

	"payalert/internal/domain/company"
	"payalert/internal/domain/transaction"
)

// Mailbox is a provider mailbox holding unread payment alerts.
// Implemented by gmail.Client.
type Mailbox interface {
	// ListUnread returns ids of unread payment-related messages, at most limit.
	ListUnread(ctx context.Context, limit int) ([]string, error)
	Fetch(ctx context.Context, id string) (*Email, error)
	MarkRead(ctx context.Context, id string) error
}

// RawSource supplies the status=new rows a two-phase batch extracts.
type RawSource interface {
	Name() string
	// Claim returns the rows to process. Failed counts candidates that could
	// not be turned into rows; an error aborts the whole batch.
	Claim(ctx context.Context, c *company.Company) (Claim, error)
}

type Claim struct {
	Rows   []*transaction.Transaction
	Failed int
}

// MailboxSource returns a source that fetches unread mail, stores each message
// as a placeholder row and marks it read before extraction runs.
func (s *Service) MailboxSource(mb Mailbox) RawSource {
	return &mailboxSource{svc: s, mailbox: mb}
}

// PlaceholderSource returns a source over rows already stored with status new.
func (s *Service) PlaceholderSource() RawSource {
	return &placeholderSource{svc: s}
}

type mailboxSource struct {
	svc     *Service
	mailbox Mailbox
}

func (m *mailboxSource) Name() string { return "mailbox" }

func (m *mailboxSource) Claim(ctx context.Context, c *company.Company) (Claim, error) {
	s := m.svc
	ids, err := m.mailbox.ListUnread(ctx, s.cfg.BatchSize)
	if err != nil {
		return Claim{}, fmt.Errorf("failed to list mailbox messages: %w", err)
	}

	filter := NewSenderFilter(company.AllowedSenders(c, s.cfg.DefaultSenders))
	var claim Claim
	for _, id := range ids {
		log := s.log.With().Str("company_id", c.ID).Str("mailbox_id", id).Logger()

		email, err := m.mailbox.Fetch(ctx, id)
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch message")
			claim.Failed++
			continue
		}

		// The verdict is final, so the message is marked read like any other
		// handled mail. Left unread it would fill a batch slot on every poll.
		if !filter.Allowed(email.From) {
			log.Info().Str("domain", ExtractDomain(email.From)).Msg("sender domain not allowed")
			m.markRead(ctx, id)
			continue
		}

		messageID := transaction.NormalizeMessageID(email.MessageID)
		seen, err := s.gate.Seen(ctx, messageID)
		if err != nil {
			log.Error().Err(err).Msg("dedupe check failed")
			claim.Failed++
			continue
		}
		if seen {
			log.Info().Msg("duplicate message skipped")
			m.markRead(ctx, id)
			continue
		}

		row, err := s.txRepo.Create(ctx, s.placeholderParams(c.ID, *email))
		if errors.Is(err, transaction.ErrDuplicateMessage) {
			log.Info().Msg("duplicate message skipped")
			m.markRead(ctx, id)
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to store placeholder")
			claim.Failed++
			continue
		}

		m.markRead(ctx, id)
		claim.Rows = append(claim.Rows, row)
	}
	return claim, nil
}

// markRead failures are not fatal: the stored message id keeps the
// message from being recorded twice on the next poll.
func (m *mailboxSource) markRead(ctx context.Context, id string) {
	if err := m.mailbox.MarkRead(ctx, id); err != nil {
		m.svc.log.Warn().Err(err).Str("mailbox_id", id).Msg("failed to mark message read")
	}
}

type placeholderSource struct {
	svc *Service
}

func (p *placeholderSource) Name() string { return "placeholder" }

func (p *placeholderSource) Claim(ctx context.Context, c *company.Company) (Claim, error) {
	rows, err := p.svc.txRepo.ListByStatus(ctx, c.ID, transaction.StatusNew, 0)
	if err != nil {
		return Claim{}, fmt.Errorf("failed to list new transactions: %w", err)
	}
	return Claim{Rows: rows}, nil
}
