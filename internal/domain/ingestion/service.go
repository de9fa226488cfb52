package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"payalert/internal/domain/company"
	"payalert/internal/domain/transaction"
)

var (
	ErrNotConfigured    = errors.New("extraction model is not configured")
	ErrMissingCompanyID = errors.New("company_id is required")
)

// Outcome is the result of ingesting a single email in direct mode.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeSenderNotAllowed Outcome = "sender_domain_not_allowed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeNoPaymentData    Outcome = "no_payment_data_found"
)

const (
	DefaultBatchSize        = 10
	DefaultMinContentLength = 10
	maxRawContent           = 20000
)

// CompanyLookup resolves the company an email is ingested for.
type CompanyLookup interface {
	Get(ctx context.Context, id string) (*company.Company, error)
}

type Config struct {
	// DefaultSenders is the global bank domain allow-list.
	DefaultSenders   []string
	BatchSize        int
	MinContentLength int
	BodyLimit        int
}

type IngestRequest struct {
	CompanyID string
	Email     Email
}

type Result struct {
	Outcome     Outcome
	From        string
	Transaction *transaction.Transaction
}

// Service runs the email-to-transaction pipeline.
type Service struct {
	txRepo    transaction.Repository
	companies CompanyLookup
	extractor *Extractor
	gate      *Gate
	cfg       Config
	log       zerolog.Logger
	newID     func() string
}

// NewService creates the pipeline. extractor may be nil when no model is configured;
// every ingestion call then fails with ErrNotConfigured.
func NewService(txRepo transaction.Repository, companies CompanyLookup, extractor *Extractor, cfg Config, log zerolog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	return &Service{
		txRepo:    txRepo,
		companies: companies,
		extractor: extractor,
		gate:      NewGate(txRepo),
		cfg:       cfg,
		log:       log.With().Str("component", "ingestion").Logger(),
		newID:     uuid.NewString,
	}
}

// IngestEmail processes a webhook-delivered email in one pass:
// verify sender, dedupe, extract, then insert a completed row.
// Only configuration, lookup and persistence problems are returned as errors.
func (s *Service) IngestEmail(ctx context.Context, req IngestRequest) (*Result, error) {
	if req.CompanyID == "" {
		return nil, ErrMissingCompanyID
	}
	if s.extractor == nil {
		return nil, ErrNotConfigured
	}

	ctx, span := ingestTracer.Start(ctx, "ingest.email")
	defer span.End()

	c, err := s.companies.Get(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	email := req.Email
	messageID := transaction.NormalizeMessageID(email.MessageID)
	log := s.log.With().Str("company_id", c.ID).Str("message_id", email.MessageID).Logger()

	filter := NewSenderFilter(company.AllowedSenders(c, s.cfg.DefaultSenders))
	if !filter.Allowed(email.From) {
		log.Info().Str("domain", ExtractDomain(email.From)).Msg("sender domain not allowed")
		return s.outcome(ctx, &Result{Outcome: OutcomeSenderNotAllowed, From: email.From}), nil
	}

	seen, err := s.gate.Seen(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if seen {
		log.Info().Msg("duplicate message skipped")
		return s.outcome(ctx, &Result{Outcome: OutcomeDuplicate, From: email.From}), nil
	}

	ext := s.extractor.Extract(ctx, email)
	if ext == nil {
		log.Info().Msg("no payment data found")
		return s.outcome(ctx, &Result{Outcome: OutcomeNoPaymentData, From: email.From}), nil
	}

	tx, err := s.txRepo.Create(ctx, transaction.CreateTransactionParams{
		ID:         s.newID(),
		CompanyID:  c.ID,
		Amount:     ext.Amount,
		SenderName: ext.SenderName,
		BankSource: ext.BankSource,
		Status:     transaction.StatusCompleted,
		MessageID:  messageID,
		RawContent: truncateRunes(EncodeRaw(email), s.cfg.BodyLimit),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to store transaction")
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.StringFixed(2)).
		Msg("transaction recorded")
	return s.outcome(ctx, &Result{Outcome: OutcomeCompleted, From: email.From, Transaction: tx}), nil
}

func (s *Service) outcome(ctx context.Context, r *Result) *Result {
	outcomeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", "direct"),
		attribute.String("outcome", string(r.Outcome)),
	))
	return r
}

// placeholderParams builds a phase-A row: status new, no extracted data yet.
func (s *Service) placeholderParams(companyID string, email Email) transaction.CreateTransactionParams {
	return transaction.CreateTransactionParams{
		ID:         s.newID(),
		CompanyID:  companyID,
		Amount:     decimal.Zero,
		BankSource: transaction.UnknownBank,
		Status:     transaction.StatusNew,
		MessageID:  transaction.NormalizeMessageID(email.MessageID),
		RawContent: truncateRunes(EncodeRaw(email), maxRawContent),
	}
}
