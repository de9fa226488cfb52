package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"payalert/internal/domain/company"
	"payalert/internal/domain/transaction"
)

// BatchResult counts rows handled by a two-phase run.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type rowResult int

const (
	rowSkipped rowResult = iota
	rowSucceeded
	rowFailed
)

// rowTimeout bounds one claimed row. The model client applies its own
// shorter per-call timeout.
const rowTimeout = 2 * time.Minute

// PollMailbox claims unread mail into placeholder rows and extracts them.
func (s *Service) PollMailbox(ctx context.Context, companyID string, mb Mailbox) (BatchResult, error) {
	return s.RunBatch(ctx, companyID, s.MailboxSource(mb))
}

// ProcessPending extracts rows still in status new. Safe to repeat: rows leave
// status new on the first attempt.
func (s *Service) ProcessPending(ctx context.Context, companyID string) (BatchResult, error) {
	return s.RunBatch(ctx, companyID, s.PlaceholderSource())
}

// RunBatch runs phase A through the source and phase B over the claimed rows.
// Rows are processed sequentially; a failing row never stops the others.
func (s *Service) RunBatch(ctx context.Context, companyID string, src RawSource) (BatchResult, error) {
	var result BatchResult
	if companyID == "" {
		return result, ErrMissingCompanyID
	}
	if s.extractor == nil {
		return result, ErrNotConfigured
	}

	ctx, span := ingestTracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.String("company.id", companyID),
		attribute.String("ingest.source", src.Name()),
	))
	defer span.End()

	c, err := s.companies.Get(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	claim, err := src.Claim(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).Str("company_id", companyID).Str("source", src.Name()).Msg("batch claim failed")
		return result, err
	}
	result.Processed += claim.Failed
	result.Failed += claim.Failed

	for _, row := range claim.Rows {
		// Rows not yet claimed stay new for the next pending run.
		if ctx.Err() != nil {
			break
		}
		switch s.processClaimed(ctx, c, row) {
		case rowSucceeded:
			result.Processed++
			result.Succeeded++
		case rowFailed:
			result.Processed++
			result.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("batch.processed", result.Processed),
		attribute.Int("batch.succeeded", result.Succeeded),
		attribute.Int("batch.failed", result.Failed),
	)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "batch interrupted")
		s.log.Warn().Err(err).
			Str("company_id", companyID).
			Str("source", src.Name()).
			Int("processed", result.Processed).
			Int("claimed", len(claim.Rows)).
			Msg("batch interrupted, remaining rows left for the next run")
		return result, err
	}
	s.log.Info().
		Str("company_id", companyID).
		Str("source", src.Name()).
		Int("processed", result.Processed).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("batch finished")
	return result, nil
}

// processClaimed runs processRow detached from the batch deadline. Once a row
// is claimed it must reach completed or failed: statuses never move back to
// new, and a cancelled model call would otherwise fail a real payment.
func (s *Service) processClaimed(ctx context.Context, c *company.Company, row *transaction.Transaction) rowResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rowTimeout)
	defer cancel()
	return s.processRow(ctx, c, row)
}

// processRow is phase B for one row: claim it, extract, then complete or fail it.
func (s *Service) processRow(ctx context.Context, c *company.Company, row *transaction.Transaction) rowResult {
	log := s.log.With().Str("company_id", c.ID).Str("transaction_id", row.ID).Logger()

	claimed, err := s.txRepo.Transition(ctx, row.ID, transaction.StatusNew, transaction.StatusProcessing)
	if err != nil {
		log.Error().Err(err).Msg("failed to claim row")
		return s.countRow(ctx, rowFailed)
	}
	if !claimed {
		log.Debug().Msg("row no longer new, skipping")
		return rowSkipped
	}

	email := DecodeRaw(row.RawContent)
	if row.MessageID != nil {
		email.MessageID = *row.MessageID
	}

	if len(strings.TrimSpace(email.Body())) < s.cfg.MinContentLength {
		log.Info().Msg("raw content too short")
		return s.failRow(ctx, log, row.ID)
	}

	ext := s.extractor.Extract(ctx, email)
	if ext == nil {
		return s.failRow(ctx, log, row.ID)
	}

	_, err = s.txRepo.Complete(ctx, row.ID, ext.completeParams())
	if err != nil {
		log.Error().Err(err).Msg("failed to complete row")
		return s.failRow(ctx, log, row.ID)
	}

	log.Info().Str("amount", ext.Amount.StringFixed(2)).Msg("row completed")
	return s.countRow(ctx, rowSucceeded)
}

func (s *Service) failRow(ctx context.Context, log zerolog.Logger, id string) rowResult {
	if err := s.txRepo.Fail(ctx, id); err != nil {
		log.Error().Err(err).Msg("failed to mark row failed")
	}
	return s.countRow(ctx, rowFailed)
}

func (s *Service) countRow(ctx context.Context, r rowResult) rowResult {
	result := "succeeded"
	if r == rowFailed {
		result = "failed"
	}
	batchItems.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	outcomeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", "batch"),
		attribute.String("outcome", result),
	))
	return r
}
