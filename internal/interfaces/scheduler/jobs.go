package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"payalert/internal/domain/company"
	"payalert/internal/domain/ingestion"
)

// Pipeline is the two-phase ingestion entry point. Implemented by ingestion.Service.
type Pipeline interface {
	PollMailbox(ctx context.Context, companyID string, mb ingestion.Mailbox) (ingestion.BatchResult, error)
	ProcessPending(ctx context.Context, companyID string) (ingestion.BatchResult, error)
}

// StoredMailboxes opens a company mailbox from its stored credentials.
// Implemented by gmail.Mailboxes.
type StoredMailboxes interface {
	OpenStored(ctx context.Context, c *company.Company) (ingestion.Mailbox, error)
}

type CompanyLister interface {
	ListPollable(ctx context.Context) ([]*company.Company, error)
}

// StaleSweeper fails rows stuck in processing. Implemented by transaction.Service.
type StaleSweeper interface {
	SweepStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MailboxPollJob fetches a company's unread bank alerts and extracts them.
type MailboxPollJob struct {
	company   *company.Company
	mailboxes StoredMailboxes
	pipeline  Pipeline
}

func NewMailboxPollJob(c *company.Company, mailboxes StoredMailboxes, pipeline Pipeline) *MailboxPollJob {
	return &MailboxPollJob{company: c, mailboxes: mailboxes, pipeline: pipeline}
}

func (j *MailboxPollJob) Execute(ctx context.Context) error {
	mb, err := j.mailboxes.OpenStored(ctx, j.company)
	if err != nil {
		return fmt.Errorf("failed to open mailbox: %w", err)
	}

	result, err := j.pipeline.PollMailbox(ctx, j.company.ID, mb)
	if err != nil {
		return fmt.Errorf("mailbox poll failed: %w", err)
	}
	logBatch(ctx, "mailbox", result)
	return nil
}

func (j *MailboxPollJob) CompanyID() string { return j.company.ID }

func (j *MailboxPollJob) Description() string {
	return fmt.Sprintf("Mailbox poll for company %s", j.company.ID)
}

// PendingJob extracts placeholder rows still in status new.
type PendingJob struct {
	companyID string
	pipeline  Pipeline
}

func NewPendingJob(companyID string, pipeline Pipeline) *PendingJob {
	return &PendingJob{companyID: companyID, pipeline: pipeline}
}

func (j *PendingJob) Execute(ctx context.Context) error {
	result, err := j.pipeline.ProcessPending(ctx, j.companyID)
	if err != nil {
		return fmt.Errorf("pending extraction failed: %w", err)
	}
	logBatch(ctx, "pending", result)
	return nil
}

func (j *PendingJob) CompanyID() string { return j.companyID }

func (j *PendingJob) Description() string {
	return fmt.Sprintf("Pending extraction for company %s", j.companyID)
}

// CompanyPollJob polls the mailbox, then sweeps up any placeholders left
// behind by earlier rounds. The pending pass runs even if the poll fails.
type CompanyPollJob struct {
	poll    *MailboxPollJob
	pending *PendingJob
}

func NewCompanyPollJob(c *company.Company, mailboxes StoredMailboxes, pipeline Pipeline) *CompanyPollJob {
	return &CompanyPollJob{
		poll:    NewMailboxPollJob(c, mailboxes, pipeline),
		pending: NewPendingJob(c.ID, pipeline),
	}
}

func (j *CompanyPollJob) Execute(ctx context.Context) error {
	pollErr := j.poll.Execute(ctx)
	if ctx.Err() != nil {
		return errors.Join(pollErr, ctx.Err())
	}
	return errors.Join(pollErr, j.pending.Execute(ctx))
}

func (j *CompanyPollJob) CompanyID() string { return j.poll.CompanyID() }

func (j *CompanyPollJob) Description() string {
	return fmt.Sprintf("Mailbox poll and pending extraction for company %s", j.poll.CompanyID())
}

// StaleSweepJob fails rows left in processing past the threshold.
type StaleSweepJob struct {
	sweeper   StaleSweeper
	olderThan time.Duration
}

func NewStaleSweepJob(sweeper StaleSweeper, olderThan time.Duration) *StaleSweepJob {
	return &StaleSweepJob{sweeper: sweeper, olderThan: olderThan}
}

func (j *StaleSweepJob) Execute(ctx context.Context) error {
	n, err := j.sweeper.SweepStale(ctx, j.olderThan)
	if err != nil {
		return err
	}
	if n > 0 {
		zerolog.Ctx(ctx).Warn().Int64("failed", n).Msg("stale processing transactions marked failed")
	}
	return nil
}

func (j *StaleSweepJob) CompanyID() string { return "" }

func (j *StaleSweepJob) Description() string {
	return fmt.Sprintf("Stale sweep (older than %s)", j.olderThan)
}

func logBatch(ctx context.Context, source string, r ingestion.BatchResult) {
	log := zerolog.Ctx(ctx)
	event := log.Debug
	if r.Processed > 0 {
		event = log.Info
	}
	event().Str("source", source).
		Int("processed", r.Processed).
		Int("succeeded", r.Succeeded).
		Int("failed", r.Failed).
		Msg("batch finished")
}

// PollingJobs builds each scheduling round: one stale sweep plus one
// CompanyPollJob per active company with a connected mailbox.
type PollingJobs struct {
	companies  CompanyLister
	mailboxes  StoredMailboxes
	pipeline   Pipeline
	sweeper    StaleSweeper
	staleAfter time.Duration
}

// NewPollingJobs creates the provider. sweeper may be nil to skip the stale sweep.
func NewPollingJobs(companies CompanyLister, mailboxes StoredMailboxes, pipeline Pipeline, sweeper StaleSweeper, staleAfter time.Duration) *PollingJobs {
	return &PollingJobs{
		companies:  companies,
		mailboxes:  mailboxes,
		pipeline:   pipeline,
		sweeper:    sweeper,
		staleAfter: staleAfter,
	}
}

// Provide implements JobProvider.
func (p *PollingJobs) Provide(ctx context.Context) ([]Job, error) {
	companies, err := p.companies.ListPollable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable companies: %w", err)
	}

	jobs := make([]Job, 0, len(companies)+1)
	if p.sweeper != nil && p.staleAfter > 0 {
		jobs = append(jobs, NewStaleSweepJob(p.sweeper, p.staleAfter))
	}
	for _, c := range companies {
		jobs = append(jobs, NewCompanyPollJob(c, p.mailboxes, p.pipeline))
	}
	return jobs, nil
}
