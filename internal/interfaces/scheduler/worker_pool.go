package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("payalert/scheduler")
	jobMeter           = otel.Meter("payalert/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

var (
	ErrQueueFull     = errors.New("job queue full")
	ErrPoolClosed    = errors.New("worker pool is shut down")
	ErrAlreadyQueued = errors.New("a job for this company is already queued or running")
)

const (
	defaultJobTimeout = 2 * time.Minute
	defaultQueueSize  = 100
	// batchOverhead covers the mailbox and database round trips of a batch.
	batchOverhead = time.Minute
)

// BatchJobTimeout sizes the deadline of a company poll job. The job runs a
// mailbox batch and then a pending batch, each making up to batchSize
// sequential model calls bounded by perCall.
func BatchJobTimeout(batchSize int, perCall time.Duration) time.Duration {
	if perCall <= 0 {
		return defaultJobTimeout
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return time.Duration(2*batchSize)*perCall + batchOverhead
}

// PoolStats counts jobs the pool has finished running.
type PoolStats struct {
	Succeeded int64
	Failed    int64
}

type PoolConfig struct {
	Workers int
	// JobDelay is a pause after each job, spacing calls to the mail and model APIs.
	JobDelay   time.Duration
	JobTimeout time.Duration
	QueueSize  int
}

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	log         zerolog.Logger

	mu       sync.Mutex
	closed   bool
	inFlight map[string]struct{}

	succeeded atomic.Int64
	failed    atomic.Int64
}

func NewWorkerPool(cfg PoolConfig, log zerolog.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: cfg.Workers,
		jobDelay:    cfg.JobDelay,
		jobTimeout:  cfg.JobTimeout,
		jobs:        make(chan Job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		log:         log.With().Str("component", "worker_pool").Logger(),
		inFlight:    make(map[string]struct{}),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)
			wp.release(job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processJob executes a single job with a timeout, logging and telemetry.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	log := wp.log.With().
		Int("worker_id", workerID).
		Str("company_id", job.CompanyID()).
		Str("job", job.Description()).
		Logger()

	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()
	ctx = log.WithContext(ctx)

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.company_id", job.CompanyID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		wp.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}

	wp.succeeded.Add(1)
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.Debug().Dur("duration", time.Since(start)).Msg("job completed")
}

// Stats reports how many jobs have finished so far.
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{Succeeded: wp.succeeded.Load(), Failed: wp.failed.Load()}
}

// Submit queues a job without blocking. A company already queued or running
// is rejected with ErrAlreadyQueued.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return ErrPoolClosed
	}
	key := job.CompanyID()
	if key != "" {
		if _, busy := wp.inFlight[key]; busy {
			return ErrAlreadyQueued
		}
	}

	select {
	case wp.jobs <- job:
		if key != "" {
			wp.inFlight[key] = struct{}{}
		}
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return ErrQueueFull
	}
}

func (wp *WorkerPool) release(job Job) {
	if key := job.CompanyID(); key != "" {
		wp.mu.Lock()
		delete(wp.inFlight, key)
		wp.mu.Unlock()
	}
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			event := wp.log.Warn
			if errors.Is(err, ErrAlreadyQueued) {
				event = wp.log.Debug
			}
			event().Err(err).Str("company_id", job.CompanyID()).Str("job", job.Description()).Msg("job not submitted")
			continue
		}
		submitted++
	}
	wp.log.Info().Int("submitted", submitted).Int("total", len(jobs)).Msg("jobs submitted")
	return submitted
}

// ShutdownWithTimeout stops accepting jobs and waits for queued jobs to drain.
// Running jobs are cancelled once the timeout passes.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobs)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info().Msg("worker pool drained")
	case <-time.After(timeout):
		wp.log.Warn().Dur("timeout", timeout).Msg("worker pool shutdown timed out, cancelling running jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
