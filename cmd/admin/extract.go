package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"payalert/internal/interfaces/scheduler"
)

func processPendingCmd() *cobra.Command {
	var (
		companyIDs []string
		all        bool
		workers    int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "process-pending",
		Short:   "Run LLM extraction on placeholder transactions still in status new",
		Example: `  admin process-pending --company-id 6f1c...
  admin process-pending --all --workers 4 --timeout 10m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePendingFlags(companyIDs, all, workers, timeout); err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			companies, err := e.companies()
			if err != nil {
				return err
			}
			pipeline, err := e.pipeline(ctx, companies)
			if err != nil {
				return err
			}

			if all {
				pollable, err := companies.ListPollable(ctx)
				if err != nil {
					return err
				}
				companyIDs = companyIDs[:0]
				for _, c := range pollable {
					companyIDs = append(companyIDs, c.ID)
				}
			}
			if len(companyIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No companies to process")
				return nil
			}

			pool := scheduler.NewWorkerPool(scheduler.PoolConfig{
				Workers:    workers,
				JobTimeout: timeout,
				QueueSize:  len(companyIDs),
			}, e.log)
			pool.Start()

			jobs := make([]scheduler.Job, 0, len(companyIDs))
			for _, id := range companyIDs {
				jobs = append(jobs, scheduler.NewPendingJob(id, pipeline))
			}
			submitted := pool.SubmitBatch(jobs)

			// Each worker runs its share of companies back to back.
			rounds := (submitted + workers - 1) / workers
			pool.ShutdownWithTimeout(time.Duration(rounds+1) * timeout)

			summary, err := pendingSummary(len(companyIDs), submitted, pool.Stats())
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&companyIDs, "company-id", nil, "Company IDs to process")
	cmd.Flags().BoolVar(&all, "all", false, "Process every active company with a connected mailbox")
	cmd.Flags().IntVar(&workers, "workers", 2, "Concurrent extraction workers")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Per-company timeout")
	cmd.MarkFlagsMutuallyExclusive("company-id", "all")

	return cmd
}

func validatePendingFlags(companyIDs []string, all bool, workers int, timeout time.Duration) error {
	switch {
	case !all && len(companyIDs) == 0:
		return errors.New("either --company-id or --all is required")
	case workers < 1:
		return fmt.Errorf("--workers must be at least 1, got %d", workers)
	case timeout <= 0:
		return fmt.Errorf("--timeout must be positive, got %s", timeout)
	}
	return nil
}

// pendingSummary describes a process-pending run. Jobs that failed or never
// ran make the command fail.
func pendingSummary(total, submitted int, stats scheduler.PoolStats) (string, error) {
	notRun := int64(submitted) - stats.Succeeded - stats.Failed
	summary := fmt.Sprintf("Processed pending transactions for %d of %d companies (%d failed, %d not run, %d not queued)",
		stats.Succeeded, total, stats.Failed, notRun, total-submitted)

	if stats.Failed > 0 || notRun > 0 || submitted < total {
		return summary, fmt.Errorf("%d of %d companies were not processed", int64(total)-stats.Succeeded, total)
	}
	return summary, nil
}

func failStaleCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "fail-stale",
		Short: "Mark transactions stuck in processing as failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if olderThan <= 0 {
				olderThan = e.cfg.Ingestion.StaleAfter
			}
			n, err := e.transactions().SweepStale(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d transactions failed (processing for more than %s)\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold; defaults to INGEST_STALE_AFTER")

	return cmd
}
