package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payalert/internal/interfaces/scheduler"
)

func TestProcessPendingCmd_RejectsBadFlags(t *testing.T) {
	tests := map[string][]string{
		"no companies":  {},
		"zero timeout":  {"--company-id", "c1", "--timeout", "0"},
		"negative time": {"--all", "--timeout", "-1m"},
		"no workers":    {"--company-id", "c1", "--workers", "0"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := processPendingCmd()
			cmd.SetArgs(args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			// Flag validation runs before any database connection is attempted.
			assert.Error(t, cmd.ExecuteContext(context.Background()))
		})
	}
}

func TestValidatePendingFlags(t *testing.T) {
	assert.NoError(t, validatePendingFlags([]string{"c1"}, false, 2, 5*time.Minute))
	assert.NoError(t, validatePendingFlags(nil, true, 1, time.Second))
	assert.ErrorContains(t, validatePendingFlags([]string{"c1"}, false, 2, 0), "--timeout")
}

func TestPendingSummary(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		submitted int
		stats     scheduler.PoolStats
		wantErr   bool
		wantText  string
	}{
		{"all succeeded", 3, 3, scheduler.PoolStats{Succeeded: 3}, false, "for 3 of 3 companies (0 failed, 0 not run, 0 not queued)"},
		{"one failed", 3, 3, scheduler.PoolStats{Succeeded: 2, Failed: 1}, true, "(1 failed, 0 not run, 0 not queued)"},
		{"cancelled before running", 3, 3, scheduler.PoolStats{Succeeded: 1}, true, "(0 failed, 2 not run, 0 not queued)"},
		{"queue rejected some", 3, 2, scheduler.PoolStats{Succeeded: 2}, true, "(0 failed, 0 not run, 1 not queued)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := pendingSummary(tt.total, tt.submitted, tt.stats)
			assert.Contains(t, summary, tt.wantText)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
