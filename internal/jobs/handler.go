package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/rs/zerolog"
)

// Executor parses and applies one instruction.
type Executor interface {
	Execute(ctx context.Context, text string) (*command.Parsed, command.Result, error)
}

// NewCommandHandler returns a JobHandler that runs each job's text through exec.
// Only the model call can fail a job; per-operation failures are part of the
// Result, so operations that were already applied are never replayed.
func NewCommandHandler(exec Executor, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job *CommandJob) error {
		log.Info().Str("job_id", job.JobID).Int("attempt", job.RetryCount+1).Msg("Processing command job")

		_, res, err := exec.Execute(ctx, job.Text)
		if err != nil {
			if errors.Is(err, llm.ErrDisabled) || errors.Is(err, llm.ErrNotConfigured) {
				return Permanent(fmt.Errorf("command job %s: %w", job.JobID, err))
			}
			return fmt.Errorf("command job %s: %w", job.JobID, err)
		}

		job.Result = &res
		log.Info().
			Str("job_id", job.JobID).
			Int("added", len(res.Added)).
			Int("updated", len(res.Updated)).
			Int("deleted", len(res.Deleted)).
			Int("failed", len(res.Failures)).
			Msg("Command job applied")
		return nil
	}
}
