// Package runner executes external commands with a hard timeout and captures
// their combined output. Both the concatenation and audio stages depend only
// on this abstraction, so the backing tool can be swapped without touching them.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Result reports the outcome of one external command invocation.
type Result struct {
	ExitCode int
	Output   string // combined stdout+stderr
	TimedOut bool
}

type Runner struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

// Run executes name with args, bounded by timeout. On timeout the process is
// forcibly killed and Result.TimedOut is set. A nonzero exit is not an error
// at this layer; callers decide what exit codes mean.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := &Result{Output: combined.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		r.logger.Warn().
			Str("command", name).
			Dur("elapsed", elapsed).
			Dur("timeout", timeout).
			Msg("external process killed after timeout")
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.logger.Debug().
				Str("command", name).
				Int("exit_code", res.ExitCode).
				Dur("elapsed", elapsed).
				Msg("external process exited nonzero")
			return res, nil
		}
		// Could not start at all (binary missing, permission denied, ...)
		return nil, err
	}

	res.ExitCode = 0
	r.logger.Debug().
		Str("command", name).
		Dur("elapsed", elapsed).
		Msg("external process finished")
	return res, nil
}
