package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Runner executes long-running roster commands in the background. Their
// outcome reaches the coordinator as notices on the board; the runner
// only logs it.
type Runner struct {
	ctx    context.Context
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a runner whose commands inherit ctx
func NewRunner(ctx context.Context, logger *slog.Logger) *Runner {
	return &Runner{
		ctx:    ctx,
		logger: logger.With(slog.String("component", "command-runner")),
	}
}

// Go starts fn in its own goroutine
func (r *Runner) Go(command, coordinator string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger := r.logger.With(slog.String("command", command), slog.String("coordinator", coordinator))
		logger.Info("command started")
		err := fn(r.ctx)
		switch {
		case err == nil:
			logger.Info("command finished")
		case errors.Is(err, context.Canceled):
			logger.Info("command cancelled")
		default:
			logger.Warn("command failed", slog.Any("error", err))
		}
	}()
}

// Wait blocks until every started command has returned
func (r *Runner) Wait() {
	r.wg.Wait()
}
