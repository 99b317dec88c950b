package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ard-Skelling/autogen/internal/apperror"
)

// Proc is a handle to one running external process or container exec
// session. Terminate asks it to exit; Kill does not ask.
type Proc interface {
	Terminate() error
	Kill() error
}

// Bridge links a cancellation signal to a running Proc. One bridge is
// shared by all blocks of an executor; it holds no per-process state.
type Bridge struct {
	grace  time.Duration
	logger *slog.Logger
}

func NewBridge(grace time.Duration, logger *slog.Logger) *Bridge {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Bridge{grace: grace, logger: logger}
}

// Supervise blocks until done is closed (the process finished on its own)
// or ctx ends. On cancellation it terminates p, waits up to the grace
// period, force-kills, and still waits for done so that no launched process
// outlives the call that started it.
//
// Returns nil when the process finished, apperror.Cancelled when the caller
// cancelled, and context.DeadlineExceeded when a deadline fired.
func (b *Bridge) Supervise(ctx context.Context, p Proc, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	if err := p.Terminate(); err != nil {
		b.logger.Warn("terminate signal failed", slog.String("error", err.Error()))
	}

	select {
	case <-done:
	case <-time.After(b.grace):
		if err := p.Kill(); err != nil {
			b.logger.Warn("force kill failed", slog.String("error", err.Error()))
		}
		select {
		case <-done:
		case <-time.After(b.grace):
			// Should not happen: SIGKILL is not deliverable-but-ignorable.
			b.logger.Error("process still alive after force kill")
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return apperror.Cancelled()
}
