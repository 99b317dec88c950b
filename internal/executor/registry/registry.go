// Package registry tracks live executor instances that hold external
// resources (containers) and tears them down when the process exits without
// the owner having released them. It is the safety net behind explicit
// Close calls, not a replacement for them.
package registry

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Registry is a process-wide set of closers awaiting teardown.
type Registry struct {
	mu      sync.Mutex
	entries map[io.Closer]struct{}
	logger  *slog.Logger

	hookOnce sync.Once
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[io.Closer]struct{}),
		logger:  logger,
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry. Executors register here on
// successful provisioning.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New(slog.Default())
	})
	return defaultReg
}

// Register adds c to the set of instances requiring teardown.
func (r *Registry) Register(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c] = struct{}{}
}

// Deregister removes c, typically after its explicit Close succeeded.
// Unknown closers are ignored.
func (r *Registry) Deregister(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, c)
}

// Len reports how many instances are still registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll tears down every registered instance, best-effort: a failure on
// one instance never prevents attempting the others. Each closed instance
// is deregistered regardless of outcome. The joined error is returned for
// logging; callers must not treat it as fatal.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	pending := make([]io.Closer, 0, len(r.entries))
	for c := range r.entries {
		pending = append(pending, c)
	}
	r.entries = make(map[io.Closer]struct{})
	r.mu.Unlock()

	var errs []error
	for _, c := range pending {
		if err := c.Close(); err != nil {
			r.logger.Error("teardown failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleSignals installs a once-only SIGINT/SIGTERM hook that runs CloseAll
// and then re-raises the signal with the default disposition, so the
// process still dies with the conventional exit status. Applications that
// manage shutdown themselves can skip this and defer CloseAll instead.
func (r *Registry) HandleSignals() {
	r.hookOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-ch
			r.logger.Info("shutdown signal received, tearing down executors",
				slog.String("signal", sig.String()),
			)
			_ = r.CloseAll()
			signal.Stop(ch)
			if s, ok := sig.(syscall.Signal); ok {
				_ = syscall.Kill(os.Getpid(), s)
			}
		}()
	})
}
