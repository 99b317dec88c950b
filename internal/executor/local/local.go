// Package local runs code blocks as host subprocesses.
//
// Isolation is limited to the process boundary and, when configured, a
// virtual-environment overlay on the child environment. It does not sandbox
// filesystem or network access; callers that need that use the docker
// backend.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/Ard-Skelling/autogen/internal/apperror"
	"github.com/Ard-Skelling/autogen/internal/executor"
)

// VirtualEnv points at a pre-built virtual runtime environment. Building
// the environment is an external collaborator's job; this package only
// consumes it.
type VirtualEnv struct {
	// Dir is the environment root (exported as VIRTUAL_ENV).
	Dir string
	// Interpreter replaces the default python interpreter when set.
	Interpreter string
	// Env is overlaid onto the child process environment.
	Env map[string]string
}

// Config holds the configuration for local execution.
type Config struct {
	executor.Config
	// VirtualEnv, when non-nil, is applied to every launched subprocess.
	VirtualEnv *VirtualEnv
}

// Executor implements executor.CodeExecutor using host subprocesses.
type Executor struct {
	config Config
	bridge *executor.Bridge
	logger *slog.Logger
	mu     sync.Mutex
}

var _ executor.CodeExecutor = (*Executor)(nil)

// New creates a local executor and prepares its work directory.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("local: preparing work dir: %w", err)
	}
	return &Executor{
		config: cfg,
		bridge: executor.NewBridge(cfg.Grace, logger),
		logger: logger,
	}, nil
}

// Close releases nothing: the local backend holds no resources between
// calls. It exists so both backends satisfy the same scoped-acquisition
// shape.
func (e *Executor) Close() error {
	return nil
}

// ExecuteCodeBlocks runs blocks sequentially, stopping at the first
// non-zero exit. Output is the combined stdout+stderr of every block that
// ran, in order; CodeFile is the staged file of the last block executed.
func (e *Executor) ExecuteCodeBlocks(ctx context.Context, blocks []executor.CodeBlock) (*executor.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Unknown languages fail the call before any block runs.
	for _, block := range blocks {
		if _, err := executor.Lookup(block.Language); err != nil {
			return nil, err
		}
	}

	result := &executor.ExecutionResult{}
	var output strings.Builder

	for _, block := range blocks {
		if ctx.Err() != nil {
			return nil, apperror.Cancelled()
		}

		path, err := executor.Stage(e.config.WorkDir, block)
		if err != nil {
			return nil, err
		}
		result.CodeFile = path

		argv, err := executor.Command(block.Language, path)
		if err != nil {
			return nil, err
		}
		argv = e.applyVirtualEnv(block.Language, argv)

		e.logger.Debug("executing code block",
			slog.String("language", block.Language),
			slog.String("file", path),
		)

		exitCode, out, err := e.runBlock(ctx, argv)
		output.WriteString(out)
		result.ExitCode = exitCode
		if err != nil {
			return nil, err
		}
		if exitCode != 0 {
			break
		}
	}

	result.Output = output.String()
	return result, nil
}

// runBlock launches one staged file and waits for it under the
// cancellation bridge. A per-block timeout yields the synthetic timeout
// exit code and whatever output was captured before the kill.
func (e *Executor) runBlock(ctx context.Context, argv []string) (int, string, error) {
	blockCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var buf bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = e.config.WorkDir
	cmd.Env = e.environ()
	// Same writer for both streams: os/exec serialises the writes.
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	// Own process group, so terminating the block also terminates anything
	// it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, "", fmt.Errorf("local: starting %s: %w", argv[0], err)
	}

	done := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(done)
	}()

	err := e.bridge.Supervise(blockCtx, &hostProc{cmd: cmd}, done)
	switch {
	case err == nil:
		return exitStatus(waitErr), buf.String(), nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		// The block's own timeout fired; the call itself continues to
		// return normally with a synthetic exit code and partial output.
		return executor.TimeoutExitCode, buf.String() + "\nExecution timed out.\n", nil
	default:
		return 0, buf.String(), apperror.Cancelled()
	}
}

// environ builds the child environment: the current process environment
// with the virtual-environment overlay applied on top.
func (e *Executor) environ() []string {
	env := os.Environ()
	v := e.config.VirtualEnv
	if v == nil {
		return env
	}

	overlay := make(map[string]string, len(v.Env)+2)
	for k, val := range v.Env {
		overlay[k] = val
	}
	if v.Dir != "" {
		if _, ok := overlay["VIRTUAL_ENV"]; !ok {
			overlay["VIRTUAL_ENV"] = v.Dir
		}
		if _, ok := overlay["PATH"]; !ok {
			overlay["PATH"] = filepath.Join(v.Dir, "bin") +
				string(os.PathListSeparator) + os.Getenv("PATH")
		}
	}
	return mergeEnv(env, overlay)
}

// applyVirtualEnv swaps the python interpreter for the environment's own.
func (e *Executor) applyVirtualEnv(language string, argv []string) []string {
	v := e.config.VirtualEnv
	if v == nil || v.Interpreter == "" || language != "python" {
		return argv
	}
	swapped := append([]string(nil), argv...)
	swapped[0] = v.Interpreter
	return swapped
}

// mergeEnv overlays key=value pairs onto a base environment, replacing
// existing keys and appending new ones.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	seen := make(map[string]bool, len(overlay))
	merged := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, found := strings.Cut(kv, "=")
		if val, ok := overlay[key]; found && ok {
			merged = append(merged, key+"="+val)
			seen[key] = true
			continue
		}
		merged = append(merged, kv)
	}
	for key, val := range overlay {
		if !seen[key] {
			merged = append(merged, key+"="+val)
		}
	}
	return merged
}

// exitStatus extracts the exit code from cmd.Wait's error.
func exitStatus(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// hostProc adapts a started exec.Cmd to the bridge's Proc interface,
// signalling the whole process group.
type hostProc struct {
	cmd *exec.Cmd
}

func (p *hostProc) Terminate() error { return p.signal(syscall.SIGTERM) }
func (p *hostProc) Kill() error      { return p.signal(syscall.SIGKILL) }

func (p *hostProc) signal(sig syscall.Signal) error {
	if p.cmd.Process == nil {
		return errors.New("process not started")
	}
	// Negative pid targets the process group created at Start.
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil {
		return p.cmd.Process.Signal(sig)
	}
	return nil
}
