// Package docker runs code blocks inside a dedicated container.
//
// Each Executor owns exactly one container for its whole lifetime: the
// container is provisioned at construction (pulling the image if needed),
// every code block runs as an exec session inside it, and teardown stops
// and removes it according to the configured flags. The work directory is
// bind-mounted, so files staged on the host are visible inside the
// container and files written by code blocks persist on the host.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/xid"

	"github.com/Ard-Skelling/autogen/internal/apperror"
	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/executor/registry"
)

const (
	provisionTimeout = 2 * time.Minute
	teardownTimeout  = 30 * time.Second
)

// Executor implements executor.CodeExecutor using a Docker container.
type Executor struct {
	cli    api
	config Config
	logger *slog.Logger
	bridge *executor.Bridge
	reg    *registry.Registry

	// mu serializes exec calls on the container and guards teardown, so
	// one executor never interleaves output from concurrent sessions.
	mu          sync.Mutex
	containerID string
	closed      bool
}

var _ executor.CodeExecutor = (*Executor)(nil)

// New creates an Executor, connects to the container runtime and
// provisions the backing container. The caller must Close it; the
// lifecycle registry covers callers that never do.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := newEngineClient()
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}
	return newWithClient(cli, cfg, logger, registry.Default())
}

func newWithClient(cli api, cfg Config, logger *slog.Logger, reg *registry.Registry) (*Executor, error) {
	if err := cfg.Normalize(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: preparing work dir: %w", err)
	}
	if cfg.Image == "" {
		cfg.Image = DefaultConfig().Image
	}
	if cfg.BindDir == "" {
		cfg.BindDir = cfg.WorkDir
	}
	if cfg.StopOnExit == nil {
		cfg.StopOnExit = ptrTo(true)
	}
	if cfg.AutoRemove == nil {
		cfg.AutoRemove = ptrTo(true)
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		bridge: executor.NewBridge(cfg.Grace, logger),
		reg:    reg,
	}

	if err := e.provision(); err != nil {
		cli.Close()
		return nil, err
	}

	e.reg.Register(e)
	return e, nil
}

// provision pulls the image when it is missing from the local store, then
// creates and starts the container with the work directory bind-mounted.
func (e *Executor) provision() error {
	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()

	exists, err := e.cli.ImageExists(ctx, e.config.Image)
	if err != nil {
		return apperror.ImagePull(e.config.Image, err)
	}
	if !exists {
		e.logger.Info("pulling image", slog.String("image", e.config.Image))
		if err := e.cli.ImagePull(ctx, e.config.Image); err != nil {
			return apperror.ImagePull(e.config.Image, err)
		}
	}

	bind, err := filepath.Abs(e.config.BindDir)
	if err != nil {
		return apperror.ContainerStart(e.config.Image, err)
	}

	name := "autogen-exec-" + xid.New().String()
	id, err := e.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      e.config.Image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: workspacePath,
			Tty:        false,
		},
		&container.HostConfig{
			Binds: []string{bind + ":" + workspacePath},
		},
		name,
	)
	if err != nil {
		return apperror.ContainerStart(e.config.Image, err)
	}
	e.containerID = id

	if err := e.cli.ContainerStart(ctx, id); err != nil {
		// The created container is useless; remove it before reporting.
		if rmErr := e.cli.ContainerRemove(ctx, id, true); rmErr != nil && !isNotFound(rmErr) {
			e.logger.Error("failed to remove container after start failure",
				slog.String("id", id),
				slog.String("error", rmErr.Error()),
			)
		}
		return apperror.ContainerStart(e.config.Image, err)
	}

	e.logger.Info("container ready",
		slog.String("id", id),
		slog.String("name", name),
		slog.String("image", e.config.Image),
	)
	return nil
}

// ContainerID exposes the backing container's ID for inspection and tests.
func (e *Executor) ContainerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.containerID
}

// ExecuteCodeBlocks stages each block into the bind-mounted work directory
// and runs it as an exec session inside the container, sequentially,
// stopping at the first non-zero exit. Cancellation and per-block timeouts
// follow the same contract as the local backend.
func (e *Executor) ExecuteCodeBlocks(ctx context.Context, blocks []executor.CodeBlock) (*executor.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("docker: executor is closed")
	}

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

		hostPath, err := executor.Stage(e.config.WorkDir, block)
		if err != nil {
			return nil, err
		}
		result.CodeFile = hostPath

		argv, err := executor.Command(block.Language, path.Join(workspacePath, filepath.Base(hostPath)))
		if err != nil {
			return nil, err
		}

		e.logger.Debug("executing code block in container",
			slog.String("language", block.Language),
			slog.String("container", e.containerID),
		)

		exitCode, out, err := e.runExec(ctx, argv)
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

// runExec runs one command as an exec session, streaming combined
// stdout+stderr, under the cancellation bridge.
func (e *Executor) runExec(ctx context.Context, argv []string) (int, string, error) {
	blockCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execID, err := e.cli.ExecCreate(blockCtx, e.containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   workspacePath,
		Cmd:          argv,
	})
	if err != nil {
		return 0, "", fmt.Errorf("docker: creating exec: %w", err)
	}

	attach, err := e.cli.ExecAttach(blockCtx, execID)
	if err != nil {
		return 0, "", fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		// Demultiplex the stream; both channels land in one buffer to keep
		// output in arrival order.
		_, _ = stdcopy.StdCopy(&buf, &buf, attach.Reader)
		close(done)
	}()

	proc := &containerProc{cli: e.cli, containerID: e.containerID, grace: e.config.Grace}
	err = e.bridge.Supervise(blockCtx, proc, done)
	switch {
	case err == nil:
		exitCode, running, inspectErr := e.cli.ExecInspect(ctx, execID)
		if inspectErr != nil {
			return 0, buf.String(), fmt.Errorf("docker: inspecting exec: %w", inspectErr)
		}
		if running {
			// The daemon can lag the stream EOF by a beat.
			time.Sleep(100 * time.Millisecond)
			exitCode, _, inspectErr = e.cli.ExecInspect(ctx, execID)
			if inspectErr != nil {
				return 0, buf.String(), fmt.Errorf("docker: inspecting exec: %w", inspectErr)
			}
		}
		return exitCode, buf.String(), nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return executor.TimeoutExitCode, buf.String() + "\nExecution timed out.\n", nil
	default:
		return 0, buf.String(), apperror.Cancelled()
	}
}

// Close stops and removes the container per the configured flags, then
// releases the client. Safe to call more than once; the second call is a
// no-op. Teardown failures are aggregated and logged, never escalated to
// execution callers.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.reg.Deregister(e)

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	var errs []error
	if *e.config.StopOnExit {
		graceSec := int(e.config.Grace / time.Second)
		if err := e.cli.ContainerStop(ctx, e.containerID, &graceSec); err != nil && !isNotFound(err) {
			errs = append(errs, apperror.Teardown("container "+e.containerID, err))
		}
	}
	if *e.config.AutoRemove {
		if err := e.cli.ContainerRemove(ctx, e.containerID, true); err != nil && !isNotFound(err) {
			errs = append(errs, apperror.Teardown("container "+e.containerID, err))
		}
	}
	if err := e.cli.Close(); err != nil {
		errs = append(errs, apperror.Teardown("docker client", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("container teardown incomplete",
			slog.String("id", e.containerID),
			slog.String("error", err.Error()),
		)
	} else {
		e.logger.Info("container torn down", slog.String("id", e.containerID))
	}
	return err
}

// containerProc terminates a running exec session. The Engine API has no
// signal endpoint for exec sessions, so termination goes through the
// container itself: a restart delivers SIGTERM to its init, waits the
// grace period, SIGKILLs, and brings the container back up for subsequent
// calls. Every process of the session dies with the container's namespace.
type containerProc struct {
	cli         api
	containerID string
	grace       time.Duration
}

func (p *containerProc) Terminate() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.grace+teardownTimeout)
	defer cancel()
	graceSec := int(p.grace / time.Second)
	return p.cli.ContainerRestart(ctx, p.containerID, &graceSec)
}

func (p *containerProc) Kill() error {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := p.cli.ContainerKill(ctx, p.containerID, "SIGKILL"); err != nil && !isNotFound(err) {
		return err
	}
	return p.cli.ContainerStart(ctx, p.containerID)
}
