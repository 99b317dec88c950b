package docker

import (
	"github.com/Ard-Skelling/autogen/internal/executor"
)

// workspacePath is where the work directory is mounted inside the
// container. Staged files appear here under the same names as on the host.
const workspacePath = "/workspace"

// Config holds the configuration for container execution.
type Config struct {
	executor.Config

	// Image is the container image code blocks run in. Pulled on first use
	// when absent from the local image store.
	Image string
	// AutoRemove removes the container on teardown. Nil means true; point
	// it at false to keep the container around for post-mortem inspection.
	AutoRemove *bool
	// StopOnExit stops the container on teardown. Nil means true; point it
	// at false to leave the container running for manual intervention.
	StopOnExit *bool
	// BindDir is the host path mounted at the container's working
	// directory. Defaults to WorkDir.
	BindDir string
}

// DefaultConfig provides the defaults for a python sandbox container.
func DefaultConfig() Config {
	return Config{
		Config: executor.Config{
			Timeout: executor.DefaultTimeout,
			Grace:   executor.DefaultGrace,
		},
		Image: "python:3-slim",
	}
}

func ptrTo[T any](v T) *T { return &v }
