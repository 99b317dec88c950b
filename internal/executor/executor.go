// Package executor defines the code-block execution contract shared by all
// backends, plus the staging, command and cancellation plumbing they build on.
//
// A caller hands an ordered sequence of code blocks to a CodeExecutor.
// Blocks run strictly sequentially; the first non-zero exit halts the
// sequence and its result is returned, combined with the output of every
// block that ran before it. The Output never outlives the call: when the
// context is cancelled the backend terminates the running process before
// returning.
package executor

import (
	"context"
	"os"
	"time"
)

// CodeBlock is one unit of execution: a source fragment tagged with the
// language it should run as. Immutable, caller-supplied.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult is the outcome of one ExecuteCodeBlocks call.
//
// ExitCode is the exit status of the last block that ran. Output is the
// combined stdout+stderr of every block executed in this call, in execution
// order. CodeFile is the staged source path of the last block that was
// executed (the failed block's file when a block fails), or empty when no
// block ran at all.
type ExecutionResult struct {
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output"`
	CodeFile string `json:"codeFile,omitempty"`
}

// CodeExecutor is the uniform contract across backends. Implementations
// block until all blocks complete, an early stop triggers, a per-block
// timeout fires, or ctx is cancelled; no execution continues in the
// background after the call returns.
type CodeExecutor interface {
	ExecuteCodeBlocks(ctx context.Context, blocks []CodeBlock) (*ExecutionResult, error)
}

// Default timing applied by Config.Normalize.
const (
	DefaultTimeout = 60 * time.Second
	DefaultGrace   = 2 * time.Second
)

// TimeoutExitCode is the synthetic exit code reported when a block exceeds
// its allotted time, mirroring the unix timeout command.
const TimeoutExitCode = 124

// Config carries the settings common to every backend.
type Config struct {
	// WorkDir is the staging root for source files. It must exist or be
	// creatable; for the container backend it is also the host side of the
	// mounted working directory.
	WorkDir string
	// Timeout bounds each code block's execution, not the whole call.
	Timeout time.Duration
	// Grace is how long a terminated process gets to exit before it is
	// force-killed.
	Grace time.Duration
}

// Normalize fills zero-valued fields with defaults and ensures WorkDir
// exists. Empty WorkDir falls back to a directory under os.TempDir.
func (c *Config) Normalize() error {
	if c.WorkDir == "" {
		dir, err := os.MkdirTemp("", "autogen-exec-*")
		if err != nil {
			return err
		}
		c.WorkDir = dir
	} else if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	return nil
}
