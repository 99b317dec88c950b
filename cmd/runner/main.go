// Package main is a small CLI that runs code blocks from a JSON file and
// prints the result. Useful for trying out the executors without the
// HTTP server:
//
//	runner -backend docker blocks.json
//
// The input file holds an array of blocks:
//
//	[{"language":"python","code":"print(40 + 2)"}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/executor/docker"
	"github.com/Ard-Skelling/autogen/internal/executor/local"
	"github.com/Ard-Skelling/autogen/internal/executor/registry"
)

func main() {
	// os.Exit skips deferred cleanup, so all the work happens in run()
	// and only the final exit code escapes to here.
	os.Exit(run())
}

func run() int {
	backend := flag.String("backend", "local", "execution backend: local or docker")
	image := flag.String("image", "", "container image (docker backend)")
	workDir := flag.String("work-dir", "", "working directory for staged files")
	timeout := flag.Duration("timeout", executor.DefaultTimeout, "per-block timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runner [flags] <blocks.json>")
		return 2
	}

	blocks, err := readBlocks(flag.Arg(0))
	if err != nil {
		logger.Error("failed to read blocks", slog.String("error", err.Error()))
		return 1
	}

	// Containers must not outlive the process even if it dies on a
	// signal mid-run.
	registry.Default().HandleSignals()

	ex, err := newExecutor(*backend, *image, *workDir, *timeout, logger)
	if err != nil {
		logger.Error("failed to create executor", slog.String("error", err.Error()))
		return 1
	}
	defer ex.Close()

	result, err := ex.ExecuteCodeBlocks(context.Background(), blocks)
	if err != nil {
		logger.Error("execution failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Print(result.Output)
	return result.ExitCode
}

// closableExecutor is what both backends provide.
type closableExecutor interface {
	executor.CodeExecutor
	Close() error
}

func newExecutor(backend, image, workDir string, timeout time.Duration, logger *slog.Logger) (closableExecutor, error) {
	base := executor.Config{WorkDir: workDir, Timeout: timeout}

	switch backend {
	case "local":
		return local.New(local.Config{Config: base}, logger)
	case "docker":
		cfg := docker.DefaultConfig()
		cfg.Config = base
		if image != "" {
			cfg.Image = image
		}
		return docker.New(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func readBlocks(path string) ([]executor.CodeBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var blocks []executor.CodeBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return blocks, nil
}
