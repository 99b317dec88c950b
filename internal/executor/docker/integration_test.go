package docker_test

import (
	"context"
	"os"
	"testing"
	"time"

	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/executor/docker"
)

// requireDaemon skips the test when no Docker daemon is reachable.
func requireDaemon(t *testing.T) *client.Client {
	t.Helper()
	if os.Getenv("CI") != "" {
		t.Skip("Skipping docker test in CI environment")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("Skipping docker test: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("Skipping docker test: daemon unreachable: %v", err)
	}
	return cli
}

func TestDockerExecutor(t *testing.T) {
	cli := requireDaemon(t)
	defer cli.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	cfg.WorkDir = t.TempDir()

	ex, err := docker.New(cfg, logger)
	require.NoError(t, err, "Should start the executor container without error")
	defer ex.Close()

	t.Run("python hello world", func(t *testing.T) {
		res, err := ex.ExecuteCodeBlocks(context.Background(), []executor.CodeBlock{
			{Language: "python", Code: `print("Hello from the sandbox!")`},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "Hello from the sandbox!")
		assert.NotEmpty(t, res.CodeFile)
	})

	t.Run("nonzero exit surfaces", func(t *testing.T) {
		res, err := ex.ExecuteCodeBlocks(context.Background(), []executor.CodeBlock{
			{Language: "python", Code: `print("Missing parenthesis"`},
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "SyntaxError")
	})

	t.Run("work dir persists across calls", func(t *testing.T) {
		res, err := ex.ExecuteCodeBlocks(context.Background(), []executor.CodeBlock{
			{Language: "python", Code: "with open('state.txt', 'w') as f:\n    f.write('kept')\n"},
		})
		require.NoError(t, err)
		require.Equal(t, 0, res.ExitCode)

		res, err = ex.ExecuteCodeBlocks(context.Background(), []executor.CodeBlock{
			{Language: "python", Code: "print(open('state.txt').read())"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "kept")
	})
}

func TestDockerExecutorTeardown(t *testing.T) {
	cli := requireDaemon(t)
	defer cli.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := docker.DefaultConfig()
	cfg.WorkDir = t.TempDir()

	ex, err := docker.New(cfg, logger)
	require.NoError(t, err)
	id := ex.ContainerID()
	require.NotEmpty(t, id)

	require.NoError(t, ex.Close())

	// The container should be gone from the daemon after Close.
	list, err := cli.ContainerList(context.Background(), container.ListOptions{All: true})
	require.NoError(t, err)
	for _, c := range list {
		assert.NotEqual(t, id, c.ID, "container should have been removed")
	}
}

func TestDockerExecutorLeavesContainerWhenAsked(t *testing.T) {
	cli := requireDaemon(t)
	defer cli.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	keep := false
	cfg := docker.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.StopOnExit = &keep
	cfg.AutoRemove = &keep

	ex, err := docker.New(cfg, logger)
	require.NoError(t, err)
	id := ex.ContainerID()

	require.NoError(t, ex.Close())

	inspect, err := cli.ContainerInspect(context.Background(), id)
	require.NoError(t, err, "container should still exist")
	assert.True(t, inspect.State.Running, "container should still be running")

	// Clean up what we deliberately left behind.
	timeout := 1
	_ = cli.ContainerStop(context.Background(), id, container.StopOptions{Timeout: &timeout})
	_ = cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
}
