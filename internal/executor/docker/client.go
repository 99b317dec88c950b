package docker

import (
	"context"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// api is the slice of the Docker Engine API the executor uses. Narrowing
// the client to an interface lets the unit tests run against a fake
// without a daemon.
type api interface {
	Close() error

	ImageExists(ctx context.Context, ref string) (bool, error)
	ImagePull(ctx context.Context, ref string) error

	ContainerCreate(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error)
	ContainerStart(ctx context.Context, id string) error
	ContainerStop(ctx context.Context, id string, timeoutSec *int) error
	ContainerRestart(ctx context.Context, id string, timeoutSec *int) error
	ContainerKill(ctx context.Context, id, signal string) error
	ContainerRemove(ctx context.Context, id string, force bool) error

	ExecCreate(ctx context.Context, containerID string, opts container.ExecOptions) (string, error)
	ExecAttach(ctx context.Context, execID string) (types.HijackedResponse, error)
	ExecInspect(ctx context.Context, execID string) (exitCode int, running bool, err error)
}

// engineClient adapts the official SDK client to the api interface.
type engineClient struct {
	cli *client.Client
}

var _ api = (*engineClient)(nil)

func newEngineClient() (*engineClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &engineClient{cli: cli}, nil
}

func (c *engineClient) Close() error {
	return c.cli.Close()
}

func (c *engineClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	images, err := c.cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, err
	}
	return len(images) > 0, nil
}

func (c *engineClient) ImagePull(ctx context.Context, ref string) error {
	reader, err := c.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	// Read everything to block until the pull is complete.
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (c *engineClient) ContainerCreate(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error) {
	resp, err := c.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *engineClient) ContainerStart(ctx context.Context, id string) error {
	return c.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (c *engineClient) ContainerStop(ctx context.Context, id string, timeoutSec *int) error {
	return c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: timeoutSec})
}

func (c *engineClient) ContainerRestart(ctx context.Context, id string, timeoutSec *int) error {
	return c.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: timeoutSec})
}

func (c *engineClient) ContainerKill(ctx context.Context, id, signal string) error {
	return c.cli.ContainerKill(ctx, id, signal)
}

func (c *engineClient) ContainerRemove(ctx context.Context, id string, force bool) error {
	return c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
}

func (c *engineClient) ExecCreate(ctx context.Context, containerID string, opts container.ExecOptions) (string, error) {
	resp, err := c.cli.ContainerExecCreate(ctx, containerID, opts)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *engineClient) ExecAttach(ctx context.Context, execID string) (types.HijackedResponse, error) {
	return c.cli.ContainerExecAttach(ctx, execID, container.ExecStartOptions{})
}

func (c *engineClient) ExecInspect(ctx context.Context, execID string) (int, bool, error) {
	resp, err := c.cli.ContainerExecInspect(ctx, execID)
	if err != nil {
		return 0, false, err
	}
	return resp.ExitCode, resp.Running, nil
}

// isNotFound reports whether an Engine API error means the resource is
// already gone, which teardown treats as success.
func isNotFound(err error) bool {
	return cerrdefs.IsNotFound(err)
}
