package docker

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// scriptedExec is the behavior of the next exec session the fake serves.
// A hanging exec streams its output but never reaches EOF until the
// container is restarted or killed, like a process that ignores nothing
// but runs forever.
type scriptedExec struct {
	output   string
	exitCode int
	hang     bool
}

// fakeAPI is an in-memory Engine API double. It records the lifecycle
// calls the executor makes and serves scripted exec sessions.
type fakeAPI struct {
	mu sync.Mutex

	localImages []string
	script      []scriptedExec

	pulls    []string
	creates  []createCall
	starts   []string
	stops    []string
	restarts []string
	kills    []string
	removes  []string
	closed   bool

	execs     map[string]scriptedExec
	execOpts  []container.ExecOptions
	execSeq   int
	openConns []net.Conn

	pullErr   error
	listErr   error
	createErr error
	startErr  error
	stopErr   error
	removeErr error
}

type createCall struct {
	cfg  *container.Config
	host *container.HostConfig
	name string
}

func newFakeAPI(localImages []string, script ...scriptedExec) *fakeAPI {
	return &fakeAPI{
		localImages: localImages,
		script:      script,
		execs:       make(map[string]scriptedExec),
	}
}

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAPI) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return false, f.listErr
	}
	for _, img := range f.localImages {
		if img == ref {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAPI) ImagePull(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return f.pullErr
	}
	f.pulls = append(f.pulls, ref)
	f.localImages = append(f.localImages, ref)
	return nil
}

func (f *fakeAPI) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates = append(f.creates, createCall{cfg: cfg, host: host, name: name})
	return fmt.Sprintf("container-%d", len(f.creates)), nil
}

func (f *fakeAPI) ContainerStart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts = append(f.starts, id)
	return nil
}

func (f *fakeAPI) ContainerStop(_ context.Context, id string, _ *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops = append(f.stops, id)
	return nil
}

func (f *fakeAPI) ContainerRestart(_ context.Context, id string, _ *int) error {
	f.mu.Lock()
	f.restarts = append(f.restarts, id)
	f.mu.Unlock()
	f.dropConns()
	return nil
}

func (f *fakeAPI) ContainerKill(_ context.Context, id, _ string) error {
	f.mu.Lock()
	f.kills = append(f.kills, id)
	f.mu.Unlock()
	f.dropConns()
	return nil
}

func (f *fakeAPI) ContainerRemove(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removes = append(f.removes, id)
	return nil
}

func (f *fakeAPI) ExecCreate(_ context.Context, _ string, opts container.ExecOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return "", fmt.Errorf("fake: no scripted exec left (cmd %v)", opts.Cmd)
	}
	next := f.script[0]
	f.script = f.script[1:]
	f.execOpts = append(f.execOpts, opts)
	f.execSeq++
	id := fmt.Sprintf("exec-%d", f.execSeq)
	f.execs[id] = next
	return id, nil
}

func (f *fakeAPI) ExecAttach(_ context.Context, execID string) (types.HijackedResponse, error) {
	f.mu.Lock()
	spec, ok := f.execs[execID]
	f.mu.Unlock()
	if !ok {
		return types.HijackedResponse{}, fmt.Errorf("fake: unknown exec %s", execID)
	}

	clientConn, serverConn := net.Pipe()
	if spec.hang {
		f.mu.Lock()
		f.openConns = append(f.openConns, serverConn)
		f.mu.Unlock()
	}
	go func() {
		w := stdcopy.NewStdWriter(serverConn, stdcopy.Stdout)
		_, _ = w.Write([]byte(spec.output))
		if !spec.hang {
			serverConn.Close()
		}
	}()

	return types.NewHijackedResponse(clientConn, "application/vnd.docker.multiplexed-stream"), nil
}

func (f *fakeAPI) ExecInspect(_ context.Context, execID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.execs[execID]
	if !ok {
		return 0, false, fmt.Errorf("fake: unknown exec %s", execID)
	}
	return spec.exitCode, false, nil
}

// dropConns severs every hanging exec stream, as killing the container's
// init would.
func (f *fakeAPI) dropConns() {
	f.mu.Lock()
	conns := f.openConns
	f.openConns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

var _ api = (*fakeAPI)(nil)
