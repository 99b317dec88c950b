package registry

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCloser struct {
	closed int
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed++
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRegisterDeregister(t *testing.T) {
	r := New(testLogger())
	c := &fakeCloser{}

	r.Register(c)
	assert.Equal(t, 1, r.Len())

	r.Deregister(c)
	assert.Equal(t, 0, r.Len())

	// Deregistering an unknown closer is a no-op.
	r.Deregister(&fakeCloser{})
	assert.Equal(t, 0, r.Len())
}

func TestCloseAllClosesEverything(t *testing.T) {
	r := New(testLogger())
	a, b := &fakeCloser{}, &fakeCloser{}
	r.Register(a)
	r.Register(b)

	assert.NoError(t, r.CloseAll())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.Equal(t, 0, r.Len())
}

func TestCloseAllToleratesFailures(t *testing.T) {
	r := New(testLogger())
	bad := &fakeCloser{err: errors.New("container already gone")}
	good := &fakeCloser{}
	r.Register(bad)
	r.Register(good)

	err := r.CloseAll()
	assert.Error(t, err)
	assert.Equal(t, 1, bad.closed)
	assert.Equal(t, 1, good.closed, "one failure must not prevent the others")
	assert.Equal(t, 0, r.Len())
}

func TestCloseAllTwiceIsNoOp(t *testing.T) {
	r := New(testLogger())
	c := &fakeCloser{}
	r.Register(c)

	assert.NoError(t, r.CloseAll())
	assert.NoError(t, r.CloseAll())
	assert.Equal(t, 1, c.closed)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
