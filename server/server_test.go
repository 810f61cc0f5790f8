package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sterwen-nav/nmea-router/config"
)

type fakeRunnable struct {
	started chan struct{}
	err     error
}

func (f *fakeRunnable) Run(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	return f.err
}

// failingRunnable returns its error immediately, simulating a component that crashes on its own rather
// than stopping in response to context cancellation.
type failingRunnable struct {
	started chan struct{}
	err     error
}

func (f *failingRunnable) Run(ctx context.Context) error {
	close(f.started)
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		ServerName: "Test",
		Servers:    []config.Component{{Name: "Main", Class: "FakeMain"}},
	}
}

func TestServer_BuildAndStart(t *testing.T) {
	r := config.NewRegistry()
	runnable := &fakeRunnable{started: make(chan struct{})}
	r.Register("FakeMain", func(c config.Component) (interface{}, error) {
		return runnable, nil
	})

	s := New(testConfig(), r)
	require.NoError(t, s.Build())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case <-runnable.started:
	case <-time.After(time.Second):
		t.Fatal("component never started")
	}

	cancel()
	s.Wait()
	assert.Empty(t, s.Errs())
}

func TestServer_Build_propagatesError(t *testing.T) {
	r := config.NewRegistry()
	r.Register("FakeMain", func(c config.Component) (interface{}, error) {
		return nil, errors.New("construction failed")
	})

	s := New(testConfig(), r)
	assert.Error(t, s.Build())
}

func TestServer_recordsRunErrors(t *testing.T) {
	r := config.NewRegistry()
	runnable := &failingRunnable{started: make(chan struct{}), err: errors.New("crashed")}
	r.Register("FakeMain", func(c config.Component) (interface{}, error) {
		return runnable, nil
	})

	s := New(testConfig(), r)
	require.NoError(t, s.Build())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Wait()

	require.Len(t, s.Errs(), 1)
	assert.Contains(t, s.Errs()[0].Error(), "crashed")
}
