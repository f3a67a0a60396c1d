package engine_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeobserve/kubeobserve/internal/engine"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

func testEnv() engineconfig.Env {
	return engineconfig.Env{
		EventQueueCapacity: 256,
		ConnectTimeout:     3 * time.Second,
		SupervisorTick:     10 * time.Millisecond,
		ConnectivityTick:   10 * time.Millisecond,
	}
}

func newEngine(t *testing.T) (*engine.Engine, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e := engine.New(ctx, testEnv())
	e.LaunchInBackgroundThread(ctx)
	return e, cancel
}

func TestLaunchInBackgroundThreadBlocksUntilInitialized(t *testing.T) {
	e, cancel := newEngine(t)
	defer cancel()
	require.NotNil(t, e)
}

func TestRunUntilCompleteBlocksAndReturnsResult(t *testing.T) {
	e, cancel := newEngine(t)
	defer cancel()

	v, err := engine.RunUntilComplete(e, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunUntilCompletePropagatesError(t *testing.T) {
	e, cancel := newEngine(t)
	defer cancel()

	boom := errors.New("boom")
	_, err := engine.RunUntilComplete(e, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLaunchIsFireAndForget(t *testing.T) {
	e, cancel := newEngine(t)
	defer cancel()

	done := make(chan struct{})
	e.Launch(func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("launched task never ran")
	}
}

func TestGetClusterLoopCreatesOnDemandAndReusesEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"apiVersion":"v1","kind":"PodList","items":[]}`)
	}))
	defer srv.Close()

	e, cancel := newEngine(t)
	defer cancel()

	clusterCtx := model.Context{ShortName: "test", Server: srv.URL}

	loop1, err := e.GetClusterLoop(context.Background(), clusterCtx, false)
	require.NoError(t, err)
	require.NotNil(t, loop1)

	loop2, err := e.GetClusterLoop(context.Background(), clusterCtx, false)
	require.NoError(t, err)
	assert.Same(t, loop1, loop2)
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"apiVersion":"v1","kind":"PodList","items":[]}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := engine.New(ctx, testEnv())
	e.LaunchInBackgroundThread(ctx)

	clusterCtx := model.Context{ShortName: "test", Server: srv.URL}
	_, err := e.GetClusterLoop(context.Background(), clusterCtx, false)
	require.NoError(t, err)

	err1 := e.Shutdown()
	err2 := e.Shutdown()
	assert.Equal(t, err1, err2, "Shutdown must be idempotent")
}
