package clusterloop

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

// TestConnectivityEmitsOnlyOnTransition drives checkConnectivity directly,
// without running the loop or its ticker, to verify transition-only emission.
func TestConnectivityEmitsOnlyOnTransition(t *testing.T) {
	var failing int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&failing) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"Failure","code":503,"reason":"ServiceUnavailable","message":"down"}`)
			return
		}
		fmt.Fprint(w, `{"groups":[]}`)
	}))
	defer srv.Close()

	loop, err := New(model.Context{ShortName: "test", Server: srv.URL}, engineconfig.Env{
		ConnectTimeout:   3 * time.Second,
		SupervisorTick:   10 * time.Millisecond,
		ConnectivityTick: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	loop.initialized = make(chan struct{})
	close(loop.initialized)

	ctx := context.Background()
	events := loop.ConnectivityEvents()

	// First observation, reachable: becomes reachable from unknown state.
	loop.checkConnectivity(ctx)
	ev, ok := events.TryRecv()
	require.True(t, ok)
	assert.True(t, ev.BecameReachable)

	// Still reachable: no further event.
	loop.checkConnectivity(ctx)
	_, ok = events.TryRecv()
	assert.False(t, ok, "no event expected while still reachable")

	// Flip to failing: one BecameReachable=false event.
	atomic.StoreInt32(&failing, 1)
	loop.checkConnectivity(ctx)
	ev, ok = events.TryRecv()
	require.True(t, ok)
	assert.False(t, ev.BecameReachable)

	// Still failing: no further event.
	loop.checkConnectivity(ctx)
	_, ok = events.TryRecv()
	assert.False(t, ok, "no event expected while still unreachable")

	// Recovers: one BecameReachable=true event.
	atomic.StoreInt32(&failing, 0)
	loop.checkConnectivity(ctx)
	ev, ok = events.TryRecv()
	require.True(t, ok)
	assert.True(t, ev.BecameReachable)
}
