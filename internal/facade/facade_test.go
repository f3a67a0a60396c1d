package facade_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeobserve/kubeobserve/internal/apiclient"
	"github.com/kubeobserve/kubeobserve/internal/engine"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/facade"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

func podResource() model.ApiResource {
	return model.ApiResource{Group: model.CoreV1, Kind: "Pod", Plural: "pods", Namespaced: true}
}

func testEnv() engineconfig.Env {
	return engineconfig.Env{
		EventQueueCapacity: 256,
		ConnectTimeout:     3 * time.Second,
		SupervisorTick:     10 * time.Millisecond,
		ConnectivityTick:   10 * time.Millisecond,
	}
}

func newFacade(t *testing.T, srv *httptest.Server) *facade.Facade {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng := engine.New(ctx, testEnv())
	eng.LaunchInBackgroundThread(ctx)
	clusterCtx := model.Context{ShortName: "test", Server: srv.URL}
	return facade.New(eng, clusterCtx, false, testEnv())
}

func recvEventually(t *testing.T, out interface {
	TryRecv() (model.ObjectEvent, bool)
}) model.ObjectEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := out.TryRecv(); ok {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for event")
	return model.ObjectEvent{}
}

func TestListObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"apiVersion":"v1","kind":"PodList","items":[{"metadata":{"name":"a","resourceVersion":"1"}}]}`)
	}))
	defer srv.Close()

	f := newFacade(t, srv)
	sel, err := model.NewObjectSelector(podResource(), "default")
	require.NoError(t, err)

	items, err := f.ListObjects(context.Background(), sel)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestListThenWatchEmitsListedThenWatchEvents(t *testing.T) {
	var watchCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("watch") == "1" {
			watchCalls++
			if watchCalls > 1 {
				<-r.Context().Done()
				return
			}
			fmt.Fprintln(w, `{"type":"ADDED","object":{"metadata":{"name":"b","resourceVersion":"5"}}}`)
			return
		}
		fmt.Fprint(w, `{"apiVersion":"v1","kind":"PodList","items":[{"metadata":{"name":"a","resourceVersion":"1"}}]}`)
	}))
	defer srv.Close()

	f := newFacade(t, srv)
	sel, err := model.NewObjectSelector(podResource(), "default")
	require.NoError(t, err)

	out, err := f.ListThenWatch(context.Background(), sel)
	require.NoError(t, err)

	ev1 := recvEventually(t, out)
	ev2 := recvEventually(t, out)
	assert.Equal(t, model.ActionListed, ev1.Action)
	assert.Equal(t, model.ActionAdded, ev2.Action)
}

func TestListThenWatchPushesErrorOnListFailureWithoutWatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"status":"Failure","code":403,"reason":"Forbidden","message":"nope"}`)
	}))
	defer srv.Close()

	f := newFacade(t, srv)
	sel, err := model.NewObjectSelector(podResource(), "default")
	require.NoError(t, err)

	out, err := f.ListThenWatch(context.Background(), sel)
	require.NoError(t, err)

	ev := recvEventually(t, out)
	assert.Equal(t, model.ActionError, ev.Action)
	assert.Error(t, ev.Err)
}

func TestStartStopWatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("watch") == "1" {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, `{"apiVersion":"v1","kind":"PodList","items":[{"metadata":{"name":"a","resourceVersion":"1"}}]}`)
	}))
	defer srv.Close()

	f := newFacade(t, srv)
	sel, err := model.NewObjectSelector(podResource(), "default")
	require.NoError(t, err)

	out, err := f.StartWatching(context.Background(), sel)
	require.NoError(t, err)

	ev := recvEventually(t, out)
	assert.Equal(t, model.ActionListed, ev.Action)

	require.NoError(t, f.StopWatching(context.Background(), sel))
}

func TestStreamPodLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello\n")
	}))
	defer srv.Close()

	f := newFacade(t, srv)
	sel := podResource()
	objSel, err := model.NewObjectSelector(sel, "default")
	require.NoError(t, err)
	logSel := objSel.ForPodLogs("my-pod", "my-container")

	out, err := f.StartStreamPodLogs(context.Background(), logSel, apiclient.PodLogOptions{})
	require.NoError(t, err)

	ev := recvEventually(t, out)
	assert.Equal(t, model.ActionLogLine, ev.Action)
	assert.Equal(t, "hello\n", string(ev.LogLine))

	f.StopStreamPodLogs(logSel)
}
