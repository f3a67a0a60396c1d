// Package facade implements the synchronous, per-cluster API a UI thread
// calls: list, list-then-watch, start/stop watch, stream pod logs
// (spec.md §4.7). Every method blocks the calling goroutine but performs
// its cluster-loop work on the engine's driver goroutine via
// engine.RunUntilComplete/Launch.
package facade

import (
	"context"
	"sync"

	"github.com/datawire/dlib/dlog"

	"github.com/kubeobserve/kubeobserve/internal/apiclient"
	"github.com/kubeobserve/kubeobserve/internal/channels"
	"github.com/kubeobserve/kubeobserve/internal/clusterloop"
	"github.com/kubeobserve/kubeobserve/internal/engine"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/errcat"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

// Facade is the per-cluster API surface handed to UI, FUSE, and CLI
// consumers. It never touches the HTTP session, cursor, or watches map
// directly; everything goes through its Engine's ClusterLoop.
type Facade struct {
	eng                *engine.Engine
	clusterCtx         model.Context
	enableConnectivity bool
	eventQueueCapacity int

	logsMu sync.Mutex
	logs   map[string]*logStream
}

// logStream is the handle for one in-flight pod log stream. Identity
// (pointer equality), not the cancel func itself, is what tells a stream's
// own cleanup goroutine whether it's still the current stream for its key.
type logStream struct {
	cancel context.CancelFunc
}

// New builds a Facade for one cluster. enableConnectivity controls whether
// the underlying ClusterLoop starts its reachability detector the first
// time this cluster is touched. cfg.EventQueueCapacity sizes every event
// queue this Facade hands back (StartWatching, ListThenWatch,
// StartStreamPodLogs).
func New(eng *engine.Engine, clusterCtx model.Context, enableConnectivity bool, cfg engineconfig.Env) *Facade {
	return &Facade{
		eng:                eng,
		clusterCtx:         clusterCtx,
		enableConnectivity: enableConnectivity,
		eventQueueCapacity: cfg.EventQueueCapacity,
		logs:               make(map[string]*logStream),
	}
}

func (f *Facade) getLoop(ctx context.Context) (*clusterloop.Loop, error) {
	return engine.RunUntilComplete(f.eng, func(ctx context.Context) (*clusterloop.Loop, error) {
		return f.eng.GetClusterLoop(ctx, f.clusterCtx, f.enableConnectivity)
	})
}

// ListApiResources merges CoreV1 with every discovered group's resources,
// deduplicating by plural name.
func (f *Facade) ListApiResources(ctx context.Context) ([]model.ApiResource, error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RunUntilComplete(f.eng, func(ctx context.Context) ([]model.ApiResource, error) {
		seen := make(map[string]bool)
		var out []model.ApiResource
		add := func(resources []model.ApiResource) {
			for _, r := range resources {
				if seen[r.Plural] {
					continue
				}
				seen[r.Plural] = true
				out = append(out, r)
			}
		}

		core, err := loop.ListApiResources(ctx, model.CoreV1)
		if err != nil {
			return nil, err
		}
		add(core)

		groups, err := loop.ListApiGroups(ctx)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			resources, err := loop.ListApiResources(ctx, g)
			if err != nil {
				return nil, err
			}
			add(resources)
		}
		return out, nil
	})
}

// ListObjects performs a single list against selector's resource.
func (f *Facade) ListObjects(ctx context.Context, selector model.ObjectSelector) ([]model.Object, error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RunUntilComplete(f.eng, func(ctx context.Context) ([]model.Object, error) {
		return loop.ListObjects(ctx, selector)
	})
}

// StartWatching creates a fresh event queue, registers a WatchTask for
// selector on the cluster loop, and returns the receiving end.
func (f *Facade) StartWatching(ctx context.Context, selector model.ObjectSelector) (*channels.Queue[model.ObjectEvent], error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}
	out := channels.NewQueue[model.ObjectEvent](f.eventQueueCapacity)
	f.eng.Launch(func(ctx context.Context) {
		loop.StartWatch(selector, out)
	})
	return out, nil
}

// StopWatching cancels and removes selector's WatchTask.
func (f *Facade) StopWatching(ctx context.Context, selector model.ObjectSelector) error {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return err
	}
	return engine.RunUntilComplete(f.eng, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, loop.StopWatch(selector)
	})
}

// ListThenWatch lists selector's resource and, if that succeeds, registers a
// WatchTask on a fresh queue; the task's own initial list pushes one Listed
// event per item before any watch event. On list failure it pushes a single
// ActionError event and does not register a watch.
func (f *Facade) ListThenWatch(ctx context.Context, selector model.ObjectSelector) (*channels.Queue[model.ObjectEvent], error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}
	out := channels.NewQueue[model.ObjectEvent](f.eventQueueCapacity)

	f.eng.Launch(func(ctx context.Context) {
		if _, err := loop.ListObjects(ctx, selector); err != nil {
			out.Send(model.ObjectEvent{Context: f.clusterCtx, Action: model.ActionError, Err: err})
			return
		}
		loop.StartWatch(selector, out)
	})
	return out, nil
}

// StartStreamPodLogs streams one pod container's log as ActionLogLine
// events onto a fresh queue. Unlike StartWatching, this isn't a WatchTask
// (no list-then-watch, no retry) — it's a single apiclient.StreamPodLogs
// call run for the stream's lifetime, cancellable via StopStreamPodLogs.
func (f *Facade) StartStreamPodLogs(ctx context.Context, selector model.ObjectSelector, opts apiclient.PodLogOptions) (*channels.Queue[model.ObjectEvent], error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}

	key := selector.Key()
	f.logsMu.Lock()
	if old, exists := f.logs[key]; exists {
		old.cancel()
	}
	streamCtx, cancel := context.WithCancel(loop.RootContext())
	stream := &logStream{cancel: cancel}
	f.logs[key] = stream
	f.logsMu.Unlock()

	out := channels.NewQueue[model.ObjectEvent](f.eventQueueCapacity)
	f.eng.Go("podlogs:"+key, func(context.Context) error {
		defer func() {
			f.logsMu.Lock()
			if f.logs[key] == stream {
				delete(f.logs, key)
			}
			f.logsMu.Unlock()
		}()
		if err := loop.Client().StreamPodLogs(streamCtx, selector, opts, out); err != nil && !errcat.Is(err, errcat.Cancelled) {
			dlog.Errorf(streamCtx, "[%s] %s: pod log stream ended: %v", f.clusterCtx.ShortName, selector.Pretty(), err)
			out.Send(model.ObjectEvent{Context: f.clusterCtx, Action: model.ActionError, Err: err})
		}
		return nil
	})
	return out, nil
}

// StopStreamPodLogs cancels selector's in-flight pod log stream, if any.
func (f *Facade) StopStreamPodLogs(selector model.ObjectSelector) {
	key := selector.Key()
	f.logsMu.Lock()
	stream, exists := f.logs[key]
	if exists {
		delete(f.logs, key)
	}
	f.logsMu.Unlock()
	if exists {
		stream.cancel()
	}
}

// RefreshDiscovery invalidates the cluster loop's cached discovery result.
func (f *Facade) RefreshDiscovery(ctx context.Context) error {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return err
	}
	loop.RefreshDiscovery()
	return nil
}

// ConnectivityEvents returns the reachability detector's event queue for
// this cluster.
func (f *Facade) ConnectivityEvents(ctx context.Context) (*channels.Queue[model.ConnectivityEvent], error) {
	loop, err := f.getLoop(ctx)
	if err != nil {
		return nil, err
	}
	return loop.ConnectivityEvents(), nil
}
