// Package clusterloop implements the per-Context owner of one cluster's
// HTTP session, credentials, resource-version cursor, and watch tasks
// (spec.md §4.5).
package clusterloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/kubeobserve/kubeobserve/internal/apiclient"
	"github.com/kubeobserve/kubeobserve/internal/auth"
	"github.com/kubeobserve/kubeobserve/internal/channels"
	"github.com/kubeobserve/kubeobserve/internal/cursor"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/model"
	"github.com/kubeobserve/kubeobserve/internal/transport"
	"github.com/kubeobserve/kubeobserve/internal/watchtask"
)

// connectivityCap is the reachability detector's own queue depth — an
// implementation detail, not a process-wide setting engineconfig exposes.
const connectivityCap = 16

// ErrNoSuchWatch is returned by StopWatch when selector has no registered task.
var ErrNoSuchWatch = errors.New("no such watch")

type watchHandle struct {
	selector   model.ObjectSelector
	task       *watchtask.Task
	cancel     context.CancelFunc
	loggedDone bool
}

// Loop owns one cluster's HTTP session, AuthProvider, ResourceVersionCursor,
// ApiClient, and its live WatchTasks. Created on demand, destroyed only on
// engine shutdown.
type Loop struct {
	clusterCtx model.Context
	client     *apiclient.Client
	cursor     *cursor.Cursor

	supervisorTick   time.Duration
	connectivityTick time.Duration

	rootCtx context.Context
	group   *dgroup.Group

	mu      sync.Mutex
	watches map[string]*watchHandle

	initialized chan struct{}

	discoveryMu         sync.Mutex
	discoveryGroups     []model.ApiGroup
	discoveryLoaded     bool
	discoveryByEndpoint map[string][]model.ApiResource

	connectivity    *channels.Queue[model.ConnectivityEvent]
	reachable       bool
	everObserved    bool
	lastReachable   time.Time
	lastUnreachable time.Time
}

// New builds a Loop for clusterCtx, configured from cfg. Run must be called
// exactly once to drive it.
func New(clusterCtx model.Context, cfg engineconfig.Env) (*Loop, error) {
	httpClient, err := transport.New(clusterCtx, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("building transport for %s: %w", clusterCtx.ShortName, err)
	}
	cur := &cursor.Cursor{}
	authP := auth.NewProvider(clusterCtx)
	client := apiclient.New(httpClient, clusterCtx, authP, cur)

	return &Loop{
		clusterCtx:          clusterCtx,
		client:              client,
		cursor:              cur,
		supervisorTick:      cfg.SupervisorTick,
		connectivityTick:    cfg.ConnectivityTick,
		watches:             make(map[string]*watchHandle),
		initialized:         make(chan struct{}),
		discoveryByEndpoint: make(map[string][]model.ApiResource),
		connectivity:        channels.NewQueue[model.ConnectivityEvent](connectivityCap),
	}, nil
}

// Initialized is closed once Run has started the loop's supervisor and the
// loop is ready to accept start/stop/list calls.
func (l *Loop) Initialized() <-chan struct{} {
	return l.initialized
}

// Context returns the cluster Context this loop owns.
func (l *Loop) Context() model.Context {
	return l.clusterCtx
}

// Run drives the supervisor tick and, if enabled, the connectivity
// detector, until ctx is cancelled. It cancels every live WatchTask before
// returning. Must be called exactly once.
func (l *Loop) Run(ctx context.Context, enableConnectivity bool) error {
	l.rootCtx = ctx
	l.group = dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	close(l.initialized)

	l.group.Go("supervisor", func(ctx context.Context) error {
		l.superviseWatches(ctx)
		return nil
	})
	if enableConnectivity {
		l.group.Go("connectivity", func(ctx context.Context) error {
			l.runConnectivityDetector(ctx)
			return nil
		})
	}

	err := l.group.Wait()

	l.mu.Lock()
	for _, h := range l.watches {
		h.cancel()
	}
	l.mu.Unlock()

	return err
}

func (l *Loop) superviseWatches(ctx context.Context) {
	ticker := time.NewTicker(l.supervisorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.logCompletedWatches(ctx)
		}
	}
}

func (l *Loop) logCompletedWatches(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, h := range l.watches {
		if h.loggedDone {
			continue
		}
		select {
		case <-h.task.Done():
			dlog.Infof(ctx, "[%s] watch %s (%s) completed in state %s",
				l.clusterCtx.ShortName, key, h.task.ID, h.task.State())
			h.loggedDone = true
		default:
		}
	}
}

// StartWatch registers a WatchTask for selector, emitting events onto out.
// Idempotent: if selector is already being watched, the existing task keeps
// running and out is ignored.
func (l *Loop) StartWatch(selector model.ObjectSelector, out *channels.Queue[model.ObjectEvent]) {
	<-l.initialized
	key := selector.Key()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.watches[key]; exists {
		return
	}

	taskCtx, cancel := context.WithCancel(l.rootCtx)
	task := watchtask.New(l.clusterCtx, selector, l.client, l.cursor, out)
	l.watches[key] = &watchHandle{selector: selector, task: task, cancel: cancel}
	l.group.Go("watch:"+key, func(context.Context) error {
		task.Run(taskCtx)
		return nil
	})
}

// StopWatch cancels and removes selector's WatchTask.
func (l *Loop) StopWatch(selector model.ObjectSelector) error {
	<-l.initialized
	key := selector.Key()

	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.watches[key]
	if !ok {
		return ErrNoSuchWatch
	}
	h.cancel()
	delete(l.watches, key)
	return nil
}

// RootContext returns the context this loop was Run with, waiting for
// initialization first. Intended for callers that need to derive their own
// cancellable child context tied to the loop's lifetime (e.g. Facade's pod
// log streams, which aren't WatchTasks).
func (l *Loop) RootContext() context.Context {
	<-l.initialized
	return l.rootCtx
}

// Client returns the loop's ApiClient, waiting for initialization first.
func (l *Loop) Client() *apiclient.Client {
	<-l.initialized
	return l.client
}

// ListObjects is a pass-through to the ApiClient, waiting for initialization.
func (l *Loop) ListObjects(ctx context.Context, selector model.ObjectSelector) ([]model.Object, error) {
	<-l.initialized
	return l.client.List(ctx, selector)
}

// ListApiGroups returns the cached discovery result, populating it on first
// call. RefreshDiscovery invalidates the cache.
func (l *Loop) ListApiGroups(ctx context.Context) ([]model.ApiGroup, error) {
	<-l.initialized

	l.discoveryMu.Lock()
	if l.discoveryLoaded {
		groups := l.discoveryGroups
		l.discoveryMu.Unlock()
		return groups, nil
	}
	l.discoveryMu.Unlock()

	groups, err := l.client.ListApiGroups(ctx)
	if err != nil {
		return nil, err
	}

	l.discoveryMu.Lock()
	l.discoveryGroups = groups
	l.discoveryLoaded = true
	l.discoveryMu.Unlock()
	return groups, nil
}

// ListApiResources returns the cached per-group discovery result, populating
// it on first call for that group.
func (l *Loop) ListApiResources(ctx context.Context, group model.ApiGroup) ([]model.ApiResource, error) {
	<-l.initialized

	l.discoveryMu.Lock()
	if cached, ok := l.discoveryByEndpoint[group.Endpoint]; ok {
		l.discoveryMu.Unlock()
		return cached, nil
	}
	l.discoveryMu.Unlock()

	resources, err := l.client.ListApiResources(ctx, group)
	if err != nil {
		return nil, err
	}

	l.discoveryMu.Lock()
	l.discoveryByEndpoint[group.Endpoint] = resources
	l.discoveryMu.Unlock()
	return resources, nil
}

// RefreshDiscovery invalidates the cached ListApiGroups/ListApiResources
// results (SPEC_FULL.md §4.3).
func (l *Loop) RefreshDiscovery() {
	l.discoveryMu.Lock()
	l.discoveryLoaded = false
	l.discoveryGroups = nil
	l.discoveryByEndpoint = make(map[string][]model.ApiResource)
	l.discoveryMu.Unlock()
}

// ConnectivityEvents returns the reachability detector's event queue. Empty
// (never sent to) if the detector was not enabled for this loop.
func (l *Loop) ConnectivityEvents() *channels.Queue[model.ConnectivityEvent] {
	return l.connectivity
}

func (l *Loop) runConnectivityDetector(ctx context.Context) {
	ticker := time.NewTicker(l.connectivityTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.checkConnectivity(ctx)
		}
	}
}

func (l *Loop) checkConnectivity(ctx context.Context) {
	_, err := l.client.ListApiGroups(ctx)
	now := time.Now()

	if err == nil {
		l.lastReachable = now
		if !l.everObserved || !l.reachable {
			l.reachable = true
			l.everObserved = true
			l.emitConnectivity(true, now)
		}
		return
	}

	l.lastUnreachable = now
	if !l.everObserved || l.reachable {
		l.reachable = false
		l.everObserved = true
		dlog.Errorf(ctx, "[%s] connectivity check failed: %v", l.clusterCtx.ShortName, err)
		l.emitConnectivity(false, now)
	}
}

func (l *Loop) emitConnectivity(becameReachable bool, now time.Time) {
	l.connectivity.Send(model.ConnectivityEvent{
		Context:             l.clusterCtx,
		BecameReachable:     becameReachable,
		TimeCreated:         now,
		TimeLastReachable:   l.lastReachable,
		TimeLastUnreachable: l.lastUnreachable,
	})
}
