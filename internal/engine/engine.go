// Package engine implements AsyncEngine, the single process-wide host of
// every cluster's ClusterLoop (spec.md §4.6). Consumers on any goroutine
// reach cluster state only through Launch/RunUntilComplete, which post
// closures to the engine's driver goroutine, or through the bounded event
// channels a ClusterLoop's WatchTasks already emit onto.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/kubeobserve/kubeobserve/internal/clusterloop"
	"github.com/kubeobserve/kubeobserve/internal/engineconfig"
	"github.com/kubeobserve/kubeobserve/internal/errcat"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

type clusterLoopEntry struct {
	loop *clusterloop.Loop
	done chan struct{}
	err  error
}

// Engine is the process-wide host of every ClusterLoop. Created once via
// New, shut down once via Shutdown.
type Engine struct {
	rootCtx context.Context
	cancel  context.CancelFunc
	group   *dgroup.Group
	cfg     engineconfig.Env

	dispatch chan func(context.Context)

	mu           sync.Mutex
	clusterLoops map[string]*clusterLoopEntry

	initialized  chan struct{}
	runDone      chan struct{}
	runErr       error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds an Engine rooted in a soft/hard shutdown context pair derived
// from ctx, but does not start it; call Run (typically from
// LaunchInBackgroundThread) to drive it. cfg supplies the per-cluster-loop
// defaults (timeouts, tick intervals) and event queue capacity.
func New(ctx context.Context, cfg engineconfig.Env) *Engine {
	rootCtx, cancel := context.WithCancel(dcontext.WithSoftness(ctx))
	return &Engine{
		rootCtx:      rootCtx,
		cancel:       cancel,
		cfg:          cfg,
		dispatch:     make(chan func(context.Context), 64),
		clusterLoops: make(map[string]*clusterLoopEntry),
		initialized:  make(chan struct{}),
		runDone:      make(chan struct{}),
	}
}

// Run is the engine's driver goroutine: it signals initialized, then serves
// the dispatch channel until its context is cancelled. It returns once every
// in-flight cluster loop has joined.
func (e *Engine) Run(ctx context.Context) error {
	e.group = dgroup.NewGroup(e.rootCtx, dgroup.GroupConfig{
		SoftShutdownTimeout:  5 * time.Second,
		EnableSignalHandling: false,
	})

	close(e.initialized)

	e.group.Go("dispatch", func(ctx context.Context) error {
		for {
			select {
			case fn := <-e.dispatch:
				fn(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})

	err := e.group.Wait()
	e.runErr = err
	close(e.runDone)
	return err
}

// LaunchInBackgroundThread starts Run on a new goroutine and blocks the
// caller until the engine's initialization signal fires.
func (e *Engine) LaunchInBackgroundThread(ctx context.Context) {
	go func() {
		if err := e.Run(ctx); err != nil {
			dlog.Errorf(ctx, "engine run: %v", err)
		}
	}()
	<-e.initialized
}

// GetClusterLoop returns the ClusterLoop for clusterCtx, creating and
// starting it on demand, and waits for it to finish initializing.
func (e *Engine) GetClusterLoop(ctx context.Context, clusterCtx model.Context, enableConnectivity bool) (*clusterloop.Loop, error) {
	key := clusterCtx.Key()

	e.mu.Lock()
	entry, exists := e.clusterLoops[key]
	if !exists {
		loop, err := clusterloop.New(clusterCtx, e.cfg)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		entry = &clusterLoopEntry{loop: loop, done: make(chan struct{})}
		e.clusterLoops[key] = entry

		e.group.Go("cluster-loop:"+clusterCtx.ShortName, func(ctx context.Context) error {
			err := loop.Run(ctx, enableConnectivity)
			entry.err = err
			close(entry.done)
			return err
		})
	}
	e.mu.Unlock()

	select {
	case <-entry.loop.Initialized():
		return entry.loop, nil
	case <-ctx.Done():
		return nil, errcat.Cancelled.New(ctx.Err())
	}
}

// Launch posts fn to the engine's driver goroutine and returns immediately
// without waiting for it to run. Dropped silently if the engine has already
// been asked to shut down.
func (e *Engine) Launch(fn func(ctx context.Context)) {
	select {
	case e.dispatch <- fn:
	case <-e.rootCtx.Done():
	}
}

// Go registers fn as a named goroutine under the engine's own dgroup.Group,
// so a panic or error in it is captured and joined by Shutdown instead of
// running unsupervised. Callers must only use this once the engine is
// known to be running (e.g. after a GetClusterLoop/RunUntilComplete call
// has already returned successfully).
func (e *Engine) Go(name string, fn func(ctx context.Context) error) {
	e.group.Go(name, fn)
}

type result[T any] struct {
	value T
	err   error
}

// RunUntilComplete posts fn to the engine's driver goroutine and blocks the
// calling goroutine until it resolves, returning its result. There is no
// busy-wait: the caller blocks on a completion channel.
func RunUntilComplete[T any](e *Engine, fn func(ctx context.Context) (T, error)) (T, error) {
	resultCh := make(chan result[T], 1)
	posted := func(ctx context.Context) {
		v, err := fn(ctx)
		resultCh <- result[T]{value: v, err: err}
	}

	select {
	case e.dispatch <- posted:
	case <-e.rootCtx.Done():
		var zero T
		return zero, errcat.Cancelled.New(e.rootCtx.Err())
	}

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-e.rootCtx.Done():
		var zero T
		return zero, errcat.Cancelled.New(e.rootCtx.Err())
	}
}

// Shutdown cancels every outstanding task and cluster loop and joins the
// engine thread, aggregating per-cluster-loop join errors. Idempotent.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.cancel()

		e.mu.Lock()
		entries := make([]*clusterLoopEntry, 0, len(e.clusterLoops))
		for _, entry := range e.clusterLoops {
			entries = append(entries, entry)
		}
		e.mu.Unlock()

		for _, entry := range entries {
			<-entry.done
		}
		<-e.runDone

		var merr *multierror.Error
		for _, entry := range entries {
			if entry.err != nil {
				merr = multierror.Append(merr, entry.err)
			}
		}
		e.shutdownErr = merr.ErrorOrNil()
	})
	return e.shutdownErr
}
