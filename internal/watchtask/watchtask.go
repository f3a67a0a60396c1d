// Package watchtask implements the list-then-watch state machine for a
// single selector (spec.md §4.4): Listing, Watching, and Terminated, with
// the retry/backoff policy that turns ApiClient's single-attempt methods
// into a long-lived, self-healing stream.
package watchtask

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datawire/dlib/dlog"

	"github.com/kubeobserve/kubeobserve/internal/apiclient"
	"github.com/kubeobserve/kubeobserve/internal/channels"
	"github.com/kubeobserve/kubeobserve/internal/cursor"
	"github.com/kubeobserve/kubeobserve/internal/errcat"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

const (
	listMaxRetries  = 3
	listRetryDelay  = 300 * time.Millisecond
	watchRetryDelay = 1 * time.Second
)

// State is one of the task's list-then-watch states.
type State int

const (
	StateListing State = iota
	StateWatching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "Listing"
	case StateWatching:
		return "Watching"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Task owns one selector's list-then-watch stream for the lifetime of its
// Run call; it is cancelled by cancelling the context passed to Run.
type Task struct {
	ID         uuid.UUID
	clusterCtx model.Context
	selector   model.ObjectSelector
	client     *apiclient.Client
	cursor     *cursor.Cursor
	out        *channels.Queue[model.ObjectEvent]

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// New builds a Task. Run must be called exactly once to drive it.
func New(clusterCtx model.Context, selector model.ObjectSelector, client *apiclient.Client, cur *cursor.Cursor, out *channels.Queue[model.ObjectEvent]) *Task {
	return &Task{
		ID:         uuid.New(),
		clusterCtx: clusterCtx,
		selector:   selector,
		client:     client,
		cursor:     cur,
		out:        out,
		done:       make(chan struct{}),
	}
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Done is closed once Run returns, i.e. the task reached Terminated.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Run drives the state machine until ctx is cancelled or a fatal error
// occurs. It always returns once it reaches Terminated.
func (t *Task) Run(ctx context.Context) {
	defer close(t.done)
	t.setState(StateListing)

	for {
		if ctx.Err() != nil {
			t.setState(StateTerminated)
			return
		}

		switch t.State() {
		case StateListing:
			items, err := t.listWithRetries(ctx)
			if err != nil {
				if !errcat.Is(err, errcat.Cancelled) {
					t.emitError(err)
				}
				t.setState(StateTerminated)
				return
			}
			t.emitListed(items)
			t.setState(StateWatching)

		case StateWatching:
			err := t.client.Watch(ctx, t.selector, t.out)
			switch errcat.GetCategory(err) {
			case errcat.OK:
				if !t.sleep(ctx, watchRetryDelay) {
					t.setState(StateTerminated)
					return
				}
			case errcat.Retryable:
				dlog.Errorf(ctx, "[%s] %s: retryable watch error: %v", t.clusterCtx.ShortName, t.selector.Pretty(), err)
				if !t.sleep(ctx, watchRetryDelay) {
					t.setState(StateTerminated)
					return
				}
			case errcat.ResourceVersionTooOld:
				t.observeTooOld(err)
				// Stay in Watching, no sleep: the cursor already carries the
				// version the server said was acceptable.
			case errcat.Cancelled:
				t.setState(StateTerminated)
				return
			default: // Fatal
				t.emitError(err)
				t.setState(StateTerminated)
				return
			}

		case StateTerminated:
			return
		}
	}
}

// listWithRetries performs up to listMaxRetries+1 list attempts, sleeping
// listRetryDelay between retryable failures. A non-retryable error or the
// final retryable failure is returned as-is.
func (t *Task) listWithRetries(ctx context.Context) ([]model.Object, error) {
	var lastErr error
	for attempt := 0; attempt <= listMaxRetries; attempt++ {
		items, err := t.client.List(ctx, t.selector)
		if err == nil {
			return items, nil
		}
		lastErr = err

		if !errcat.Is(err, errcat.Retryable) {
			return nil, err
		}
		if attempt == listMaxRetries {
			break
		}
		dlog.Errorf(ctx, "[%s] %s: retryable list error (attempt %d/%d): %v",
			t.clusterCtx.ShortName, t.selector.Pretty(), attempt+1, listMaxRetries+1, err)
		if !t.sleep(ctx, listRetryDelay) {
			return nil, errcat.Cancelled.New(ctx.Err())
		}
	}
	return nil, lastErr
}

// emitListed pushes one ActionListed event per item.
func (t *Task) emitListed(items []model.Object) {
	for _, item := range items {
		t.out.Send(model.ObjectEvent{Context: t.clusterCtx, Action: model.ActionListed, Object: item, TimeCreated: time.Now()})
	}
}

// emitError pushes the terminal ActionError sentinel.
func (t *Task) emitError(err error) {
	t.out.Send(model.ObjectEvent{Context: t.clusterCtx, Action: model.ActionError, Err: err, TimeCreated: time.Now()})
}

func (t *Task) observeTooOld(err error) {
	var apiErr *model.ApiError
	if !errors.As(err, &apiErr) {
		return
	}
	if v, ok := apiErr.ExtractResourceVersion(); ok {
		t.cursor.Observe(v)
	}
}

func (t *Task) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
