package udt

import (
	"context"
	"errors"
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
)

// PendingOp is a caller-supplied operation retried by the pending-queue
// arbiter, typically a send that previously returned NoResource.
type PendingOp func(ctx context.Context) error

type pendingEntry struct {
	ep *Endpoint
	op PendingOp
}

// arbiter is the pending-queue dispatcher both Interface.Progress (sync)
// and the async slow timer drain exactly one entry from per pass, closing
// every progress routine with a single chance for deferred work to retry.
type arbiter struct {
	mu    sync.Mutex
	queue []pendingEntry
}

func newArbiter() *arbiter {
	return &arbiter{}
}

func (a *arbiter) Add(ep *Endpoint, op PendingOp) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, pendingEntry{ep: ep, op: op})
	return nil
}

func (a *arbiter) Purge(ep *Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.queue[:0]
	for _, e := range a.queue {
		if e.ep != ep {
			kept = append(kept, e)
		}
	}
	a.queue = kept
}

// Flush synchronously drains every pending entry belonging to ep.
func (a *arbiter) Flush(ep *Endpoint) error {
	for {
		a.mu.Lock()
		idx := -1
		for i, e := range a.queue {
			if e.ep == ep {
				idx = i
				break
			}
		}
		if idx == -1 {
			a.mu.Unlock()
			return nil
		}
		e := a.queue[idx]
		a.queue = append(a.queue[:idx], a.queue[idx+1:]...)
		a.mu.Unlock()

		if err := e.op(context.Background()); err != nil {
			return err
		}
	}
}

// dispatchOne runs the single entry at the head of the queue, re-enqueueing
// it at the tail if it reports NoResource so the next progress pass retries
// it, matching "dispatch one pending-queue entry via arbitration".
func (a *arbiter) dispatchOne(ctx context.Context) {
	a.mu.Lock()
	if len(a.queue) == 0 {
		a.mu.Unlock()
		return
	}
	e := a.queue[0]
	a.queue = a.queue[1:]
	a.mu.Unlock()

	if err := e.op(ctx); err != nil && errors.Is(err, status.NoResource) {
		a.mu.Lock()
		a.queue = append(a.queue, e)
		a.mu.Unlock()
	}
}
