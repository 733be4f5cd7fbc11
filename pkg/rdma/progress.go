// Package rdma implements the reference RDMA/FMA completion-queue progress
// loop (spec §4.G), kept only for symmetry with pkg/udt's progress
// routine — bulk RDMA transfer itself is a Non-goal.
package rdma

import (
	"context"
	"errors"
)

// Descriptor is a completion-queue entry: an optional completion callback,
// the endpoint it belongs to, and whether it is currently safe to recycle.
type Descriptor struct {
	Complete       func(err error)
	Endpoint       *EndpointStats
	NotReadyToFree bool
}

// EndpointStats tracks the outstanding-post counter a completed descriptor
// decrements — the only per-endpoint state this reference loop needs.
type EndpointStats struct {
	Outstanding int
}

// CompletionQueue is the opaque provider collaborator: get one completed
// event, or report none available.
type CompletionQueue interface {
	// GetEvent returns the next completed Descriptor, or ok=false if the
	// queue is currently empty.
	GetEvent(ctx context.Context) (d *Descriptor, ok bool, err error)
}

// DescriptorPool releases a Descriptor once its completion has been
// delivered and it is not held not-ready-to-free.
type DescriptorPool interface {
	Release(d *Descriptor)
}

// PendingDispatcher dispatches one pending-queue entry via arbitration, the
// same hook pkg/udt's progress routine ends on.
type PendingDispatcher interface {
	DispatchOne(ctx context.Context)
}

// Outstanding is the interface-wide outstanding-post counter.
type Outstanding interface {
	Dec()
}

// Progress drains the completion queue event by event, invoking each
// descriptor's completion callback and releasing it, then dispatches one
// pending-queue entry — the reference loop described in spec §4.G.
func Progress(ctx context.Context, cq CompletionQueue, pool DescriptorPool, iface Outstanding, dispatcher PendingDispatcher) error {
	for {
		d, ok, err := cq.GetEvent(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := drainEvent(d, pool, iface); err != nil {
			return err
		}
	}
	dispatcher.DispatchOne(ctx)
	return nil
}

func drainEvent(d *Descriptor, pool DescriptorPool, iface Outstanding) error {
	if d == nil {
		return errors.New("rdma: nil completion descriptor")
	}
	if d.Complete != nil {
		d.Complete(nil)
	}
	iface.Dec()
	if d.Endpoint != nil {
		d.Endpoint.Outstanding--
	}
	if !d.NotReadyToFree {
		pool.Release(d)
	}
	return nil
}
