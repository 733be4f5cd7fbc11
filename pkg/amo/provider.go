package amo

import (
	"context"
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
)

// RKey is an opaque remote-memory-region handle, resolved by the caller
// before any call in this package — endpoint/rkey lookup is an external
// collaborator, not this package's concern.
type RKey any

// Endpoint identifies the remote peer an atomic operation targets. It is
// passed straight through to Provider; this package does not interpret it.
type Endpoint any

// Provider is the 64-bit atomic primitive surface this package builds on.
// Only 64-bit add/fetch-add/compare-swap are assumed native; everything
// 32-bit is emulated on top of FAdd64 and CSwap64 (see emulate.go).
type Provider interface {
	// Add64 submits a 64-bit add with no result. Returns status.NoResource
	// if the provider has no room to accept it right now (the caller
	// should call Progress and retry); nil on success (the facade treats
	// only nil as success); any other error is a hard failure.
	Add64(ctx context.Context, ep Endpoint, value uint64, remoteAddr uint64, rkey RKey) error

	// FAdd64 submits a 64-bit fetch-add. On completion, result holds the
	// pre-operation value. Returns status.NoResource the same way Add64
	// does, or status.InProgress if the submission succeeded but the
	// fetched value is not yet available (the caller spins Progress).
	FAdd64(ctx context.Context, ep Endpoint, value uint64, remoteAddr uint64, rkey RKey, result *uint64) error

	// CSwap64 submits a 64-bit compare-and-swap. On completion, result
	// holds the pre-operation value (so the caller can tell whether the
	// swap committed by comparing it to compare). Same status contract as
	// FAdd64.
	CSwap64(ctx context.Context, ep Endpoint, compare, swap uint64, remoteAddr uint64, rkey RKey, result *uint64) error

	// Progress drives the provider's internal completion machinery one
	// step forward; it is what turns a NoResource or InProgress status
	// into eventual OK.
	Progress(ctx context.Context)

	// Mutex returns the process-wide lock serializing provider datagram/
	// atomic API calls (global_lock in the underlying provider contract).
	// It is the provider's own lock, never a package-level singleton.
	Mutex() sync.Locker
}

// width is used internally to select the alignment requirement of add/
// fadd/swap/cswap below; exported only via the Width32/Width64 constants.
type width int

const (
	Width32 width = 32
	Width64 width = 64
)

func checkAlignment(remoteAddr uint64, w width) error {
	if remoteAddr%uint64(w/8) != 0 {
		return status.InvalidParam
	}
	return nil
}
