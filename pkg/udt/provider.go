package udt

import (
	"context"
	"sync"
)

// PostID identifies a posted datagram to probe/wait/cancel against. Per-
// endpoint posts use the endpoint's own hash key; the wildcard receive uses
// AnyID.
type PostID uint64

// AnyID is the wildcard post id: "accepts the next incoming datagram from
// any peer."
const AnyID PostID = ^PostID(0)

// ProviderEndpoint is the provider's own handle for a peer endpoint (created
// by the external endpoint-resolution collaborator, out of scope here).
type ProviderEndpoint any

// Provider is the opaque vendor datagram API this package treats as an
// external collaborator: post with an id, probe-by-id, wait-by-id, cancel.
type Provider interface {
	// Post submits sendHeader+sendPayload for delivery to ep, posting a
	// receive for recvHeader+recvPayload under the same id. Returns
	// status.NoResource if the provider cannot accept it right now.
	Post(ctx context.Context, ep ProviderEndpoint, id PostID, sendHeader Header, sendPayload []byte, recvHeader *Header, recvPayload []byte) error

	// Probe reports whether any posted datagram has completed, returning
	// its id. ok is false on NO_MATCH (nothing completed yet).
	Probe(ctx context.Context) (id PostID, ok bool, err error)

	// WaitByID blocks until the post identified by id on ep terminates
	// (success or cancellation), draining it. Used only after Probe has
	// already signaled completion, or during teardown after Cancel.
	WaitByID(ctx context.Context, ep ProviderEndpoint, id PostID) error

	// Cancel requests cancellation of the in-flight post identified by id
	// on ep. Used only at endpoint teardown.
	Cancel(ctx context.Context, ep ProviderEndpoint, id PostID) error

	// Mutex is global_lock: the process-wide lock serializing all provider
	// datagram-API calls. It belongs to the provider, never a package-level
	// singleton.
	Mutex() sync.Locker
}
