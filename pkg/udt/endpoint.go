package udt

import (
	"context"
	"errors"

	"github.com/archfabric/ugni-core/pkg/status"
	"github.com/rs/xid"
)

// PackFunc packs a caller's payload directly into dst (the descriptor's
// send-payload region) and returns the number of bytes written, the
// AM-bcopy counterpart to AMShort's plain byte-slice copy.
type PackFunc func(dst []byte) (int, error)

// Endpoint is per-peer UDT state: the provider endpoint handle, a globally
// unique hash key used as the provider post id, and the single-outstanding-
// post invariant (spec §4.E: posted_desc != nil <=> outstanding >= 1).
type Endpoint struct {
	iface    *Interface
	provider ProviderEndpoint
	hashKey  PostID

	postedDesc  *desc
	outstanding int
}

func newEndpoint(iface *Interface, provider ProviderEndpoint) *Endpoint {
	return &Endpoint{
		iface:    iface,
		provider: provider,
		hashKey:  PostID(xid.New().Uint64() >> 1), // clear top bit: never collides with AnyID
	}
}

// AMShort posts a short active message: an 8-byte header plus payload,
// copied verbatim into the descriptor's send-payload region.
func (e *Endpoint) AMShort(ctx context.Context, amID uint8, header uint64, payload []byte) error {
	if int(amID) >= e.iface.cfg.maxAM() {
		return status.InvalidParam
	}
	segSize := e.iface.cfg.segSize()
	if len(payload)+8+headerSize > segSize {
		return status.InvalidParam
	}

	return e.send(ctx, amID, func(d *desc) (int, error) {
		putUint64(d.SendPayload[:8], header)
		copy(d.SendPayload[8:], payload)
		return 8 + len(payload), nil
	})
}

// AMBcopy posts an active message whose payload is produced by pack,
// writing directly into the descriptor's send-payload region.
func (e *Endpoint) AMBcopy(ctx context.Context, amID uint8, pack PackFunc) (int, error) {
	if int(amID) >= e.iface.cfg.maxAM() {
		return 0, status.InvalidParam
	}

	var packed int
	err := e.send(ctx, amID, func(d *desc) (int, error) {
		n, err := pack(d.SendPayload)
		packed = n
		return n, err
	})
	return packed, err
}

// send implements the shared am_short/am_bcopy path: reject if already
// posted, acquire a descriptor, let fill write the send payload and report
// its length, post under the provider's global mutex, and record the
// outstanding post on success.
func (e *Endpoint) send(ctx context.Context, amID uint8, fill func(d *desc) (int, error)) error {
	e.iface.asyncBlock()
	defer e.iface.asyncUnblock()

	if e.postedDesc != nil {
		return status.NoResource
	}

	d, err := e.iface.descs.acquire()
	if err != nil {
		return err
	}

	d.RecvHeader = Header{Type: HeaderEmpty}
	length, err := fill(d)
	if err != nil {
		e.iface.descs.release(d)
		return err
	}
	d.SendHeader = Header{AMID: amID, Type: HeaderPayload, Length: uint16(length)}

	e.iface.provider.Mutex().Lock()
	err = e.iface.provider.Post(ctx, e.provider, e.hashKey, d.SendHeader, d.SendPayload[:length], &d.RecvHeader, d.RecvPayload)
	e.iface.provider.Mutex().Unlock()

	if errors.Is(err, status.InvalidParam) {
		// A well-formed post rejected as invalid is a contract violation,
		// not a recoverable status (spec §4.E: "this is a contract
		// violation (assert)").
		e.iface.descs.release(d)
		return ErrProviderContractViolation
	}
	if err != nil {
		e.iface.descs.release(d)
		return err
	}

	d.state = descPosted
	e.postedDesc = d
	e.outstanding++
	e.iface.outstanding++
	return nil
}

// Teardown cancels and drains any in-flight post, then releases its
// descriptor. It acquires the interface's async-block itself; no caller
// may hold it beforehand, or this deadlocks (sync.Mutex is not reentrant).
func (e *Endpoint) Teardown(ctx context.Context) error {
	e.iface.asyncBlock()
	defer e.iface.asyncUnblock()

	if e.postedDesc == nil {
		return nil
	}

	e.iface.provider.Mutex().Lock()
	cancelErr := e.iface.provider.Cancel(ctx, e.provider, e.hashKey)
	waitErr := e.iface.provider.WaitByID(ctx, e.provider, e.hashKey)
	e.iface.provider.Mutex().Unlock()

	if cancelErr != nil {
		return cancelErr
	}
	if waitErr != nil {
		return ErrTeardownNotTerminated
	}

	e.outstanding--
	e.iface.outstanding--
	e.iface.descs.release(e.postedDesc)
	e.postedDesc = nil
	return nil
}

// PendingAdd, PendingPurge and Flush are delegated pass-throughs to the
// interface's arbiter (see arbiter.go): this package does not implement a
// general pending-operation framework, only the hook the progress routine
// dispatches through.
func (e *Endpoint) PendingAdd(op PendingOp) error {
	return e.iface.arbiter.Add(e, op)
}

func (e *Endpoint) PendingPurge() {
	e.iface.arbiter.Purge(e)
}

func (e *Endpoint) Flush() error {
	return e.iface.arbiter.Flush(e)
}

const headerSize = 4 // Header{Type uint8, AMID uint8, Length uint16} wire size

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
