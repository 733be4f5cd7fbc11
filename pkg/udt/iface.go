package udt

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// slowTick is the nominal async-timer period; the timer actually sweeps at
// slowTick/4 for finer-grained completion detection between sync progress
// calls.
const slowTick = 100 * time.Millisecond

// CapFlag is a bitmask of capabilities reported by Query.
type CapFlag int

const (
	CapAMShort CapFlag = 1 << iota
	CapAMBcopy
	CapConnectToIface
	CapPending
	CapAMCBSync
	CapAMCBAsync
)

// Attr is the capability/size/cost report Query returns (spec §4.F).
type Attr struct {
	Flags           CapFlag
	MaxShort        int
	MaxBcopy        int
	OverheadSeconds float64
	LatencySeconds  float64
}

// Interface owns the descriptor and queued-record pools, the wildcard
// receive, the deferred-sync FIFO, and the pending-queue arbiter — the
// state shared across every endpoint created on it.
type Interface struct {
	cfg      Config
	provider Provider
	log      *logrus.Logger

	descs   *descPool
	records *recordPool
	arbiter *arbiter

	asyncMu sync.Mutex

	epAny   ProviderEndpoint
	descAny *desc

	endpointsMu sync.Mutex
	endpoints   map[PostID]*Endpoint

	amHandlersMu sync.Mutex
	amHandlers   map[uint8]amEntry

	syncEventsMu sync.Mutex
	syncEvents   []*queuedRecord

	outstanding int

	stopTimer context.CancelFunc
}

// NewInterface builds a UDT interface around provider, using epAny (a
// provider endpoint dedicated to the wildcard receive — endpoint creation
// itself is an external collaborator, out of scope here) to post the
// initial wildcard receive.
func NewInterface(ctx context.Context, provider Provider, epAny ProviderEndpoint, cfg Config, log *logrus.Logger) (*Interface, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ifc := &Interface{
		cfg:        cfg,
		provider:   provider,
		log:        log,
		descs:      newDescPool(cfg, log),
		records:    newRecordPool(),
		arbiter:    newArbiter(),
		epAny:      epAny,
		endpoints:  make(map[PostID]*Endpoint),
		amHandlers: make(map[uint8]amEntry),
	}

	d, err := ifc.descs.acquire()
	if err != nil {
		return nil, err
	}
	ifc.descAny = d
	if err := ifc.postWildcardDesc(ctx, d); err != nil {
		return nil, err
	}
	return ifc, nil
}

// NewEndpoint creates a peer endpoint on this interface, registering it
// under a fresh hash key so reply datagrams can be routed back to it.
func (ifc *Interface) NewEndpoint(provider ProviderEndpoint) *Endpoint {
	ep := newEndpoint(ifc, provider)
	ifc.endpointsMu.Lock()
	ifc.endpoints[ep.hashKey] = ep
	ifc.endpointsMu.Unlock()
	return ep
}

// RemoveEndpoint unregisters ep from id-based lookup, e.g. after teardown.
func (ifc *Interface) RemoveEndpoint(ep *Endpoint) {
	ifc.endpointsMu.Lock()
	delete(ifc.endpoints, ep.hashKey)
	ifc.endpointsMu.Unlock()
	ifc.arbiter.Purge(ep)
}

func (ifc *Interface) lookupEndpoint(id PostID) *Endpoint {
	ifc.endpointsMu.Lock()
	defer ifc.endpointsMu.Unlock()
	return ifc.endpoints[id]
}

func (ifc *Interface) asyncBlock()   { ifc.asyncMu.Lock() }
func (ifc *Interface) asyncUnblock() { ifc.asyncMu.Unlock() }

func (ifc *Interface) postWildcardDesc(ctx context.Context, d *desc) error {
	d.RecvHeader = Header{}
	ifc.provider.Mutex().Lock()
	err := ifc.provider.Post(ctx, ifc.epAny, AnyID, Header{Type: HeaderEmpty}, nil, &d.RecvHeader, d.RecvPayload)
	ifc.provider.Mutex().Unlock()
	if err != nil {
		return err
	}
	d.state = descPosted
	return nil
}

func (ifc *Interface) enqueueSync(rec *queuedRecord) {
	ifc.syncEventsMu.Lock()
	ifc.syncEvents = append(ifc.syncEvents, rec)
	ifc.syncEventsMu.Unlock()
}

// dispatchSyncQueue drains one queued record: pop the head, release the
// record itself, then invoke its callback synchronously. On OK the
// descriptor returns to the pool; on non-OK the user keeps it (the
// back-pointer is already wired by attemptAM's RecvDescriptor).
func (ifc *Interface) dispatchSyncQueue() bool {
	ifc.syncEventsMu.Lock()
	if len(ifc.syncEvents) == 0 {
		ifc.syncEventsMu.Unlock()
		return false
	}
	rec := ifc.syncEvents[0]
	ifc.syncEvents = ifc.syncEvents[1:]
	ifc.syncEventsMu.Unlock()

	d := rec.d
	ifc.records.release(rec)

	if err := ifc.attemptAM(d); err == nil {
		ifc.descs.release(d)
	}
	return true
}

// wildcardHandler implements §4.F's wildcard-datagram handler.
func (ifc *Interface) wildcardHandler(ctx context.Context, isAsync bool) {
	ifc.provider.Mutex().Lock()
	err := ifc.provider.WaitByID(ctx, ifc.epAny, AnyID)
	ifc.provider.Mutex().Unlock()
	if err != nil {
		ifc.log.WithError(err).Warn("udt: wildcard wait-by-id failed")
		return
	}

	d := ifc.descAny
	switch {
	case d.RecvHeader.Type != HeaderPayload:
		ifc.log.Warn("udt: wildcard receive observed a non-payload header")
	case ifc.requiresSync(d.RecvHeader.AMID) && isAsync:
		ifc.enqueueSync(ifc.records.acquire(d))
	default:
		if err := ifc.attemptAM(d); err == nil {
			ifc.descs.release(d)
		}
		// non-OK: d stays with the user, already wired via userDescriptor.
	}

	next, err := ifc.descs.acquire()
	if err != nil {
		ifc.log.WithError(err).Error("udt: failed to acquire descriptor to re-post wildcard receive")
		ifc.descAny = nil
		return
	}
	ifc.descAny = next
	if err := ifc.postWildcardDesc(ctx, next); err != nil {
		ifc.log.WithError(err).Error("udt: failed to re-post wildcard receive")
	}
}

// replyHandler implements §4.F's per-endpoint reply handler.
func (ifc *Interface) replyHandler(ctx context.Context, id PostID, isAsync bool) {
	ep := ifc.lookupEndpoint(id)
	if ep == nil {
		ifc.log.Warnf("udt: reply datagram for unknown endpoint id %d", id)
		return
	}

	ifc.provider.Mutex().Lock()
	err := ifc.provider.WaitByID(ctx, ep.provider, id)
	ifc.provider.Mutex().Unlock()
	if err != nil {
		ifc.log.WithError(err).Warn("udt: reply wait-by-id failed")
		return
	}

	d := ep.postedDesc
	switch d.RecvHeader.Type {
	case HeaderPayload:
		if ifc.requiresSync(d.RecvHeader.AMID) && isAsync {
			ifc.enqueueSync(ifc.records.acquire(d))
		} else if err := ifc.attemptAM(d); err == nil {
			ifc.descs.release(d)
		}
	case HeaderEmpty:
		ifc.descs.release(d)
	}

	ifc.outstanding--
	ep.outstanding--
	ep.postedDesc = nil
}

func (ifc *Interface) progressCore(ctx context.Context, isAsync bool) {
	id, ok, err := ifc.provider.Probe(ctx)
	if err != nil {
		ifc.log.WithError(err).Warn("udt: probe failed")
		return
	}
	if !ok {
		return
	}
	if id == AnyID {
		ifc.wildcardHandler(ctx, isAsync)
		return
	}
	ifc.replyHandler(ctx, id, isAsync)
}

// Progress is the sync progress entry point: drain the deferred-sync queue,
// run one core-routine pass in sync context, then dispatch one pending-queue
// entry.
func (ifc *Interface) Progress(ctx context.Context) {
	ifc.asyncBlock()
	defer ifc.asyncUnblock()

	for ifc.dispatchSyncQueue() {
	}
	ifc.progressCore(ctx, false)
	ifc.arbiter.dispatchOne(ctx)
}

// AsyncTick is the async (slow-timer) progress entry point: one core-routine
// pass in async context, then one pending-queue dispatch.
func (ifc *Interface) AsyncTick(ctx context.Context) {
	ifc.asyncBlock()
	defer ifc.asyncUnblock()

	ifc.progressCore(ctx, true)
	ifc.arbiter.dispatchOne(ctx)
}

// StartAsyncTimer runs AsyncTick on a ticker at slowTick/4, the async
// progress path's registered period, until the returned func is called.
func (ifc *Interface) StartAsyncTimer(ctx context.Context) (stop func()) {
	tctx, cancel := context.WithCancel(ctx)
	ifc.stopTimer = cancel
	go func() {
		ticker := time.NewTicker(slowTick / 4)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				ifc.AsyncTick(tctx)
			}
		}
	}()
	return cancel
}

// ReleaseAMDesc returns a previously rejected receive descriptor to the
// pool — the only path by which a descriptor a callback declined to OK
// returns to circulation.
func (ifc *Interface) ReleaseAMDesc(rd *RecvDescriptor) {
	if rd.owner == nil {
		return
	}
	ifc.descs.release(rd.owner)
}

// Query reports the capability flags and sizes upper layers need.
func (ifc *Interface) Query() Attr {
	segSize := ifc.cfg.segSize()
	return Attr{
		Flags:           CapAMShort | CapAMBcopy | CapConnectToIface | CapPending | CapAMCBSync | CapAMCBAsync,
		MaxShort:        segSize - headerSize,
		MaxBcopy:        segSize - headerSize,
		OverheadSeconds: 1e-6,
		LatencySeconds:  40e-6,
	}
}

// Cleanup cancels the wildcard receive, drains the deferred-sync queue and
// empties the descriptor pool, in teardown order: stop new work first, then
// reclaim resources. The queued-record pool is left as it is.
func (ifc *Interface) Cleanup(ctx context.Context) error {
	if ifc.stopTimer != nil {
		ifc.stopTimer()
	}

	ifc.provider.Mutex().Lock()
	err := ifc.provider.Cancel(ctx, ifc.epAny, AnyID)
	ifc.provider.Mutex().Unlock()
	if err != nil {
		return err
	}

	if ifc.descAny != nil {
		ifc.descs.release(ifc.descAny)
		ifc.descAny = nil
	}

	for ifc.dispatchSyncQueue() {
	}

	if err := ifc.descs.cleanup(true); err != nil {
		return err
	}
	return nil
}
