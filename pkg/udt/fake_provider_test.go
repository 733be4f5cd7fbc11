package udt

import (
	"context"
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
)

// postedItem is one in-flight post tracked by fakeProvider: the header/
// payload given to Post, delivered back verbatim to the completer on the
// other side (a loopback, not a real two-sided exchange — sufficient to
// drive the Interface's own completion bookkeeping under test).
type postedItem struct {
	ep     ProviderEndpoint
	header Header
	recvH  *Header
	recvP  []byte
	done   bool
}

// fakeProvider is an in-memory Provider double: Probe reports ids pushed
// onto a completion queue by the test via complete, WaitByID copies the
// recorded reply header/payload into the caller's recv regions. Mutex()
// hands out global, a lock distinct from mu, since callers hold it across
// WaitByID, which takes mu itself.
type fakeProvider struct {
	global sync.Mutex
	mu     sync.Mutex

	posts     map[PostID]*postedItem
	completed []PostID

	busy     int             // number of NoResource responses to return before accepting a Post
	stuckIDs map[PostID]bool // ids whose WaitByID never reports termination
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{posts: make(map[PostID]*postedItem)}
}

func (p *fakeProvider) Mutex() sync.Locker { return &p.global }

func (p *fakeProvider) Post(ctx context.Context, ep ProviderEndpoint, id PostID, sendHeader Header, sendPayload []byte, recvHeader *Header, recvPayload []byte) error {
	if p.busy > 0 {
		p.busy--
		return status.NoResource
	}
	p.posts[id] = &postedItem{ep: ep, header: sendHeader, recvH: recvHeader, recvP: recvPayload}
	return nil
}

func (p *fakeProvider) Probe(ctx context.Context) (PostID, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.completed) == 0 {
		return 0, false, nil
	}
	id := p.completed[0]
	p.completed = p.completed[1:]
	return id, true, nil
}

func (p *fakeProvider) WaitByID(ctx context.Context, ep ProviderEndpoint, id PostID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stuckIDs[id] {
		return status.NoResource
	}
	delete(p.posts, id)
	return nil
}

// Cancel marks the post as canceled without removing it: a well-behaved
// provider still requires a following WaitByID to drain the terminated
// post, which is what Endpoint.Teardown does.
func (p *fakeProvider) Cancel(ctx context.Context, ep ProviderEndpoint, id PostID) error {
	return nil
}

// markStuck makes a later WaitByID(id) report non-termination, for
// exercising the ErrTeardownNotTerminated path.
func (p *fakeProvider) markStuck(id PostID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stuckIDs == nil {
		p.stuckIDs = make(map[PostID]bool)
	}
	p.stuckIDs[id] = true
}

// deliver simulates a reply arriving for id: writes header/payload into the
// originally posted recv regions and queues id for the next Probe.
func (p *fakeProvider) deliver(id PostID, header Header, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.posts[id]
	if !ok {
		return
	}
	*item.recvH = header
	copy(item.recvP, payload)
	item.done = true
	p.completed = append(p.completed, id)
}
