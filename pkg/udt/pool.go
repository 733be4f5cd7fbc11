package udt

import (
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
	"github.com/sirupsen/logrus"
)

// descPool is free_desc: a growable set of descriptors, each backed by a
// segment-sized send region and a headroom-plus-segment receive region,
// grown in batches capped by Config.MaxBufs. Its own mutex guards the free
// list and the allocation count.
type descPool struct {
	mu        sync.Mutex
	cfg       Config
	free      []*desc
	allocated int
	log       *logrus.Logger
}

func newDescPool(cfg Config, log *logrus.Logger) *descPool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &descPool{cfg: cfg, log: log}
}

// acquire returns a descriptor from the pool, growing it first if empty and
// under the MaxBufs cap. A failed acquisition is translated to NoResource at
// the caller per spec §4.D.
func (p *descPool) acquire() (*desc, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		if err := p.growLocked(); err != nil {
			return nil, err
		}
	}
	if len(p.free) == 0 {
		return nil, status.NoResource
	}

	n := len(p.free)
	d := p.free[n-1]
	p.free = p.free[:n-1]
	return d, nil
}

func (p *descPool) release(d *desc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d.reset()
	p.free = append(p.free, d)
}

func (p *descPool) growLocked() error {
	if p.cfg.MaxBufs > 0 && p.allocated >= p.cfg.MaxBufs {
		return status.NoResource
	}

	batch := growthBatch
	if p.cfg.MaxBufs > 0 && p.allocated+batch > p.cfg.MaxBufs {
		batch = p.cfg.MaxBufs - p.allocated
	}

	segSize := p.cfg.segSize()
	headroom := p.cfg.rxHeadroom()
	recvSize := headroom + segSize
	stride := segSize + recvSize
	backing, err := allocChunk(p.cfg.Allocator, batch*stride, p.log)
	if err != nil {
		return status.Wrap(status.NoDevice, err)
	}

	for i := 0; i < batch; i++ {
		off := i * stride
		d := &desc{
			headroom:    headroom,
			SendPayload: backing[off : off+segSize],
			RecvPayload: backing[off+segSize : off+stride],
		}
		p.free = append(p.free, d)
	}
	p.allocated += batch
	return nil
}

// cleanup releases the pool's descriptors. allowNonEmpty permits teardown to
// proceed even if some descriptors are still checked out (e.g. held by a
// user that never called ReleaseAMDesc).
func (p *descPool) cleanup(allowNonEmpty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !allowNonEmpty && len(p.free) != p.allocated {
		return status.InvalidParam
	}
	p.free = nil
	p.allocated = 0
	return nil
}

// queuedRecord is the {desc} pair queued on sync_am_events when an
// asynchronously observed receive targets a sync-only AM callback.
type queuedRecord struct {
	d *desc
}

// recordPool is free_queue.
type recordPool struct {
	mu   sync.Mutex
	free []*queuedRecord
}

func newRecordPool() *recordPool {
	return &recordPool{}
}

func (p *recordPool) acquire(d *desc) *queuedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		r.d = d
		return r
	}
	return &queuedRecord{d: d}
}

func (p *recordPool) release(r *queuedRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.d = nil
	p.free = append(p.free, r)
}
