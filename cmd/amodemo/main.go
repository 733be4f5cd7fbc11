// Command amodemo exercises the amo facade end to end against an in-memory
// 64-bit atomic provider: 32-bit adds into each half of a shared container,
// a 32-bit fetch-add reporting the pre-op value, and a 64-bit compare-swap
// and swap on the whole container.
package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/archfabric/ugni-core/pkg/amo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// memoryProvider is a single-process stand-in for a real RDMA NIC's 64-bit
// atomic engine: a map of remote addresses to 64-bit words, guarded by its
// own lock. Progress is a no-op since nothing here is ever actually
// asynchronous.
type memoryProvider struct {
	mu  sync.Mutex
	mem map[uint64]uint64
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{mem: make(map[uint64]uint64)}
}

func (p *memoryProvider) Mutex() sync.Locker { return &p.mu }
func (p *memoryProvider) Progress(context.Context) {}

func (p *memoryProvider) Add64(ctx context.Context, ep amo.Endpoint, value, remoteAddr uint64, rkey amo.RKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mem[remoteAddr] += value
	return nil
}

func (p *memoryProvider) FAdd64(ctx context.Context, ep amo.Endpoint, value, remoteAddr uint64, rkey amo.RKey, result *uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*result = p.mem[remoteAddr]
	p.mem[remoteAddr] += value
	return nil
}

func (p *memoryProvider) CSwap64(ctx context.Context, ep amo.Endpoint, compare, swap, remoteAddr uint64, rkey amo.RKey, result *uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.mem[remoteAddr]
	*result = old
	if old == compare {
		p.mem[remoteAddr] = swap
	}
	return nil
}

func main() {
	provider := newMemoryProvider()
	facade := amo.NewFacade(provider)
	collector := amo.NewCollector(facade, prometheus.Labels{"app": "amodemo"})
	prometheus.MustRegister(collector)

	ctx := context.Background()
	const container uint64 = 0x1000 // 8-byte-aligned container word
	const msbAddr = container       // addr%8==0 targets the container's high half
	const lsbAddr = container + 4   // 4-byte-aligned-only targets the low half

	if err := facade.Add(ctx, amo.Width32, nil, 5, lsbAddr, nil); err != nil {
		logrus.Fatalf("add32(lsb): %v", err)
	}

	pre, err := facade.FAdd(ctx, amo.Width32, nil, 3, lsbAddr, nil)
	if err != nil {
		logrus.Fatalf("fadd32(lsb): %v", err)
	}
	logrus.Infof("fadd32(lsb) pre-op value: %d", pre)

	if err := facade.Add(ctx, amo.Width32, nil, 7, msbAddr, nil); err != nil {
		logrus.Fatalf("add32(msb): %v", err)
	}

	result, err := facade.CSwap(ctx, amo.Width64, nil, 0, 0xC0FFEE, container, nil)
	if err != nil {
		logrus.Fatalf("cswap64: %v", err)
	}
	logrus.Infof("cswap64 pre-op container word: 0x%x", result)

	swapped, err := facade.Swap(ctx, amo.Width64, nil, 0xFACE, container, nil)
	if err != nil {
		logrus.Fatalf("swap64: %v", err)
	}
	logrus.Infof("swap64 pre-op container word: 0x%x", swapped)

	http.Handle("/metrics", promhttp.Handler())
	logrus.Info("amodemo: serving /metrics on :18081")
	if err := http.ListenAndServe(":18081", nil); err != nil {
		logrus.Fatalf("serve: %v", err)
	}
}
