package udt

// AllocPolicy selects the backing allocator for the descriptor pool.
type AllocPolicy int

const (
	// AllocHuge backs pool growth with huge-page-mapped memory when the
	// host kernel supports it (see pkg/hostcaps), falling back to AllocMmap.
	AllocHuge AllocPolicy = iota
	// AllocMmap backs pool growth with anonymous mmap, falling back to
	// AllocHeap off Linux/Darwin/BSD.
	AllocMmap
	// AllocHeap backs pool growth with plain Go heap allocation.
	AllocHeap
)

// Config holds the recognized UDT configuration options (spec §6).
type Config struct {
	// MaxBufs caps the total number of descriptors the free-desc pool may
	// allocate across all growth batches.
	MaxBufs int
	// Allocator selects the backing allocator policy for pool growth.
	Allocator AllocPolicy
	// RxHeadroom reserves bytes before the receive payload for upper-layer
	// framing.
	RxHeadroom int
	// SegSize is udt_seg_size: the provider's fixed per-datagram payload
	// size, shared by send and receive payload regions.
	SegSize int
	// MaxAM bounds the active-message id space (am_id < MaxAM).
	MaxAM int
}

const growthBatch = 128

func (c Config) segSize() int {
	if c.SegSize <= 0 {
		return 4096
	}
	return c.SegSize
}

func (c Config) maxAM() int {
	if c.MaxAM <= 0 {
		return 256
	}
	return c.MaxAM
}

func (c Config) rxHeadroom() int {
	if c.RxHeadroom < 0 {
		return 0
	}
	return c.RxHeadroom
}
