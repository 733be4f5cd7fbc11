//go:build linux || darwin || freebsd

package udt

import (
	"github.com/archfabric/ugni-core/pkg/hostcaps"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// allocChunk backs descriptor pool growth with mmap, using MAP_HUGETLB when
// the policy requests it and the host kernel supports it; falls back one
// rung at a time (huge -> mmap -> heap) as each allocator proves
// unavailable.
func allocChunk(policy AllocPolicy, size int, log *logrus.Logger) ([]byte, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON

	switch policy {
	case AllocHuge:
		if !hostcaps.HugetlbAvailable() {
			log.Warn("udt: huge-page allocator requested but unavailable on this kernel, falling back to mmap")
			return allocChunk(AllocMmap, size, log)
		}
		b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags|unix.MAP_HUGETLB)
		if err != nil {
			log.WithError(err).Warn("udt: huge-page mmap failed, falling back to mmap")
			return allocChunk(AllocMmap, size, log)
		}
		return b, nil
	case AllocMmap:
		b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
		if err != nil {
			log.WithError(err).Warn("udt: mmap failed, falling back to heap")
			return allocChunk(AllocHeap, size, log)
		}
		return b, nil
	default:
		return make([]byte, size), nil
	}
}
