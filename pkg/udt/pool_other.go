//go:build !(linux || darwin || freebsd)

package udt

import "github.com/sirupsen/logrus"

// allocChunk on unsupported platforms always falls back to the heap: mmap
// and huge-page backing are not available here.
func allocChunk(policy AllocPolicy, size int, log *logrus.Logger) ([]byte, error) {
	if policy != AllocHeap {
		log.Debug("udt: non-heap allocator requested but unsupported on this platform, using heap")
	}
	return make([]byte, size), nil
}
