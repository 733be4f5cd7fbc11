// Package hostcaps detects host capabilities the UDT descriptor pool needs
// to pick an allocator policy, gated on kernel version.
package hostcaps

import (
	"github.com/docker/docker/pkg/parsers/kernel"
)

// hugetlbMinVersion is the kernel version hugetlbfs mmap(MAP_HUGETLB)
// support is assumed present from; earlier kernels fall back silently.
var hugetlbMinVersion = kernel.VersionInfo{Kernel: 2, Major: 6, Minor: 32}

var hugetlbAvailable bool

func init() {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		// Capability detection failing (e.g. non-Linux, containerized
		// /proc) is not fatal: treat hugetlb as unavailable and let the
		// pool fall back, rather than panicking the whole process.
		hugetlbAvailable = false
		return
	}
	hugetlbAvailable = kernel.CompareKernelVersion(*v, hugetlbMinVersion) >= 0
}

// HugetlbAvailable reports whether the running kernel is new enough to
// support huge-page-backed descriptor pool allocation.
func HugetlbAvailable() bool {
	return hugetlbAvailable
}
