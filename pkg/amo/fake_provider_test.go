package amo

import (
	"context"
	"sync"

	"github.com/archfabric/ugni-core/pkg/status"
)

// fakeProvider is a single-address-space, no-failure stand-in for the real
// datagram provider, sufficient to exercise the facade and emulator without
// a network. Every 64-bit op commits immediately: no NoResource, no
// InProgress — the retry-loop/progress plumbing is exercised separately by
// tests that inject those statuses explicitly.
type fakeProvider struct {
	mu           sync.Mutex
	mem          map[uint64]uint64
	busy         int // number of NoResource/InProgress responses to return before succeeding
	progressed   int
	progressHook func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{mem: make(map[uint64]uint64)}
}

func (f *fakeProvider) Mutex() sync.Locker { return &f.mu }

func (f *fakeProvider) Progress(ctx context.Context) {
	f.progressed++
	if f.progressHook != nil {
		f.progressHook()
	}
}

func (f *fakeProvider) takeBusy() bool {
	if f.busy > 0 {
		f.busy--
		return true
	}
	return false
}

func (f *fakeProvider) Add64(ctx context.Context, ep Endpoint, value uint64, addr uint64, rkey RKey) error {
	if f.takeBusy() {
		return status.NoResource
	}
	f.mem[addr] += value
	return nil
}

func (f *fakeProvider) FAdd64(ctx context.Context, ep Endpoint, value uint64, addr uint64, rkey RKey, result *uint64) error {
	if f.takeBusy() {
		return status.NoResource
	}
	*result = f.mem[addr]
	f.mem[addr] += value
	return nil
}

func (f *fakeProvider) CSwap64(ctx context.Context, ep Endpoint, compare, swap uint64, addr uint64, rkey RKey, result *uint64) error {
	if f.takeBusy() {
		return status.InProgress()
	}
	cur := f.mem[addr]
	*result = cur
	if cur == compare {
		f.mem[addr] = swap
	}
	return nil
}
