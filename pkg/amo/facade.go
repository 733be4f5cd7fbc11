package amo

import (
	"context"
	"errors"

	"github.com/archfabric/ugni-core/pkg/status"
)

// Facade is the public AMO surface: add/fadd/swap/cswap at width 32 and 64,
// dispatching 64-bit calls straight to the provider and 32-bit calls through
// the emulator in emulate.go. It holds no state of its own beyond the
// Provider it was built with — ep/rkey/addr are per-call arguments.
type Facade struct {
	p       Provider
	retries retryCounter
}

// NewFacade wraps a Provider with the public AMO surface.
func NewFacade(p Provider) *Facade {
	return &Facade{p: p}
}

// submitVoid implements the submit-loop half of §4.C for operations with no
// fetched result (Add64): retry on NoResource after progressing, return
// everything else (including nil for OK) as-is.
func (f *Facade) submitVoid(ctx context.Context, submit func() error) error {
	for {
		err := submit()
		if errors.Is(err, status.NoResource) {
			f.retries.inc()
			f.p.Progress(ctx)
			continue
		}
		return err
	}
}

// submitFetch implements the submit-loop-then-completion-spin pattern of
// §4.C for the fetching primitives (FAdd64, CSwap64): NoResource during
// submission and InProgress during completion both resolve the same way —
// progress the provider and check again — which is why they share one loop
// instead of two.
func (f *Facade) submitFetch(ctx context.Context, submit func(*uint64) error) (uint64, error) {
	var result uint64
	for {
		err := submit(&result)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, status.NoResource), errors.Is(err, status.InProgress()):
			f.retries.inc()
			f.p.Progress(ctx)
			continue
		default:
			return 0, err
		}
	}
}

// add64, fadd64 and cswap64 are the facade-level 64-bit helpers. Add uses
// add64 directly; the 32-bit emulator's retry loop in emulate.go uses fadd64
// and cswap64 — this is the sense in which "B issues provider 64-bit
// operations": through these same helpers, not by calling Provider a
// second, different way.
func (f *Facade) add64(ctx context.Context, ep Endpoint, value, remoteAddr uint64, rkey RKey) error {
	if err := checkAlignment(remoteAddr, Width64); err != nil {
		return err
	}
	return f.submitVoid(ctx, func() error {
		return f.p.Add64(ctx, ep, value, remoteAddr, rkey)
	})
}

func (f *Facade) fadd64(ctx context.Context, ep Endpoint, value, remoteAddr uint64, rkey RKey) (uint64, error) {
	if err := checkAlignment(remoteAddr, Width64); err != nil {
		return 0, err
	}
	return f.submitFetch(ctx, func(result *uint64) error {
		return f.p.FAdd64(ctx, ep, value, remoteAddr, rkey, result)
	})
}

func (f *Facade) cswap64(ctx context.Context, ep Endpoint, compare, swap, remoteAddr uint64, rkey RKey) (uint64, error) {
	if err := checkAlignment(remoteAddr, Width64); err != nil {
		return 0, err
	}
	return f.submitFetch(ctx, func(result *uint64) error {
		return f.p.CSwap64(ctx, ep, compare, swap, remoteAddr, rkey, result)
	})
}

// Add performs a remote add with no fetched result, at width 32 or 64.
func (f *Facade) Add(ctx context.Context, w width, ep Endpoint, value uint64, remoteAddr uint64, rkey RKey) error {
	if w == Width64 {
		return f.add64(ctx, ep, value, remoteAddr, rkey)
	}
	return f.emulateAdd32(ctx, ep, uint32(value), remoteAddr, rkey)
}

// FAdd performs a remote fetch-and-add, returning the pre-operation value.
func (f *Facade) FAdd(ctx context.Context, w width, ep Endpoint, value uint64, remoteAddr uint64, rkey RKey) (uint64, error) {
	if w == Width64 {
		return f.fadd64(ctx, ep, value, remoteAddr, rkey)
	}
	r, err := f.emulateFAdd32(ctx, ep, uint32(value), remoteAddr, rkey)
	return uint64(r), err
}

// Swap performs a remote swap, returning the pre-operation value. At width
// 64 the provider has no native swap, so it is emulated via CSwap (see
// emulateSwap64).
func (f *Facade) Swap(ctx context.Context, w width, ep Endpoint, value uint64, remoteAddr uint64, rkey RKey) (uint64, error) {
	if w == Width64 {
		if err := checkAlignment(remoteAddr, Width64); err != nil {
			return 0, err
		}
		return f.emulateSwap64(ctx, ep, value, remoteAddr, rkey)
	}
	r, err := f.emulateSwap32(ctx, ep, uint32(value), remoteAddr, rkey)
	return uint64(r), err
}

// CSwap performs a remote compare-and-swap, returning the pre-operation
// value (compare it to compare to learn whether the swap committed).
func (f *Facade) CSwap(ctx context.Context, w width, ep Endpoint, compare, swap uint64, remoteAddr uint64, rkey RKey) (uint64, error) {
	if w == Width64 {
		return f.cswap64(ctx, ep, compare, swap, remoteAddr, rkey)
	}
	r, err := f.emulateCSwap32(ctx, ep, uint32(compare), uint32(swap), remoteAddr, rkey)
	return uint64(r), err
}
