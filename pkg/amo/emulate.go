package amo

import (
	"context"

	"github.com/archfabric/ugni-core/pkg/status"
)

// resolveContainer computes the 8-byte-aligned container address and the
// half of it a 4-byte-aligned user address targets: an 8-byte-aligned
// address names the container's own address and its high (MSB) half;
// a 4-byte-aligned-but-not-8-byte-aligned address is 4 bytes into the
// container below it and names the low (LSB) half.
func resolveContainer(remoteAddr uint64) (container uint64, half Half, err error) {
	if remoteAddr%4 != 0 {
		return 0, 0, status.InvalidParam
	}
	if remoteAddr%8 == 0 {
		return remoteAddr, HalfMSB, nil
	}
	return remoteAddr - 4, HalfLSB, nil
}

// retry32 is the shared body of §4.B's retry loop: read the container via
// fadd64(0) as an atomic read, compute the word to install and the word to
// compare against, CSWAP it in, and stop once IsCompleted says so. Any
// provider failure other than the ones already retried inside fadd64/
// cswap64 (NoResource, InProgress) aborts the loop and is surfaced as-is.
func (f *Facade) retry32(ctx context.Context, ep Endpoint, a AtomicOp, container uint64, rkey RKey, add32, swap32, compare32 uint32) (uint64, error) {
	for {
		fetched, err := f.fadd64(ctx, ep, 0, container, rkey)
		if err != nil {
			return 0, err
		}

		newWord := ComputeNewWord(a, fetched, add32, swap32)
		compareWord := ComputeCompareWord(a, fetched, compare32)

		result, err := f.cswap64(ctx, ep, compareWord, newWord, container, rkey)
		if err != nil {
			return 0, err
		}

		if IsCompleted(a, result, compareWord) {
			return result, nil
		}
	}
}

func (f *Facade) emulateAdd32(ctx context.Context, ep Endpoint, add32 uint32, remoteAddr uint64, rkey RKey) error {
	container, half, err := resolveContainer(remoteAddr)
	if err != nil {
		return err
	}
	_, err = f.retry32(ctx, ep, AtomicOp{Half: half, Op: OpAdd}, container, rkey, add32, 0, 0)
	return err
}

func (f *Facade) emulateFAdd32(ctx context.Context, ep Endpoint, add32 uint32, remoteAddr uint64, rkey RKey) (uint32, error) {
	container, half, err := resolveContainer(remoteAddr)
	if err != nil {
		return 0, err
	}
	a := AtomicOp{Half: half, Op: OpFAdd}
	result, err := f.retry32(ctx, ep, a, container, rkey, add32, 0, 0)
	if err != nil {
		return 0, err
	}
	return ExtractReturn(a, result), nil
}

func (f *Facade) emulateSwap32(ctx context.Context, ep Endpoint, swap32 uint32, remoteAddr uint64, rkey RKey) (uint32, error) {
	container, half, err := resolveContainer(remoteAddr)
	if err != nil {
		return 0, err
	}
	a := AtomicOp{Half: half, Op: OpSwap}
	result, err := f.retry32(ctx, ep, a, container, rkey, 0, swap32, 0)
	if err != nil {
		return 0, err
	}
	return ExtractReturn(a, result), nil
}

func (f *Facade) emulateCSwap32(ctx context.Context, ep Endpoint, compare32, swap32 uint32, remoteAddr uint64, rkey RKey) (uint32, error) {
	container, half, err := resolveContainer(remoteAddr)
	if err != nil {
		return 0, err
	}
	a := AtomicOp{Half: half, Op: OpCSwap}
	result, err := f.retry32(ctx, ep, a, container, rkey, 0, swap32, compare32)
	if err != nil {
		return 0, err
	}
	return ExtractReturn(a, result), nil
}

// emulateSwap64 emulates a 64-bit atomic swap, which the provider does not
// expose natively (only CSWAP): read the current value via fadd64(0), then
// CSWAP(old, swap); if the pre-op value CSwap64 reports is still old, the
// swap committed; otherwise a concurrent writer raced us and we retry with
// the value it left behind.
func (f *Facade) emulateSwap64(ctx context.Context, ep Endpoint, swap, remoteAddr uint64, rkey RKey) (uint64, error) {
	for {
		old, err := f.fadd64(ctx, ep, 0, remoteAddr, rkey)
		if err != nil {
			return 0, err
		}
		result, err := f.cswap64(ctx, ep, old, swap, remoteAddr, rkey)
		if err != nil {
			return 0, err
		}
		if result == old {
			return old, nil
		}
	}
}
