// Package amo implements Remote Atomic Memory Operations: native 64-bit
// primitives dispatched straight to a provider, and 32-bit add/fetch-add/
// swap/compare-swap emulated over the provider's 64-bit fetch-add and
// compare-and-swap.
package amo

// Half selects which 4-byte half of an 8-byte container a 32-bit operation
// targets.
type Half int

const (
	// HalfMSB targets bits [63:32] of the container.
	HalfMSB Half = iota
	// HalfLSB targets bits [31:0] of the container.
	HalfLSB
)

// Op is the kind of atomic operation being emulated.
type Op int

const (
	OpAdd Op = iota
	OpFAdd
	OpSwap
	OpCSwap
)

// AtomicOp pairs a Half and an Op, replacing the mixed half/op bitset the
// underlying provider protocol uses. It is stack-local per call.
type AtomicOp struct {
	Half Half
	Op   Op
}

const (
	maskHigh32 = 0xFFFF_FFFF_0000_0000
	maskLow32  = 0x0000_0000_FFFF_FFFF
)

// ComputeNewWord builds the 64-bit word to CSWAP into the container given the
// just-read container contents, and, depending on op, the 32-bit operand
// (add32 for ADD/FADD, swap32 for SWAP/CSWAP).
func ComputeNewWord(a AtomicOp, fetched uint64, add32, swap32 uint32) uint64 {
	switch a.Half {
	case HalfMSB:
		switch a.Op {
		case OpAdd, OpFAdd:
			hi := uint32((fetched&maskHigh32)>>32) + add32
			return (uint64(hi) << 32) | (fetched & maskLow32)
		default: // OpSwap, OpCSwap
			return (uint64(swap32) << 32) | (fetched & maskLow32)
		}
	default: // HalfLSB
		switch a.Op {
		case OpAdd, OpFAdd:
			lo := uint32(fetched&maskLow32) + add32
			return uint64(lo) | (fetched & maskHigh32)
		default:
			return uint64(swap32) | (fetched & maskHigh32)
		}
	}
}

// ComputeCompareWord builds the CSWAP comparand. For ADD/FADD/SWAP the
// comparand is simply the freshly fetched word, making the CSWAP an
// unconditional commit that only fails if a concurrent writer raced it
// (in which case the retry loop reconverges). For CSWAP the comparand
// substitutes the caller's expected 32-bit value into the targeted half.
func ComputeCompareWord(a AtomicOp, fetched uint64, compare32 uint32) uint64 {
	if a.Op != OpCSwap {
		return fetched
	}
	if a.Half == HalfMSB {
		return (uint64(compare32) << 32) | (fetched & maskLow32)
	}
	return uint64(compare32) | (fetched & maskHigh32)
}

// ExtractReturn pulls the 32-bit value out of the half a targets.
func ExtractReturn(a AtomicOp, fetched uint64) uint32 {
	if a.Half == HalfMSB {
		return uint32((fetched & maskHigh32) >> 32)
	}
	return uint32(fetched & maskLow32)
}

// IsCompleted decides whether the retry loop in emulate.go may stop: either
// the CSWAP committed (cswapResult == compared), or — for CSWAP only — the
// targeted half already differs from what the caller expected, meaning
// CSWAP's own semantics are satisfied regardless of the untouched half.
// Any other case means the untouched half changed underneath the loop and
// it must retry with a freshly read container.
func IsCompleted(a AtomicOp, cswapResult, compared uint64) bool {
	if cswapResult == compared {
		return true
	}
	if a.Op == OpCSwap && ExtractReturn(a, cswapResult) != ExtractReturn(a, compared) {
		return true
	}
	return false
}
