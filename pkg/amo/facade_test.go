package amo

import (
	"context"
	"testing"

	"github.com/archfabric/ugni-core/pkg/status"
	"gotest.tools/v3/assert"
)

const containerAddr = 0x1000

func setContainer(f *fakeProvider, msb, lsb uint32) {
	f.mem[containerAddr] = (uint64(msb) << 32) | uint64(lsb)
}

func splitContainer(f *fakeProvider) (msb, lsb uint32) {
	word := f.mem[containerAddr]
	return uint32(word >> 32), uint32(word)
}

// Scenario 1 (spec §8): add32 into the LSB half.
func TestFacade_Add32_LSB(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0x00000000, 0x0000000A)
	fc := NewFacade(f)

	err := fc.Add(context.Background(), Width32, nil, 0x5, containerAddr+4, nil)
	assert.NilError(t, err)

	msb, lsb := splitContainer(f)
	assert.Equal(t, msb, uint32(0x00000000))
	assert.Equal(t, lsb, uint32(0x0000000F))
}

// Scenario 2: add32 into the MSB half (8-byte-aligned address).
func TestFacade_Add32_MSB(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0x0000000A, 0x00000000)
	fc := NewFacade(f)

	err := fc.Add(context.Background(), Width32, nil, 0x5, containerAddr, nil)
	assert.NilError(t, err)

	msb, lsb := splitContainer(f)
	assert.Equal(t, msb, uint32(0x0000000F))
	assert.Equal(t, lsb, uint32(0x00000000))
}

// Scenario 3: fadd32 returns the pre-op value and commits the add.
func TestFacade_FAdd32(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0x11111111, 0x22222222)
	fc := NewFacade(f)

	result, err := fc.FAdd(context.Background(), Width32, nil, 1, containerAddr+4, nil)
	assert.NilError(t, err)
	assert.Equal(t, result, uint64(0x22222222))

	msb, lsb := splitContainer(f)
	assert.Equal(t, msb, uint32(0x11111111))
	assert.Equal(t, lsb, uint32(0x22222223))
}

// Scenario 4: cswap32 with a matching compare commits the swap.
func TestFacade_CSwap32_Match(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0xAAAAAAAA, 0xBBBBBBBB)
	fc := NewFacade(f)

	result, err := fc.CSwap(context.Background(), Width32, nil, 0xBBBBBBBB, 0xCCCCCCCC, containerAddr+4, nil)
	assert.NilError(t, err)
	assert.Equal(t, result, uint64(0xBBBBBBBB))

	msb, lsb := splitContainer(f)
	assert.Equal(t, msb, uint32(0xAAAAAAAA))
	assert.Equal(t, lsb, uint32(0xCCCCCCCC))
}

// Scenario 5: cswap32 with a mismatched compare leaves the container
// untouched and reports the actual value so the caller can detect the
// mismatch.
func TestFacade_CSwap32_Mismatch(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0xAAAAAAAA, 0xBBBBBBBB)
	fc := NewFacade(f)

	result, err := fc.CSwap(context.Background(), Width32, nil, 0xDEADBEEF, 0xCCCCCCCC, containerAddr+4, nil)
	assert.NilError(t, err)
	assert.Equal(t, result, uint64(0xBBBBBBBB))

	msb, lsb := splitContainer(f)
	assert.Equal(t, msb, uint32(0xAAAAAAAA))
	assert.Equal(t, lsb, uint32(0xBBBBBBBB))
}

func TestFacade_Alignment32(t *testing.T) {
	f := newFakeProvider()
	fc := NewFacade(f)

	err := fc.Add(context.Background(), Width32, nil, 1, containerAddr+1, nil)
	assert.Equal(t, err, status.InvalidParam)
	assert.Equal(t, len(f.mem), 0) // no provider call performed
}

func TestFacade_Alignment64(t *testing.T) {
	f := newFakeProvider()
	fc := NewFacade(f)

	_, err := fc.FAdd(context.Background(), Width64, nil, 1, 0x1004, nil)
	assert.Equal(t, err, status.InvalidParam)
}

// fadd(x, 0) is a pure read.
func TestFacade_FAdd64_PureRead(t *testing.T) {
	f := newFakeProvider()
	f.mem[containerAddr] = 0x42
	fc := NewFacade(f)

	r1, err := fc.FAdd(context.Background(), Width64, nil, 0, containerAddr, nil)
	assert.NilError(t, err)
	r2, err := fc.FAdd(context.Background(), Width64, nil, 0, containerAddr, nil)
	assert.NilError(t, err)

	assert.Equal(t, r1, uint64(0x42))
	assert.Equal(t, r2, uint64(0x42))
}

// cswap(v, v) is a no-op yielding v.
func TestFacade_CSwap64_NoOp(t *testing.T) {
	f := newFakeProvider()
	f.mem[containerAddr] = 7
	fc := NewFacade(f)

	r, err := fc.CSwap(context.Background(), Width64, nil, 7, 7, containerAddr, nil)
	assert.NilError(t, err)
	assert.Equal(t, r, uint64(7))
	assert.Equal(t, f.mem[containerAddr], uint64(7))
}

// swap(a); swap(b) yields sequential pre-op results on a quiescent variable,
// and is emulated via CSwap since the provider has no native 64-bit swap.
func TestFacade_Swap64_Sequential(t *testing.T) {
	f := newFakeProvider()
	f.mem[containerAddr] = 0
	fc := NewFacade(f)

	r1, err := fc.Swap(context.Background(), Width64, nil, 0xA, containerAddr, nil)
	assert.NilError(t, err)
	assert.Equal(t, r1, uint64(0))

	r2, err := fc.Swap(context.Background(), Width64, nil, 0xB, containerAddr, nil)
	assert.NilError(t, err)
	assert.Equal(t, r2, uint64(0xA))

	assert.Equal(t, f.mem[containerAddr], uint64(0xB))
}

// NoResource during submission and InProgress during completion both drive
// the caller to progress the provider and retry, per §4.C.
func TestFacade_RetriesOnNoResourceAndInProgress(t *testing.T) {
	f := newFakeProvider()
	f.mem[containerAddr] = 10
	f.busy = 3
	fc := NewFacade(f)

	result, err := fc.FAdd(context.Background(), Width64, nil, 1, containerAddr, nil)
	assert.NilError(t, err)
	assert.Equal(t, result, uint64(10))
	assert.Equal(t, f.mem[containerAddr], uint64(11))
	assert.Equal(t, f.progressed, 3)

	// CSwap64 reports InProgress while busy; the completion spin progresses
	// and resubmits the same way.
	f.busy = 2
	old, err := fc.CSwap(context.Background(), Width64, nil, 11, 12, containerAddr, nil)
	assert.NilError(t, err)
	assert.Equal(t, old, uint64(11))
	assert.Equal(t, f.mem[containerAddr], uint64(12))
	assert.Equal(t, f.progressed, 5)
}

func TestFacade_Swap32_Sequential(t *testing.T) {
	f := newFakeProvider()
	setContainer(f, 0, 0)
	fc := NewFacade(f)

	r1, err := fc.Swap(context.Background(), Width32, nil, 0xA, containerAddr+4, nil)
	assert.NilError(t, err)
	assert.Equal(t, r1, uint64(0))

	r2, err := fc.Swap(context.Background(), Width32, nil, 0xB, containerAddr+4, nil)
	assert.NilError(t, err)
	assert.Equal(t, r2, uint64(0xA))
}
