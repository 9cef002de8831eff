package cpu

import (
	"encoding/binary"
	"sync"

	"github.com/gogpu/fsa"
)

// LaneFunc runs one lane of a native kernel. Lanes of one dispatch run
// concurrently; a lane may only write the output range it owns.
type LaneFunc func(lane int, args Args)

// Args are the arguments bound to a kernel at enqueue time.
type Args struct {
	values []any
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.values) }

// Uint32 returns scalar argument i, or 0 if it is a buffer.
func (a Args) Uint32(i int) uint32 {
	v, _ := a.values[i].(uint32)
	return v
}

// Bytes returns the memory of buffer argument i, or nil if it is a scalar.
func (a Args) Bytes(i int) []byte {
	if b, ok := a.values[i].(*buffer); ok {
		return b.data
	}
	return nil
}

type nativeKernel struct {
	arity int
	fn    LaneFunc
}

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]nativeKernel)
)

// RegisterKernel installs the native implementation of entry point name.
// A program can create the kernel only if its source declares name as a
// @compute function. Registering a name again replaces it.
func RegisterKernel(name string, arity int, fn LaneFunc) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[name] = nativeKernel{arity: arity, fn: fn}
}

func lookupKernel(name string) (nativeKernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

func init() {
	RegisterKernel(fsa.DefaultEntryPoint, fsa.KernelArity, automatonLane)
}

// automatonLane writes the match length at lane into the output buffer.
func automatonLane(lane int, a Args) {
	out := a.Bytes(fsa.ArgOutput)
	off := lane * fsa.WordSize
	if off+fsa.WordSize > len(out) {
		return
	}
	r := fsa.SimulateEncoded(
		a.Uint32(fsa.ArgStateCount),
		a.Uint32(fsa.ArgStride),
		a.Uint32(fsa.ArgOffset),
		a.Bytes(fsa.ArgAutomaton),
		a.Bytes(fsa.ArgText),
		a.Uint32(fsa.ArgTextLength),
		uint32(lane), //nolint:gosec // lane < globalSize <= MaxUint32
	)
	binary.LittleEndian.PutUint32(out[off:], r)
}
