package fsa

import "encoding/binary"

// Kernel argument indices. The order is the contract between the host and
// every kernel implementation; it must only change together with them.
const (
	ArgStateCount = iota // n, uint32
	ArgStride            // m, uint32
	ArgOffset            // o, uint32
	ArgTextLength        // L, uint32
	ArgAutomaton         // read-only buffer, the encoding
	ArgText              // read-only buffer, 4*L bytes
	ArgOutput            // read-write buffer, 4*L bytes

	// KernelArity is the number of kernel arguments.
	KernelArity
)

// SimulateEncoded runs one lane of the automaton kernel on host memory.
//
// The lane starts in state o at text position lane and follows the first
// matching transition of each state. It halts when no slot matches, when it
// enters a FlagDead state, or when it reaches position length. The result is
// the length of the longest accepted prefix, 0 when none was accepted.
//
// Reads never leave data or text: a record or code point beyond either
// slice halts the lane. The kernel source implements the same function.
func SimulateEncoded(n, m, o uint32, data, text []byte, length, lane uint32) uint32 {
	if avail := uint64(len(text) / WordSize); uint64(length) > avail {
		length = uint32(avail) //nolint:gosec // avail < length <= MaxUint32
	}
	if lane >= length || o >= n {
		return 0
	}

	record := RecordWords(m)
	words := uint64(len(data) / WordSize)
	word := func(i uint64) uint32 { return binary.LittleEndian.Uint32(data[i*WordSize:]) }

	var best uint32
	state := o
	for pos := lane; pos < length; pos++ {
		base := uint64(state) * record
		if base+record > words {
			break
		}
		if word(base)&FlagDead != 0 {
			break
		}

		c := binary.LittleEndian.Uint32(text[uint64(pos)*WordSize:])
		next, ok := uint32(0), false
		for k := uint64(0); k < uint64(m); k++ {
			label := word(base + 1 + 2*k)
			if label == LabelNone {
				continue
			}
			if label == c || label == LabelAny {
				next, ok = word(base+2+2*k), true
				break
			}
		}
		if !ok || next >= n {
			break
		}

		state = next
		if nb := uint64(state) * record; nb < words && word(nb)&FlagAccept != 0 {
			best = pos - lane + 1
		}
	}
	return best
}

// Simulate runs the lane starting at position start of text. It is the
// host reference for one element of Engine.Run's result and re-encodes text
// on every call.
func Simulate(a *Automaton, text []rune, start int) uint32 {
	if start < 0 || start >= len(text) {
		return 0
	}
	return SimulateEncoded(a.N, a.M, a.O, a.Data, EncodeText(text), uint32(len(text)), uint32(start)) //nolint:gosec // bounded by len(text)
}

// SimulateAll runs every lane of text on the host, sequentially.
func SimulateAll(a *Automaton, text []rune) []uint32 {
	encoded := EncodeText(text)
	out := make([]uint32, len(text))
	for i := range out {
		out[i] = SimulateEncoded(a.N, a.M, a.O, a.Data, encoded, uint32(len(text)), uint32(i)) //nolint:gosec // bounded by len(text)
	}
	return out
}
