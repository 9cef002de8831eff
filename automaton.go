package fsa

import (
	"encoding/binary"
	"fmt"
	"math"
)

// State flag bits, stored in word 0 of every state record.
const (
	// FlagAccept marks an accepting state.
	FlagAccept uint32 = 1 << 0
	// FlagDead marks a state lanes halt in without accepting.
	FlagDead uint32 = 1 << 1
)

// Transition labels with special meaning.
const (
	// LabelAny matches every code point.
	LabelAny uint32 = 0xFFFFFFFF
	// LabelNone marks an unused transition slot.
	LabelNone uint32 = 0xFFFFFFFE
)

// WordSize is the width of every encoded scalar in bytes.
const WordSize = 4

// Automaton is a transition table in its device encoding.
//
// Data holds N state records of RecordWords(M) little-endian uint32 words.
// Word 0 of a record carries the state flags; words 1+2k and 2+2k hold the
// label and target state of transition slot k. Slots are tried in order and
// the first whose label equals the input code point (or is LabelAny) is
// taken. O is the start state.
//
// The layout has no pointers, so Data is copied to devices verbatim. Any
// change to it must be mirrored in the kernel source.
type Automaton struct {
	Data []byte
	N    uint32 // state count
	M    uint32 // transition slots per state
	O    uint32 // start state
}

// RecordWords returns the number of words in one state record.
func RecordWords(m uint32) uint64 { return 1 + 2*uint64(m) }

// EncodedSize returns the byte length of an n-state, m-slot encoding.
// The result is only meaningful for shapes accepted by CheckShape.
func EncodedSize(n, m uint32) uint64 { return uint64(n) * RecordWords(m) * WordSize }

// CheckShape rejects shapes whose encoding does not fit the 32-bit word
// addressing kernels use. Errors wrap ErrInvalidAutomaton.
func CheckShape(n, m uint32) error {
	if uint64(n) > math.MaxUint32/RecordWords(m) {
		return fmt.Errorf("%w: %d states x %d slots exceed 32-bit word addressing", ErrInvalidAutomaton, n, m)
	}
	return nil
}

// Size returns the byte length of the encoding.
func (a *Automaton) Size() int { return len(a.Data) }

// Validate checks the shape scalars against Data and every transition
// target against N. Errors wrap ErrInvalidAutomaton.
func (a *Automaton) Validate() error {
	if a.N == 0 {
		return fmt.Errorf("%w: no states", ErrInvalidAutomaton)
	}
	if a.M == 0 {
		return fmt.Errorf("%w: zero transition slots per state", ErrInvalidAutomaton)
	}
	if a.O >= a.N {
		return fmt.Errorf("%w: start state %d out of range [0, %d)", ErrInvalidAutomaton, a.O, a.N)
	}
	if err := CheckShape(a.N, a.M); err != nil {
		return err
	}
	want := EncodedSize(a.N, a.M)
	if uint64(len(a.Data)) != want {
		return fmt.Errorf("%w: data is %d bytes, n=%d m=%d needs %d", ErrInvalidAutomaton, len(a.Data), a.N, a.M, want)
	}
	for s := uint32(0); s < a.N; s++ {
		for k := uint32(0); k < a.M; k++ {
			label, target := a.Transition(s, k)
			if label != LabelNone && target >= a.N {
				return fmt.Errorf("%w: state %d slot %d targets state %d, n=%d", ErrInvalidAutomaton, s, k, target, a.N)
			}
		}
	}
	return nil
}

// Flags returns the flag word of state s. s must be below N.
func (a *Automaton) Flags(s uint32) uint32 {
	return a.word(uint64(s) * RecordWords(a.M))
}

// Transition returns slot k of state s. s must be below N and k below M.
func (a *Automaton) Transition(s, k uint32) (label, target uint32) {
	base := uint64(s)*RecordWords(a.M) + 1 + 2*uint64(k)
	return a.word(base), a.word(base + 1)
}

func (a *Automaton) word(i uint64) uint32 {
	return binary.LittleEndian.Uint32(a.Data[i*WordSize:])
}

// EncodeText returns the device encoding of text: one little-endian
// uint32 per code point.
func EncodeText(text []rune) []byte {
	out := make([]byte, len(text)*WordSize)
	for i, r := range text {
		binary.LittleEndian.PutUint32(out[i*WordSize:], uint32(r)) //nolint:gosec // code points are non-negative
	}
	return out
}

// decodeResults converts a device result buffer to host words.
func decodeResults(b []byte) []uint32 {
	out := make([]uint32, len(b)/WordSize)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*WordSize:])
	}
	return out
}
