package fsa

import (
	"encoding/binary"
	"testing"
)

// encode builds an Automaton from per-state records of flags followed by
// label/target pairs. Short records are padded with LabelNone slots.
func encode(t testing.TB, m, o uint32, records ...[]uint32) *Automaton {
	t.Helper()
	n := uint32(len(records)) //nolint:gosec // test sizes
	data := make([]byte, EncodedSize(n, m))
	for s, rec := range records {
		base := uint64(s) * RecordWords(m)
		for i := uint64(0); i < RecordWords(m); i++ {
			var v uint32
			switch {
			case i < uint64(len(rec)):
				v = rec[i]
			case i%2 == 1:
				v = LabelNone
			}
			binary.LittleEndian.PutUint32(data[(base+i)*WordSize:], v)
		}
	}
	return &Automaton{Data: data, N: n, M: m, O: o}
}

// singleA accepts exactly "A".
func singleA(t testing.TB) *Automaton {
	return encode(t, 1, 0,
		[]uint32{0, 'A', 1},
		[]uint32{FlagAccept},
	)
}
