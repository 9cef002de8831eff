package graph

import (
	"encoding/binary"

	"github.com/gogpu/fsa"
)

// encoder writes state records into the device layout.
type encoder struct {
	m    uint32
	data []byte
}

func newEncoder(n, m uint32) *encoder {
	return &encoder{m: m, data: make([]byte, fsa.EncodedSize(n, m))}
}

func (e *encoder) put(word uint64, v uint32) {
	binary.LittleEndian.PutUint32(e.data[word*fsa.WordSize:], v)
}

func (e *encoder) state(i uint32, s state) {
	base := uint64(i) * fsa.RecordWords(e.m)
	e.put(base, s.flags)

	k := uint64(0)
	for _, ed := range s.edges {
		e.put(base+1+2*k, ed.label)
		e.put(base+2+2*k, ed.target)
		k++
	}
	for _, to := range s.defaults {
		e.put(base+1+2*k, fsa.LabelAny)
		e.put(base+2+2*k, to)
		k++
	}
	for ; k < uint64(e.m); k++ {
		e.put(base+1+2*k, fsa.LabelNone)
		e.put(base+2+2*k, 0)
	}
}
