package fsa

import (
	"slices"
	"testing"
)

func TestSimulateAll(t *testing.T) {
	// 0 -a-> 1 -b-> 2(accept) -b-> 2, 1 -*-> 3(accept, dead)
	abPlus := encode(t, 2, 0,
		[]uint32{0, 'a', 1},
		[]uint32{0, 'b', 2, LabelAny, 3},
		[]uint32{FlagAccept, 'b', 2},
		[]uint32{FlagAccept | FlagDead, LabelAny, 0},
	)

	tests := []struct {
		name string
		a    *Automaton
		text string
		want []uint32
	}{
		{"single A", singleA(t), "BAB", []uint32{0, 1, 0}},
		{"single A repeated", singleA(t), "AA", []uint32{1, 1}},
		{"empty text", singleA(t), "", []uint32{}},
		{"longest match", abPlus, "abbbx", []uint32{4, 0, 0, 0, 0}},
		{"any label", abPlus, "axb", []uint32{2, 0, 0}},
		{"dead state halts", abPlus, "axa", []uint32{2, 0, 0}},
		{"match at end", abPlus, "xab", []uint32{0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimulateAll(tt.a, []rune(tt.text))
			if !slices.Equal(got, tt.want) {
				t.Errorf("SimulateAll(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range tt.want {
				if s := Simulate(tt.a, []rune(tt.text), i); s != tt.want[i] {
					t.Errorf("Simulate(%q, %d) = %d, want %d", tt.text, i, s, tt.want[i])
				}
			}
		})
	}
}

func TestSimulate_AcceptingStartIsNotAMatch(t *testing.T) {
	a := encode(t, 1, 0,
		[]uint32{FlagAccept, 'x', 0},
	)
	if got := SimulateAll(a, []rune("yx")); !slices.Equal(got, []uint32{0, 1}) {
		t.Errorf("SimulateAll() = %v, want [0 1]", got)
	}
}

func TestSimulateEncoded_Bounds(t *testing.T) {
	a := singleA(t)
	text := EncodeText([]rune("AA"))

	tests := []struct {
		name   string
		data   []byte
		text   []byte
		length uint32
		lane   uint32
		n, o   uint32
	}{
		{"lane past length", a.Data, text, 2, 2, a.N, a.O},
		{"length past text", a.Data, text[:4], 2, 1, a.N, a.O},
		{"start out of range", a.Data, text, 2, 0, a.N, a.N},
		{"truncated data", a.Data[:4], text, 2, 0, a.N, a.O},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SimulateEncoded(tt.n, a.M, tt.o, tt.data, tt.text, tt.length, tt.lane); got != 0 {
				t.Errorf("SimulateEncoded() = %d, want 0", got)
			}
		})
	}
}

func TestSimulate_OutOfRange(t *testing.T) {
	a := singleA(t)
	for _, start := range []int{-1, 3} {
		if got := Simulate(a, []rune("AAA"), start); got != 0 {
			t.Errorf("Simulate(start=%d) = %d, want 0", start, got)
		}
	}
}

func BenchmarkSimulateAll(b *testing.B) {
	a := singleA(b)
	text := make([]rune, 4096)
	for i := range text {
		if i%3 == 0 {
			text[i] = 'A'
		}
	}
	b.ResetTimer()
	for range b.N {
		SimulateAll(a, text)
	}
}
