package fsa

import (
	"errors"
	"slices"
	"testing"
)

func TestAutomaton_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Automaton)
		ok     bool
	}{
		{"valid", func(*Automaton) {}, true},
		{"no states", func(a *Automaton) { a.N, a.Data = 0, nil }, false},
		{"no slots", func(a *Automaton) { a.M = 0 }, false},
		{"start out of range", func(a *Automaton) { a.O = 2 }, false},
		{"short data", func(a *Automaton) { a.Data = a.Data[:len(a.Data)-4] }, false},
		{"target out of range", func(a *Automaton) { a.Data[2*WordSize] = 7 }, false},
		{"unused slot target ignored", func(a *Automaton) { a.Data[(3+2)*WordSize] = 7 }, true},
		// n*(1+2m)*4 wraps to 764 in 64 bits.
		{"wrapping shape", func(a *Automaton) { a.N, a.M, a.Data = 538340809, 4283240227, make([]byte, 764) }, false},
		{"shape beyond word addressing", func(a *Automaton) { a.N, a.M, a.Data = 1<<31, 1, nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := singleA(t)
			tt.mutate(a)
			err := a.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidAutomaton) {
				t.Errorf("Validate() error = %v, want ErrInvalidAutomaton", err)
			}
		})
	}
}

func TestCheckShape(t *testing.T) {
	tests := []struct {
		n, m uint32
		ok   bool
	}{
		{1, 1, true},
		{1, (1<<32 - 2) / 2, true}, // 1+2m = MaxUint32
		{1431655765, 1, true},      // 3n = MaxUint32
		{1431655766, 1, false},
		{2, 1 << 31, false},
		{538340809, 4283240227, false},
		{1<<32 - 1, 1<<32 - 1, false},
	}
	for _, tt := range tests {
		err := CheckShape(tt.n, tt.m)
		if tt.ok && err != nil {
			t.Errorf("CheckShape(%d, %d) error = %v", tt.n, tt.m, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidAutomaton) {
			t.Errorf("CheckShape(%d, %d) error = %v, want ErrInvalidAutomaton", tt.n, tt.m, err)
		}
	}
}

func TestAutomaton_Accessors(t *testing.T) {
	a := singleA(t)
	if got := a.Size(); uint64(got) != EncodedSize(2, 1) || got != 24 {
		t.Errorf("Size() = %d, want 24", got)
	}
	if a.Flags(0) != 0 || a.Flags(1) != FlagAccept {
		t.Errorf("Flags() = %d, %d", a.Flags(0), a.Flags(1))
	}
	if label, target := a.Transition(0, 0); label != 'A' || target != 1 {
		t.Errorf("Transition(0, 0) = %d, %d", label, target)
	}
	if label, _ := a.Transition(1, 0); label != LabelNone {
		t.Errorf("Transition(1, 0) label = %#x, want LabelNone", label)
	}
}

func TestEncodeText(t *testing.T) {
	text := []rune("Aé\U0001F600")
	got := decodeResults(EncodeText(text))
	want := []uint32{0x41, 0xE9, 0x1F600}
	if !slices.Equal(got, want) {
		t.Errorf("EncodeText() words = %#x, want %#x", got, want)
	}
	if b := EncodeText(nil); len(b) != 0 {
		t.Errorf("EncodeText(nil) = %v", b)
	}
}
