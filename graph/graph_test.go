package graph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gogpu/fsa"
)

// singleA accepts exactly one 'A'.
func singleA(t *testing.T) *fsa.Automaton {
	t.Helper()
	b := NewBuilder()
	s0 := b.AddState(false)
	s1 := b.AddState(true)
	b.AddTransition(s0, 'A', s1)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return a
}

func TestBuilder_SingleA(t *testing.T) {
	a := singleA(t)
	if a.N != 2 || a.M != 1 || a.O != 0 {
		t.Fatalf("shape = n=%d m=%d o=%d, want 2 1 0", a.N, a.M, a.O)
	}
	if got := fsa.SimulateAll(a, []rune("BAB")); !slices.Equal(got, []uint32{0, 1, 0}) {
		t.Errorf("SimulateAll(BAB) = %v, want [0 1 0]", got)
	}
}

func TestBuilder_Padding(t *testing.T) {
	b := NewBuilder()
	s0 := b.AddState(false)
	s1 := b.AddState(true)
	b.AddTransition(s0, 'x', s1)
	b.AddTransition(s0, 'y', s1)
	b.AddDefault(s0, s0)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if a.M != 3 {
		t.Fatalf("M = %d, want 3", a.M)
	}
	// Default edges follow explicit ones.
	if label, to := a.Transition(0, 2); label != fsa.LabelAny || to != 0 {
		t.Errorf("slot 2 = (%#x, %d), want (LabelAny, 0)", label, to)
	}
	for k := uint32(0); k < 3; k++ {
		if label, _ := a.Transition(1, k); label != fsa.LabelNone {
			t.Errorf("state 1 slot %d label = %#x, want LabelNone", k, label)
		}
	}
}

func TestBuilder_DefaultAfterExplicit(t *testing.T) {
	// Skip anything up to the first 'z', then accept it.
	b := NewBuilder()
	scan := b.AddState(false)
	hit := b.AddState(true)
	b.AddDefault(scan, scan)
	b.AddTransition(scan, 'z', hit)
	b.MarkDead(b.AddState(false))
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := fsa.SimulateAll(a, []rune("abz"))
	if want := []uint32{3, 2, 1}; !slices.Equal(got, want) {
		t.Errorf("SimulateAll(abz) = %v, want %v", got, want)
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
	}{
		{"no states", func(*Builder) {}},
		{"unknown source", func(b *Builder) {
			b.AddState(false)
			b.AddTransition(3, 'a', 0)
		}},
		{"unknown target", func(b *Builder) {
			b.AddTransition(b.AddState(false), 'a', 1)
		}},
		{"negative rune", func(b *Builder) {
			s := b.AddState(false)
			b.AddTransition(s, -1, s)
		}},
		{"rune past MaxRune", func(b *Builder) {
			s := b.AddState(false)
			b.AddTransition(s, 0x110000, s)
		}},
		{"unknown start", func(b *Builder) {
			b.AddState(false)
			b.SetStart(1)
		}},
		{"unknown dead state", func(b *Builder) {
			b.MarkDead(0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			if _, err := b.Build(); !errors.Is(err, ErrBuild) {
				t.Errorf("Build() error = %v, want ErrBuild", err)
			}
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	a := singleA(t)
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte(Magic)) {
		t.Fatalf("output does not start with %q", Magic)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.N != a.N || got.M != a.M || got.O != a.O || !bytes.Equal(got.Data, a.Data) {
		t.Errorf("Read() = %+v, want %+v", got, a)
	}
}

func TestFormat_Corrupt(t *testing.T) {
	var good bytes.Buffer
	if err := Write(&good, singleA(t)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	raw := good.Bytes()

	badMagic := slices.Clone(raw)
	copy(badMagic, "FSA0")
	badShape := slices.Clone(raw)
	badShape[8] = 7 // m

	// n*(1+2m)*4 wraps to 764, matching a 764-byte payload.
	var wrapping bytes.Buffer
	wrapping.WriteString(Magic)
	for _, v := range []any{uint32(538340809), uint32(4283240227), uint32(0), uint64(764)} {
		if err := binary.Write(&wrapping, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	wrapping.Write(make([]byte, 764))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", badMagic},
		{"short header", raw[:10]},
		{"truncated encoding", raw[:len(raw)-1]},
		{"size mismatch", badShape},
		{"wrapping shape", wrapping.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(bytes.NewReader(tt.data)); !errors.Is(err, ErrFormat) {
				t.Errorf("Read() error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestFormat_InvalidTarget(t *testing.T) {
	a := singleA(t)
	a.Data[2*fsa.WordSize] = 9 // slot 0 target of state 0
	var buf bytes.Buffer
	if err := Write(&buf, a); !errors.Is(err, fsa.ErrInvalidAutomaton) {
		t.Errorf("Write() error = %v, want ErrInvalidAutomaton", err)
	}
}

const twoWords = `
start: 0
states:
  - on:
      - {chars: "cC", to: 1}
  - on:
      - {chars: "a", to: 2}
  - on:
      - {chars: "t", to: 3}
      - {chars: "r", to: 4}
  - accept: true
    on:
      - {chars: "s", to: 5}
  - accept: true
  - accept: true
`

func TestDescription_Build(t *testing.T) {
	d, err := ParseDescription([]byte(twoWords))
	if err != nil {
		t.Fatalf("ParseDescription() error = %v", err)
	}
	a, err := d.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := fsa.SimulateAll(a, []rune("Cats car ca"))
	want := []uint32{4, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0}
	if !slices.Equal(got, want) {
		t.Errorf("SimulateAll() = %v, want %v", got, want)
	}
}

func TestDescription_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no states", "start: 0\nstates: []\n"},
		{"unknown field", "states:\n  - acept: true\n"},
		{"empty chars", "states:\n  - on:\n      - {chars: \"\", to: 0}\n"},
		{"dead and accepting", "states:\n  - {accept: true, dead: true}\n"},
		{"not yaml", "states: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDescription([]byte(tt.yaml)); !errors.Is(err, ErrFormat) {
				t.Errorf("ParseDescription() error = %v, want ErrFormat", err)
			}
		})
	}

	d, err := ParseDescription([]byte("start: 2\nstates:\n  - {}\n"))
	if err != nil {
		t.Fatalf("ParseDescription() error = %v", err)
	}
	if _, err := d.Build(); !errors.Is(err, ErrBuild) {
		t.Errorf("Build() with start out of range error = %v, want ErrBuild", err)
	}
}

func TestLoad_DetectsFormat(t *testing.T) {
	dir := t.TempDir()

	bin := filepath.Join(dir, "a.fsa")
	if err := WriteFile(bin, singleA(t)); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	desc := filepath.Join(dir, "a.yaml")
	if err := os.WriteFile(desc, []byte(twoWords), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := Load(bin)
	if err != nil {
		t.Fatalf("Load(binary) error = %v", err)
	}
	if a.N != 2 {
		t.Errorf("Load(binary).N = %d, want 2", a.N)
	}
	if _, err := ReadFile(bin); err != nil {
		t.Errorf("ReadFile() error = %v", err)
	}

	a, err = Load(desc)
	if err != nil {
		t.Fatalf("Load(yaml) error = %v", err)
	}
	if a.N != 6 {
		t.Errorf("Load(yaml).N = %d, want 6", a.N)
	}
	if _, err := LoadDescription(desc); err != nil {
		t.Errorf("LoadDescription() error = %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.fsa")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
