package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/fsa"
)

// Magic starts every binary automaton file.
const Magic = "FSA1"

// MaxFileSize bounds the encoding read from a binary file (1 GiB).
const MaxFileSize = 1 << 30

// ErrFormat is returned for files that are not automata.
var ErrFormat = errors.New("graph: invalid automaton file")

// header is the fixed binary file prefix, little-endian.
type header struct {
	Magic [4]byte
	N     uint32
	M     uint32
	O     uint32
	Size  uint64 // bytes of encoding that follow
}

// Write stores a in binary form: the header followed by the encoding.
func Write(w io.Writer, a *fsa.Automaton) error {
	if err := a.Validate(); err != nil {
		return err
	}
	h := header{N: a.N, M: a.M, O: a.O, Size: uint64(len(a.Data))}
	copy(h.Magic[:], Magic)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("graph: write header: %w", err)
	}
	if _, err := w.Write(a.Data); err != nil {
		return fmt.Errorf("graph: write encoding: %w", err)
	}
	return nil
}

// Read loads a binary automaton and validates it.
func Read(r io.Reader) (*fsa.Automaton, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	if string(h.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, h.Magic[:])
	}
	if h.Size > MaxFileSize {
		return nil, fmt.Errorf("%w: encoding is %d bytes (max %d)", ErrFormat, h.Size, MaxFileSize)
	}
	if err := fsa.CheckShape(h.N, h.M); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if want := fsa.EncodedSize(h.N, h.M); h.Size != want {
		return nil, fmt.Errorf("%w: encoding is %d bytes, n=%d m=%d needs %d", ErrFormat, h.Size, h.N, h.M, want)
	}

	data := make([]byte, h.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: encoding: %w", ErrFormat, err)
	}
	a := &fsa.Automaton{Data: data, N: h.N, M: h.M, O: h.O}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// WriteFile writes a to path in binary form.
func WriteFile(path string, a *fsa.Automaton) error {
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // automata are not secret
		return fmt.Errorf("graph: %w", err)
	}
	return nil
}

// ReadFile reads a binary automaton file.
func ReadFile(path string) (*fsa.Automaton, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// Load reads an automaton file in either format: binary files are
// recognized by their magic, anything else is parsed as a YAML
// description.
func Load(path string) (*fsa.Automaton, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if prefix, err := r.Peek(len(Magic)); err == nil && string(prefix) == Magic {
		return Read(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxDescriptionSize+1))
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", path, err)
	}
	if len(data) > MaxDescriptionSize {
		return nil, fmt.Errorf("graph: description %s exceeds %d bytes", path, MaxDescriptionSize)
	}
	d, err := ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d.Build()
}
