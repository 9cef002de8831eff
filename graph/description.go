package graph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/fsa"
)

// MaxDescriptionSize bounds a YAML description file (1 MiB).
const MaxDescriptionSize = 1024 * 1024

// Description is the YAML form of an automaton:
//
//	start: 0
//	states:
//	  - on:
//	      - {chars: "Aa", to: 1}
//	    default: 2
//	  - accept: true
//	  - dead: true
//
// States are numbered by position. Every character of chars becomes one
// transition, tried in order; default, when present, is tried last and
// matches any code point.
type Description struct {
	Start  uint32             `yaml:"start"`
	States []StateDescription `yaml:"states" validate:"required,min=1,dive"`
}

// StateDescription is one state of a Description.
type StateDescription struct {
	Accept  bool              `yaml:"accept"`
	Dead    bool              `yaml:"dead" validate:"excluded_with=Accept"`
	On      []EdgeDescription `yaml:"on" validate:"dive"`
	Default *uint32           `yaml:"default"`
}

// EdgeDescription maps each character of Chars to state To.
type EdgeDescription struct {
	Chars string `yaml:"chars" validate:"required"`
	To    uint32 `yaml:"to"`
}

var validate = validator.New()

// ParseDescription decodes and validates a YAML description. Unknown fields
// are rejected.
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: yaml: %w", ErrFormat, err)
	}
	if err := validate.Struct(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return &d, nil
}

// LoadDescription reads a YAML description file.
func LoadDescription(path string) (*Description, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	if info.Size() > MaxDescriptionSize {
		return nil, fmt.Errorf("graph: description %s is %d bytes (max %d)", path, info.Size(), MaxDescriptionSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	d, err := ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Build compiles the description into the device encoding.
func (d *Description) Build() (*fsa.Automaton, error) {
	b := NewBuilder()
	for _, s := range d.States {
		b.AddState(s.Accept)
	}
	for i, s := range d.States {
		from := uint32(i) //nolint:gosec // state count is checked by Build
		if s.Dead {
			b.MarkDead(from)
		}
		for _, e := range s.On {
			for _, r := range e.Chars {
				b.AddTransition(from, r, e.To)
			}
		}
		if s.Default != nil {
			b.AddDefault(from, *s.Default)
		}
	}
	b.SetStart(d.Start)
	return b.Build()
}
