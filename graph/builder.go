// Package graph builds automata in the fsa device encoding and reads and
// writes them as files.
//
// Two file formats are supported: a compact binary form (".fsa", see Write)
// holding the encoding verbatim, and a YAML description (see Description)
// meant to be written by hand.
package graph

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gogpu/fsa"
)

// ErrBuild is wrapped by every Builder error.
var ErrBuild = errors.New("graph: invalid automaton")

type edge struct {
	label, target uint32
}

type state struct {
	flags    uint32
	edges    []edge
	defaults []uint32
}

// Builder assembles an automaton state by state. Methods record the first
// error and turn into no-ops; Build reports it.
//
//	b := graph.NewBuilder()
//	s0 := b.AddState(false)
//	s1 := b.AddState(true)
//	b.AddTransition(s0, 'A', s1)
//	a, err := b.Build()
type Builder struct {
	states []state
	start  uint32
	err    error
}

// NewBuilder returns an empty builder whose start state is 0.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: "+format, append([]any{ErrBuild}, args...)...)
	}
}

func (b *Builder) check(op string, s uint32) bool {
	if b.err != nil {
		return false
	}
	if int(s) >= len(b.states) {
		b.fail("%s: state %d does not exist", op, s)
		return false
	}
	return true
}

// AddState appends a state and returns its index.
func (b *Builder) AddState(accept bool) uint32 {
	s := state{}
	if accept {
		s.flags |= fsa.FlagAccept
	}
	b.states = append(b.states, s)
	return uint32(len(b.states) - 1) //nolint:gosec // state count is checked in Build
}

// MarkDead makes lanes halt on entering s. A dead state never accepts.
func (b *Builder) MarkDead(s uint32) {
	if !b.check("mark dead", s) {
		return
	}
	b.states[s].flags = fsa.FlagDead
}

// AddTransition adds an edge from -> to on code point r. Edges are tried
// in the order they were added and the first match wins.
func (b *Builder) AddTransition(from uint32, r rune, to uint32) {
	if !b.check("add transition", from) || !b.check("add transition", to) {
		return
	}
	if r < 0 || r > utf8.MaxRune {
		b.fail("add transition: %U is not a code point", r)
		return
	}
	b.states[from].edges = append(b.states[from].edges, edge{label: uint32(r), target: to})
}

// AddDefault adds an edge from -> to taken on any code point. Default edges
// are placed after every explicit edge of the state.
func (b *Builder) AddDefault(from, to uint32) {
	if !b.check("add default", from) || !b.check("add default", to) {
		return
	}
	b.states[from].defaults = append(b.states[from].defaults, to)
}

// SetStart sets the state lanes start in.
func (b *Builder) SetStart(s uint32) {
	if !b.check("set start", s) {
		return
	}
	b.start = s
}

// Len returns the number of states added so far.
func (b *Builder) Len() int { return len(b.states) }

// Build encodes the automaton. The slot count is the largest number of
// edges on any state, at least 1; shorter states are padded with
// fsa.LabelNone slots.
func (b *Builder) Build() (*fsa.Automaton, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.states) == 0 {
		return nil, fmt.Errorf("%w: no states", ErrBuild)
	}

	slots := 1
	for _, s := range b.states {
		slots = max(slots, len(s.edges)+len(s.defaults))
	}
	n, m := uint64(len(b.states)), uint64(slots)
	if n > uint64(fsa.LabelNone) || m > uint64(fsa.LabelNone) {
		return nil, fmt.Errorf("%w: %d states x %d slots", ErrBuild, n, m)
	}

	enc := newEncoder(uint32(n), uint32(m)) //nolint:gosec // bounded above
	for i, s := range b.states {
		enc.state(uint32(i), s) //nolint:gosec // bounded above
	}
	a := &fsa.Automaton{Data: enc.data, N: uint32(n), M: uint32(m), O: b.start} //nolint:gosec // bounded above
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
