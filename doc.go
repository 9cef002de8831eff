// Package fsa evaluates finite-state automata over Unicode text in parallel
// on a compute device.
//
// # Overview
//
// Instead of sliding one matcher across the text, fsa launches one lane per
// code point. Lane i simulates the automaton starting at position i and
// writes one result, the length of the longest match starting there.
//
//	import (
//	    "github.com/gogpu/fsa"
//	    "github.com/gogpu/fsa/backend/cpu"
//	)
//
//	eng := fsa.NewEngine(cpu.New(), fsa.WithKernelPath("automaton.wgsl"))
//	results, err := eng.Run(automaton, []rune("BAB"))
//
// # Architecture
//
// A run goes through four stages:
//   - SelectDevice: first (or indexed) platform and device, byte order check
//   - BuildProgramFromFile: kernel source read from disk and compiled
//   - Engine.Run: automaton, text and output buffers, seven kernel arguments,
//     one lane per code point, a single completion barrier
//   - the kernel itself: SimulateEncoded on the host, kernels/automaton.wgsl
//     on GPUs
//
// Devices are reached through the compute package. backend/cpu runs lanes
// on goroutines, backend/wgpu runs them as gogpu/wgpu compute shaders.
//
// # Errors
//
// Every failure is an *Error of kind KindUser (environment or input, e.g.
// no devices, missing kernel file) or KindInternal (backend or kernel
// defects, e.g. compile errors). No partial results are returned.
//
// # Encoding
//
// Automata travel as flat little-endian words, see Automaton. Text travels
// as one little-endian uint32 per code point, see EncodeText.
package fsa

// Version is the current version of the module.
const Version = "0.3.0"
