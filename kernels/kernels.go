// Package kernels embeds the WGSL kernel sources shipped with fsa.
package kernels

import (
	_ "embed"
	"fmt"
	"os"
)

// AutomatonFile is the conventional file name of the automaton kernel.
const AutomatonFile = "automaton.wgsl"

// Automaton is the source of the automaton simulation kernel, entry point
// "automaton", workgroup size 64.
//
//go:embed automaton.wgsl
var Automaton string

// WriteFile writes the automaton kernel source to path, for engines that
// load kernels from disk.
func WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(Automaton), 0o644); err != nil { //nolint:gosec // kernel source is not secret
		return fmt.Errorf("kernels: write %s: %w", path, err)
	}
	return nil
}
