// Command fsascan evaluates a finite-state automaton at every position of
// text files on a compute device and reports the matches.
//
// Usage:
//
//	fsascan scan [flags] AUTOMATON FILE...
//	fsascan devices
//	fsascan compile DESCRIPTION.yaml OUTPUT.fsa
//	fsascan kernel OUTPUT.wgsl
//	fsascan version
//
// Exit status is 2 for usage, configuration and environment errors, 3 for
// device or kernel failures and 1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/gogpu/fsa"
	_ "github.com/gogpu/fsa/backend/cpu"
	_ "github.com/gogpu/fsa/backend/wgpu"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUser     = 2
	exitInternal = 3
)

// errUsage marks errors caused by bad flags, arguments or configuration.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fsascan:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), fsa.IsUserError(err):
		return exitUser
	case fsa.IsInternalError(err):
		return exitInternal
	default:
		return exitFailure
	}
}
