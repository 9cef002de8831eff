package fsa

import (
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/fsa/compute"
)

// BuildProgramFromFile reads the kernel source at path and builds it for
// devices in ctx.
//
// An unreadable file is a user error naming path. A failed build is an
// internal error whose message carries every non-empty device build log.
// On failure the partially built program is released and nil is returned.
func BuildProgramFromFile(path string, ctx compute.Context, devices []compute.Device) (compute.Program, error) {
	const op = "build program"

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, userError(op, fmt.Errorf("%w %s: %w", ErrKernelSource, path, err))
	}

	program, err := ctx.CreateProgram(string(source))
	if err != nil {
		return nil, internalError(op, fmt.Errorf("create program from %s: %w", path, err))
	}

	if err := program.Build(devices); err != nil {
		var sb strings.Builder
		for _, dev := range devices {
			if log := program.BuildLog(dev); log != "" {
				sb.WriteString(log)
				sb.WriteByte('\n')
			}
		}
		program.Release()
		if sb.Len() == 0 {
			// No device reported a log; keep the backend's own error.
			sb.WriteString(err.Error())
			sb.WriteByte('\n')
		}
		return nil, internalError(op, fmt.Errorf("%w:\n%s", ErrBuild, sb.String()))
	}

	Logger().Debug("fsa: program built", "path", path, "bytes", len(source))
	return program, nil
}
