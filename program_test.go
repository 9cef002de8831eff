package fsa

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/compute/computetest"
)

func fakeContext(t *testing.T, b *computetest.Backend) (compute.Context, []compute.Device) {
	t.Helper()
	sel, err := SelectDevice(b, 0, 0)
	if err != nil {
		t.Fatalf("SelectDevice() error = %v", err)
	}
	ctx, err := sel.Platform.CreateContext(sel.Devices)
	if err != nil {
		t.Fatalf("CreateContext() error = %v", err)
	}
	t.Cleanup(func() { _ = ctx.Release() })
	return ctx, sel.Devices
}

func writeKernel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultKernelPath)
	if err := os.WriteFile(path, []byte("@compute @workgroup_size(64) fn automaton() {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildProgramFromFile(t *testing.T) {
	b := computetest.New()
	ctx, devices := fakeContext(t, b)

	p, err := BuildProgramFromFile(writeKernel(t), ctx, devices)
	if err != nil {
		t.Fatalf("BuildProgramFromFile() error = %v", err)
	}
	p.Release()
	if b.Count("Build") != 1 {
		t.Errorf("Build called %d times, want 1", b.Count("Build"))
	}
}

func TestBuildProgramFromFile_MissingFile(t *testing.T) {
	b := computetest.New()
	ctx, devices := fakeContext(t, b)

	path := filepath.Join(t.TempDir(), "nowhere.wgsl")
	_, err := BuildProgramFromFile(path, ctx, devices)
	if !IsUserError(err) || !errors.Is(err, ErrKernelSource) {
		t.Fatalf("error = %v, want user ErrKernelSource", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name %s", err, path)
	}
	if b.Count("CreateProgram") != 0 {
		t.Error("program created for a missing file")
	}
}

func TestBuildProgramFromFile_BuildFailure(t *testing.T) {
	tests := []struct {
		name    string
		log     string
		failOp  string
		wantMsg string
	}{
		{"with log", "error: expected ';' at 3:14", "", "expected ';' at 3:14"},
		{"without log", "", "Build", "injected failure"},
		{"create program", "", "CreateProgram", "injected failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := computetest.New()
			b.BuildLog = tt.log
			b.FailOp = tt.failOp
			ctx, devices := fakeContext(t, b)

			_, err := BuildProgramFromFile(writeKernel(t), ctx, devices)
			if !IsInternalError(err) {
				t.Fatalf("error = %v, want internal", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
			if tt.failOp != "CreateProgram" && b.Count("ReleaseProgram") != 1 {
				t.Error("failed program was not released")
			}
		})
	}
}
