package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/backend/cpu"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/kernels"
)

// autoOrder is tried in turn when no backend is configured.
var autoOrder = []string{compute.BackendWGPU, compute.BackendCPU}

// backend resolves the configured backend. Without one, the first backend
// in autoOrder exposing the configured device wins.
func (a *app) backend() (compute.Backend, error) {
	switch a.cfg.Backend {
	case compute.BackendCPU:
		return cpu.New(cpu.WithWorkers(a.cfg.Workers)), nil
	case "":
	default:
		b, err := compute.Get(a.cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errUsage, a.cfg.Backend, err)
		}
		return b, nil
	}

	var lastErr error
	for _, name := range autoOrder {
		if !compute.IsRegistered(name) {
			continue
		}
		var b compute.Backend
		if name == compute.BackendCPU {
			b = cpu.New(cpu.WithWorkers(a.cfg.Workers))
		} else {
			var err error
			if b, err = compute.Get(name); err != nil {
				continue
			}
		}
		if _, err := fsa.SelectDevice(b, a.cfg.Platform, a.cfg.Device); err != nil {
			fsa.Logger().Info("fsascan: backend skipped", "backend", name, "err", err)
			lastErr = err
			continue
		}
		return b, nil
	}
	if lastErr == nil {
		lastErr = compute.ErrBackendNotAvailable
	}
	return nil, lastErr
}

// kernelPath returns the configured kernel path, or writes the embedded
// kernel to a temporary directory. cleanup removes anything written.
func (a *app) kernelPath() (path string, cleanup func(), err error) {
	if a.cfg.Kernel != "" {
		return a.cfg.Kernel, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "fsascan-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() {
		if err := os.RemoveAll(dir); err != nil {
			fsa.Logger().Warn("fsascan: remove kernel directory", "dir", dir, "err", err)
		}
	}
	path = filepath.Join(dir, kernels.AutomatonFile)
	if err := kernels.WriteFile(path); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// engine returns an engine on the resolved backend and the cleanup for its
// kernel file.
func (a *app) engine() (*fsa.Engine, func(), error) {
	b, err := a.backend()
	if err != nil {
		return nil, nil, err
	}
	path, cleanup, err := a.kernelPath()
	if err != nil {
		return nil, nil, fmt.Errorf("fsascan: kernel: %w", err)
	}
	return fsa.NewEngine(b, a.cfg.EngineOptions(path)...), cleanup, nil
}
