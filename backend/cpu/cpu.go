// Package cpu provides the host compute backend.
//
// The backend exposes one platform with one device: the machine running the
// program. Kernels are native Go functions registered by entry point name
// (see RegisterKernel); a program build still compiles the WGSL source with
// naga so that a kernel file accepted here is accepted by the GPU backends
// too. Lanes are spread over a worker pool in contiguous ranges.
//
// Importing the package registers it as compute.BackendCPU:
//
//	import _ "github.com/gogpu/fsa/backend/cpu"
package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/gogpu/fsa/compute"
)

func init() {
	compute.Register(compute.BackendCPU, func() compute.Backend {
		return New()
	})
}

// Option configures a Backend.
type Option func(*Backend)

// WithWorkers sets the number of goroutines running lanes.
// Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) { b.workers = n }
}

// Backend is the host compute backend.
type Backend struct {
	workers int
}

// New creates a host backend.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns compute.BackendCPU.
func (b *Backend) Name() string { return compute.BackendCPU }

// Workers returns the configured lane worker count, resolved against
// GOMAXPROCS.
func (b *Backend) Workers() int {
	if b.workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return b.workers
}

// Platforms returns the single host platform.
func (b *Backend) Platforms() ([]compute.Platform, error) {
	return []compute.Platform{&platform{b: b}}, nil
}

type platform struct {
	b *Backend
}

func (p *platform) Name() string { return "Go " + runtime.Version() }

func (p *platform) Devices(mask compute.DeviceType) ([]compute.Device, error) {
	if mask&compute.DeviceTypeCPU == 0 {
		return nil, nil
	}
	return []compute.Device{hostDevice{workers: p.b.Workers()}}, nil
}

func (p *platform) CreateContext(devices []compute.Device) (compute.Context, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("cpu: context needs at least one device")
	}
	for _, d := range devices {
		if _, ok := d.(hostDevice); !ok {
			return nil, fmt.Errorf("cpu: foreign device %q", d.Name())
		}
	}
	return &hostContext{devices: devices, workers: p.b.Workers()}, nil
}

// hostDevice is the machine itself.
type hostDevice struct {
	workers int
}

func (d hostDevice) Name() string {
	return fmt.Sprintf("%s/%s host (%d workers)", runtime.GOOS, runtime.GOARCH, d.workers)
}

func (d hostDevice) Type() compute.DeviceType { return compute.DeviceTypeCPU }

func (d hostDevice) LittleEndian() bool { return !cpu.IsBigEndian }
