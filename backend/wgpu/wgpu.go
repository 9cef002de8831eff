package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/internal/cache"
)

// DefaultKernelCacheSize is the number of compiled kernels kept per backend.
const DefaultKernelCacheSize = 32

// InstanceFactory creates HAL instances. hal backends returned by
// hal.GetBackend and noop.API satisfy it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

type api struct {
	name    string
	factory InstanceFactory
}

// Option configures a Backend.
type Option func(*Backend)

// WithAPI adds a HAL API as a platform. The first WithAPI replaces the
// default Vulkan platform.
func WithAPI(name string, factory InstanceFactory) Option {
	return func(b *Backend) {
		if !b.customAPIs {
			b.apis = nil
			b.customAPIs = true
		}
		b.apis = append(b.apis, api{name: name, factory: factory})
	}
}

// WithKernelCacheSize sets how many compiled kernels are kept.
// Zero or negative disables eviction.
func WithKernelCacheSize(n int) Option {
	return func(b *Backend) { b.cacheSize = n }
}

func init() {
	compute.Register(compute.BackendWGPU, func() compute.Backend {
		return defaultBackend()
	})
}

// defaultBackend is shared by every registry lookup so HAL instances are
// created once per process.
var defaultBackend = sync.OnceValue(func() *Backend { return New() })

// Backend enumerates HAL APIs as platforms.
type Backend struct {
	apis       []api
	customAPIs bool
	cacheSize  int

	kernels *cache.Cache[[32]byte, []uint32]

	mu        sync.Mutex
	platforms []*platform
	probed    bool
	shared    *platform
}

// New creates a backend. Without options it probes the Vulkan HAL.
func New(opts ...Option) *Backend {
	b := &Backend{cacheSize: DefaultKernelCacheSize}
	if vk, ok := hal.GetBackend(gputypes.BackendVulkan); ok {
		b.apis = []api{{name: "Vulkan", factory: vk}}
	}
	for _, opt := range opts {
		opt(b)
	}
	b.kernels = cache.New[[32]byte, []uint32](b.cacheSize)
	return b
}

// Name returns compute.BackendWGPU.
func (b *Backend) Name() string { return compute.BackendWGPU }

// Platforms creates one HAL instance per API on first use and returns the
// APIs that initialized. APIs that fail are logged and skipped.
func (b *Backend) Platforms() ([]compute.Platform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shared != nil {
		return []compute.Platform{b.shared}, nil
	}
	if !b.probed {
		b.probed = true
		for _, a := range b.apis {
			instance, err := a.factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
			if err != nil {
				fsa.Logger().Warn("wgpu: instance unavailable", "api", a.name, "err", err)
				continue
			}
			b.platforms = append(b.platforms, &platform{backend: b, name: a.name, instance: instance})
		}
	}

	out := make([]compute.Platform, len(b.platforms))
	for i, p := range b.platforms {
		out[i] = p
	}
	return out, nil
}

// CacheStats reports the compiled kernel cache counters.
func (b *Backend) CacheStats() cache.Stats { return b.kernels.Stats() }

// Close destroys the HAL instances. Contexts must be released first.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.platforms {
		p.instance.Destroy()
	}
	b.platforms = nil
	b.probed = false
}

// platform is one HAL instance, or a shared device.
type platform struct {
	backend  *Backend
	name     string
	instance hal.Instance

	// set for shared platforms
	sharedDevice *device
}

func (p *platform) Name() string { return p.name }

func (p *platform) Devices(mask compute.DeviceType) ([]compute.Device, error) {
	if p.sharedDevice != nil {
		if p.sharedDevice.typ&mask == 0 {
			return nil, nil
		}
		return []compute.Device{p.sharedDevice}, nil
	}

	var out []compute.Device
	for _, ea := range p.instance.EnumerateAdapters(nil) {
		d := &device{
			platform: p,
			name:     ea.Info.Name,
			typ:      deviceType(ea.Info.DeviceType),
			adapter:  ea.Adapter,
		}
		if d.typ&mask != 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *platform) CreateContext(devices []compute.Device) (compute.Context, error) {
	if len(devices) != 1 {
		return nil, fmt.Errorf("wgpu: context needs exactly one device, got %d", len(devices))
	}
	d, ok := devices[0].(*device)
	if !ok || d.platform != p {
		return nil, errors.New("wgpu: device does not belong to this platform")
	}

	if d.shared != nil {
		return newContext(p.backend, d, d.shared.device, d.shared.queue, false), nil
	}
	opened, err := d.adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("wgpu: open %s: %w", d.name, err)
	}
	return newContext(p.backend, d, opened.Device, opened.Queue, true), nil
}

// device is an adapter, or an already opened shared device.
type device struct {
	platform *platform
	name     string
	typ      compute.DeviceType
	adapter  hal.Adapter

	shared *openDevice
}

type openDevice struct {
	device hal.Device
	queue  hal.Queue
}

func (d *device) Name() string             { return d.name }
func (d *device) Type() compute.DeviceType { return d.typ }

// LittleEndian is true: WGSL host-shareable types are little-endian on
// every conforming implementation.
func (d *device) LittleEndian() bool { return true }

func deviceType(t gputypes.DeviceType) compute.DeviceType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU:
		return compute.DeviceTypeGPU
	default:
		return compute.DeviceTypeOther
	}
}
