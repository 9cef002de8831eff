package wgpu

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fsa/compute"
)

// halProvider is implemented by gpucontext providers backed by gogpu/wgpu.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewShared returns a backend with a single platform and device that
// dispatch on the provider's device and queue. The provider must expose its
// HAL objects through HalDevice() any and HalQueue() any. The device stays
// owned by the provider.
func NewShared(provider gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("wgpu: provider does not expose HAL types")
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, errors.New("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("wgpu: provider HalQueue is not hal.Queue")
	}

	b := New(opts...)
	p := &platform{backend: b, name: "shared"}
	p.sharedDevice = &device{
		platform: p,
		name:     "shared device",
		typ:      compute.DeviceTypeGPU,
		shared:   &openDevice{device: dev, queue: queue},
	}
	b.shared = p
	return b, nil
}
