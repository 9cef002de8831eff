package fsa

import (
	"fmt"

	"github.com/gogpu/fsa/compute"
)

// Selection is the platform and devices a run executes on.
type Selection struct {
	Platform compute.Platform
	Devices  []compute.Device
}

// SelectDevice picks platform platformIndex of b and device deviceIndex of
// any type on it, then checks that every selected device shares the host
// encoding's byte order. Index 0 means "first available".
//
// All failures are user errors: they describe the environment, not a
// transient fault. Nothing is allocated on any device.
func SelectDevice(b compute.Backend, platformIndex, deviceIndex int) (*Selection, error) {
	const op = "select device"

	platforms, err := b.Platforms()
	if err != nil {
		return nil, userError(op, fmt.Errorf("%w: %w", ErrNoPlatform, err))
	}
	if len(platforms) == 0 {
		return nil, userError(op, ErrNoPlatform)
	}
	if platformIndex < 0 || platformIndex >= len(platforms) {
		return nil, userError(op, fmt.Errorf("%w: platform %d of %d", ErrDeviceIndex, platformIndex, len(platforms)))
	}
	platform := platforms[platformIndex]

	pool, err := platform.Devices(compute.DeviceTypeAll)
	if err != nil {
		return nil, userError(op, fmt.Errorf("%w: %w", ErrNoDevice, err))
	}
	if len(pool) == 0 {
		return nil, userError(op, ErrNoDevice)
	}
	if deviceIndex < 0 || deviceIndex >= len(pool) {
		return nil, userError(op, fmt.Errorf("%w: device %d of %d", ErrDeviceIndex, deviceIndex, len(pool)))
	}
	devices := []compute.Device{pool[deviceIndex]}

	for _, dev := range devices {
		if !dev.LittleEndian() {
			return nil, userError(op, fmt.Errorf("%w: %s", ErrByteOrder, dev.Name()))
		}
	}
	return &Selection{Platform: platform, Devices: devices}, nil
}
