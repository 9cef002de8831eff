// Package compute defines the device abstraction the automaton engine
// dispatches through.
//
// The model follows the classic host/device split: a Backend exposes
// Platforms, a Platform exposes Devices and creates a Context bound to a set
// of them, and a Context owns Programs, Buffers and Queues. Every resource is
// released explicitly; using a resource after Release is undefined behavior.
//
// Backends register themselves by name (see Register) from an init function:
//
//	import _ "github.com/gogpu/fsa/backend/cpu"  // goroutine lanes
//	import _ "github.com/gogpu/fsa/backend/wgpu" // gogpu/wgpu compute shaders
package compute

import (
	"errors"
	"fmt"
)

// Common backend errors.
var (
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("compute: resource released")

	// ErrNotBuilt is returned when a kernel is requested from a program
	// that has not been built successfully.
	ErrNotBuilt = errors.New("compute: program not built")

	// ErrUnknownKernel is returned when a program has no entry point with
	// the requested name.
	ErrUnknownKernel = errors.New("compute: unknown kernel entry point")

	// ErrArgument is returned for out-of-range or mistyped kernel arguments.
	ErrArgument = errors.New("compute: invalid kernel argument")

	// ErrUnsetArgument is returned when a kernel is enqueued before every
	// argument has been bound.
	ErrUnsetArgument = errors.New("compute: kernel argument not set")
)

// DeviceType classifies a device.
type DeviceType uint32

// Device types. DeviceTypeAll is a query mask only.
const (
	DeviceTypeCPU DeviceType = 1 << iota
	DeviceTypeGPU
	DeviceTypeAccelerator
	DeviceTypeOther

	DeviceTypeAll DeviceType = 0xFFFFFFFF
)

// String returns a short name for the device type.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeCPU:
		return "cpu"
	case DeviceTypeGPU:
		return "gpu"
	case DeviceTypeAccelerator:
		return "accelerator"
	case DeviceTypeOther:
		return "other"
	case DeviceTypeAll:
		return "all"
	default:
		return fmt.Sprintf("DeviceType(%d)", uint32(t))
	}
}

// MemFlags describes how a buffer is accessed by kernels and how it is
// initialized.
type MemFlags uint32

// Buffer flags.
const (
	// MemReadOnly marks a buffer kernels only read.
	MemReadOnly MemFlags = 1 << iota

	// MemReadWrite marks a buffer kernels may write.
	MemReadWrite

	// MemCopyHostData copies the host slice into the buffer at allocation.
	// The buffer never aliases host memory.
	MemCopyHostData
)

// Backend is a family of compute platforms (e.g. the Go runtime, or the
// gogpu/wgpu HAL).
type Backend interface {
	// Name returns the registry name of the backend ("cpu", "wgpu").
	Name() string

	// Platforms enumerates the platforms currently available. An empty
	// slice with a nil error means the backend works but found nothing.
	Platforms() ([]Platform, error)
}

// Platform groups devices driven by one implementation.
type Platform interface {
	Name() string

	// Devices returns the devices on this platform matching mask.
	Devices(mask DeviceType) ([]Device, error)

	// CreateContext binds an execution context to devices. Device
	// resources are allocated here for the first time.
	CreateContext(devices []Device) (Context, error)
}

// Device is one compute device.
type Device interface {
	Name() string
	Type() DeviceType

	// LittleEndian reports whether the device stores multi-byte integers
	// least significant byte first.
	LittleEndian() bool
}

// Context owns every resource created for one run.
type Context interface {
	Devices() []Device

	// CreateProgram creates an unbuilt program from source text.
	CreateProgram(source string) (Program, error)

	// CreateBuffer allocates size bytes. With MemCopyHostData, host must
	// hold exactly size bytes and is copied before CreateBuffer returns.
	CreateBuffer(flags MemFlags, size int, host []byte) (Buffer, error)

	// CreateQueue creates an in-order command queue on dev.
	CreateQueue(dev Device) (Queue, error)

	Release() error
}

// Program is kernel source compiled for a set of devices.
type Program interface {
	// Build compiles the program for devices. On failure BuildLog holds
	// the diagnostics for each device.
	Build(devices []Device) error

	// BuildLog returns the compiler output for dev, possibly empty.
	BuildLog(dev Device) string

	// CreateKernel returns the entry point called name.
	CreateKernel(name string) (Kernel, error)

	Release()
}

// Kernel is an entry point with its bound arguments.
type Kernel interface {
	// SetArg binds argument index to value. Values are uint32 scalars or
	// Buffers created in the same Context.
	SetArg(index int, value any) error

	Release()
}

// Buffer is device memory.
type Buffer interface {
	Size() int
	Flags() MemFlags
	Release()
}

// Queue is an in-order command queue. Enqueue calls return as soon as the
// command is recorded; Finish is the completion barrier.
type Queue interface {
	// EnqueueKernel launches globalSize independent lanes of k. Argument
	// values are captured at enqueue time.
	EnqueueKernel(k Kernel, globalSize int) error

	// EnqueueReadBuffer copies len(dst) bytes from b at offset into dst.
	// When blocking is false dst must not be touched until Finish returns.
	EnqueueReadBuffer(b Buffer, blocking bool, offset int, dst []byte) error

	// Finish blocks until every enqueued command has retired and returns
	// the first error any of them produced.
	Finish() error

	Release()
}
