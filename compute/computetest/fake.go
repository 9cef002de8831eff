// Package computetest provides a recording in-memory compute backend for
// testing dispatch code without devices.
//
// Kernels are Go functions registered by entry point name. Queued commands
// run only at Finish, so callers that read results before the completion
// barrier observe zeros.
package computetest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/fsa/compute"
)

// ErrInjected is returned by operations named in Backend.FailOp.
var ErrInjected = errors.New("computetest: injected failure")

// KernelFunc runs one lane. Scalar arguments are uint32; buffer arguments
// are *Buffer.
type KernelFunc func(lane int, args []any)

// DeviceSpec describes a fake device.
type DeviceSpec struct {
	Name      string
	Type      compute.DeviceType
	BigEndian bool
}

// PlatformSpec describes a fake platform.
type PlatformSpec struct {
	Name    string
	Devices []DeviceSpec
}

// Backend is a fake compute.Backend. Configure the exported fields before
// use; they are not synchronized.
type Backend struct {
	Specs   []PlatformSpec
	Kernels map[string]KernelFunc

	// BuildLog, when non-empty, makes every Build fail and is reported as
	// the log of each device.
	BuildLog string

	// FailOp names one operation that fails with ErrInjected, e.g.
	// "CreateBuffer", "SetArg", "EnqueueKernel", "Finish".
	FailOp string

	// PlatformsErr is returned by Platforms when set.
	PlatformsErr error

	mu     sync.Mutex
	events []string
}

// New returns a fake backend with one little-endian GPU on one platform.
func New() *Backend {
	return &Backend{
		Specs: []PlatformSpec{{
			Name:    "fake",
			Devices: []DeviceSpec{{Name: "fake-gpu", Type: compute.DeviceTypeGPU}},
		}},
		Kernels: make(map[string]KernelFunc),
	}
}

// Name returns "fake".
func (b *Backend) Name() string { return "fake" }

// Events returns the recorded operations in call order.
func (b *Backend) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// Count returns how many times op was recorded.
func (b *Backend) Count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == op || strings.HasPrefix(e, op+" ") {
			n++
		}
	}
	return n
}

func (b *Backend) record(op string, detail ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(detail) > 0 {
		b.events = append(b.events, op+" "+strings.TrimSpace(fmt.Sprintln(detail...)))
	} else {
		b.events = append(b.events, op)
	}
	if b.FailOp == op {
		return fmt.Errorf("%w: %s", ErrInjected, op)
	}
	return nil
}

// Platforms implements compute.Backend.
func (b *Backend) Platforms() ([]compute.Platform, error) {
	_ = b.record("Platforms")
	if b.PlatformsErr != nil {
		return nil, b.PlatformsErr
	}
	out := make([]compute.Platform, len(b.Specs))
	for i := range b.Specs {
		out[i] = &platform{b: b, spec: b.Specs[i]}
	}
	return out, nil
}

type platform struct {
	b    *Backend
	spec PlatformSpec
}

func (p *platform) Name() string { return p.spec.Name }

func (p *platform) Devices(mask compute.DeviceType) ([]compute.Device, error) {
	_ = p.b.record("Devices")
	var out []compute.Device
	for _, d := range p.spec.Devices {
		if d.Type&mask != 0 {
			out = append(out, &device{spec: d})
		}
	}
	return out, nil
}

func (p *platform) CreateContext(devices []compute.Device) (compute.Context, error) {
	if err := p.b.record("CreateContext"); err != nil {
		return nil, err
	}
	return &fakeContext{b: p.b, devices: devices}, nil
}

type device struct{ spec DeviceSpec }

func (d *device) Name() string             { return d.spec.Name }
func (d *device) Type() compute.DeviceType { return d.spec.Type }
func (d *device) LittleEndian() bool       { return !d.spec.BigEndian }

type fakeContext struct {
	b       *Backend
	devices []compute.Device
}

func (c *fakeContext) Devices() []compute.Device { return c.devices }

func (c *fakeContext) CreateProgram(source string) (compute.Program, error) {
	if err := c.b.record("CreateProgram"); err != nil {
		return nil, err
	}
	return &program{b: c.b, source: source}, nil
}

func (c *fakeContext) CreateBuffer(flags compute.MemFlags, size int, host []byte) (compute.Buffer, error) {
	if err := c.b.record("CreateBuffer", size); err != nil {
		return nil, err
	}
	buf := &Buffer{Data: make([]byte, size), flags: flags}
	if flags&compute.MemCopyHostData != 0 {
		if len(host) != size {
			return nil, fmt.Errorf("computetest: host data is %d bytes, buffer %d", len(host), size)
		}
		copy(buf.Data, host)
	}
	return buf, nil
}

func (c *fakeContext) CreateQueue(compute.Device) (compute.Queue, error) {
	if err := c.b.record("CreateQueue"); err != nil {
		return nil, err
	}
	return &queue{b: c.b}, nil
}

func (c *fakeContext) Release() error {
	_ = c.b.record("ReleaseContext")
	return nil
}

type program struct {
	b      *Backend
	source string
	built  bool
}

func (p *program) Build([]compute.Device) error {
	if err := p.b.record("Build"); err != nil {
		return err
	}
	if p.b.BuildLog != "" {
		return errors.New("computetest: build failed")
	}
	p.built = true
	return nil
}

func (p *program) BuildLog(compute.Device) string { return p.b.BuildLog }

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	if err := p.b.record("CreateKernel", name); err != nil {
		return nil, err
	}
	if !p.built {
		return nil, compute.ErrNotBuilt
	}
	fn, ok := p.b.Kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compute.ErrUnknownKernel, name)
	}
	return &kernel{b: p.b, fn: fn}, nil
}

func (p *program) Release() { _ = p.b.record("ReleaseProgram") }

type kernel struct {
	b    *Backend
	fn   KernelFunc
	args []any
}

func (k *kernel) SetArg(index int, value any) error {
	if err := k.b.record("SetArg", index); err != nil {
		return err
	}
	switch value.(type) {
	case uint32, *Buffer:
	default:
		return fmt.Errorf("%w: %T", compute.ErrArgument, value)
	}
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = value
	return nil
}

func (k *kernel) Release() { _ = k.b.record("ReleaseKernel") }

// Buffer is the fake device buffer.
type Buffer struct {
	Data  []byte
	flags compute.MemFlags
}

func (b *Buffer) Size() int               { return len(b.Data) }
func (b *Buffer) Flags() compute.MemFlags { return b.flags }
func (b *Buffer) Release()                {}

type queue struct {
	b        *Backend
	commands []func()
}

func (q *queue) EnqueueKernel(k compute.Kernel, globalSize int) error {
	if err := q.b.record("EnqueueKernel", globalSize); err != nil {
		return err
	}
	fk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("%w: foreign kernel %T", compute.ErrArgument, k)
	}
	args := append([]any(nil), fk.args...)
	for i, a := range args {
		if a == nil {
			return fmt.Errorf("%w: %d", compute.ErrUnsetArgument, i)
		}
	}
	q.commands = append(q.commands, func() {
		for lane := range globalSize {
			fk.fn(lane, args)
		}
	})
	return nil
}

func (q *queue) EnqueueReadBuffer(b compute.Buffer, blocking bool, offset int, dst []byte) error {
	if err := q.b.record("EnqueueReadBuffer", blocking); err != nil {
		return err
	}
	fb, ok := b.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer %T", compute.ErrArgument, b)
	}
	if offset < 0 || offset+len(dst) > len(fb.Data) {
		return fmt.Errorf("%w: read [%d, %d) of %d bytes", compute.ErrArgument, offset, offset+len(dst), len(fb.Data))
	}
	q.commands = append(q.commands, func() { copy(dst, fb.Data[offset:]) })
	if blocking {
		return q.Finish()
	}
	return nil
}

func (q *queue) Finish() error {
	if err := q.b.record("Finish"); err != nil {
		return err
	}
	for _, cmd := range q.commands {
		cmd()
	}
	q.commands = nil
	return nil
}

func (q *queue) Release() { _ = q.b.record("ReleaseQueue") }
