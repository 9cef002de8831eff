package cpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/naga"

	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/internal/wgsl"
)

type hostContext struct {
	devices  []compute.Device
	workers  int
	released atomic.Bool
}

func (c *hostContext) Devices() []compute.Device { return c.devices }

func (c *hostContext) CreateProgram(source string) (compute.Program, error) {
	if c.released.Load() {
		return nil, compute.ErrReleased
	}
	return &program{ctx: c, source: source}, nil
}

func (c *hostContext) CreateBuffer(flags compute.MemFlags, size int, host []byte) (compute.Buffer, error) {
	if c.released.Load() {
		return nil, compute.ErrReleased
	}
	if size < 0 {
		return nil, fmt.Errorf("cpu: negative buffer size %d", size)
	}
	buf := &buffer{ctx: c, data: make([]byte, size), flags: flags}
	if flags&compute.MemCopyHostData != 0 {
		if len(host) != size {
			return nil, fmt.Errorf("cpu: host data is %d bytes, buffer %d", len(host), size)
		}
		copy(buf.data, host)
	}
	return buf, nil
}

func (c *hostContext) CreateQueue(dev compute.Device) (compute.Queue, error) {
	if c.released.Load() {
		return nil, compute.ErrReleased
	}
	if _, ok := dev.(hostDevice); !ok {
		return nil, fmt.Errorf("cpu: foreign device %q", dev.Name())
	}
	return newQueue(c.workers), nil
}

func (c *hostContext) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return compute.ErrReleased
	}
	return nil
}

// program holds WGSL source. Build compiles it with naga for diagnostics
// and records the declared entry points; kernels run natively.
type program struct {
	ctx    *hostContext
	source string

	mu      sync.Mutex
	built   bool
	log     string
	entries []wgsl.EntryPoint
}

func (p *program) Build([]compute.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.released.Load() {
		return compute.ErrReleased
	}
	if _, err := naga.Compile(p.source); err != nil {
		p.log = err.Error()
		return fmt.Errorf("cpu: compile: %w", err)
	}
	p.entries = wgsl.EntryPoints(p.source)
	if len(p.entries) == 0 {
		p.log = "no @compute entry point declared"
		return errors.New("cpu: " + p.log)
	}
	p.log = ""
	p.built = true
	return nil
}

func (p *program) BuildLog(compute.Device) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log
}

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.built {
		return nil, compute.ErrNotBuilt
	}
	declared := false
	for _, ep := range p.entries {
		if ep.Name == name {
			declared = true
			break
		}
	}
	if !declared {
		return nil, fmt.Errorf("%w: %s is not declared in the source", compute.ErrUnknownKernel, name)
	}
	native, ok := lookupKernel(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no native implementation", compute.ErrUnknownKernel, name)
	}
	return &kernel{ctx: p.ctx, native: native, args: make([]any, native.arity)}, nil
}

func (p *program) Release() {}

type kernel struct {
	ctx    *hostContext
	native nativeKernel

	mu   sync.Mutex
	args []any
}

func (k *kernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("%w: index %d, kernel takes %d", compute.ErrArgument, index, len(k.args))
	}
	switch v := value.(type) {
	case uint32:
	case *buffer:
		if v.ctx != k.ctx {
			return fmt.Errorf("%w: buffer %d belongs to another context", compute.ErrArgument, index)
		}
	default:
		return fmt.Errorf("%w: index %d has type %T", compute.ErrArgument, index, value)
	}

	k.mu.Lock()
	k.args[index] = value
	k.mu.Unlock()
	return nil
}

// snapshot returns the bound arguments, failing if any is unset.
func (k *kernel) snapshot() (Args, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, v := range k.args {
		if v == nil {
			return Args{}, fmt.Errorf("%w: %d", compute.ErrUnsetArgument, i)
		}
	}
	return Args{values: append([]any(nil), k.args...)}, nil
}

func (k *kernel) Release() {}

type buffer struct {
	ctx   *hostContext
	data  []byte
	flags compute.MemFlags
}

func (b *buffer) Size() int               { return len(b.data) }
func (b *buffer) Flags() compute.MemFlags { return b.flags }
func (b *buffer) Release()                {}
