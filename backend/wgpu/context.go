package wgpu

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/internal/metrics"
	"github.com/gogpu/fsa/internal/wgsl"
)

// maxKernelArgs bounds the argument index accepted by SetArg.
const maxKernelArgs = 16

type gpuContext struct {
	backend *Backend
	dev     *device
	device  hal.Device
	queue   hal.Queue
	owned   bool // device was opened by this context

	mu       sync.Mutex
	released bool
}

func newContext(b *Backend, dev *device, d hal.Device, q hal.Queue, owned bool) *gpuContext {
	return &gpuContext{backend: b, dev: dev, device: d, queue: q, owned: owned}
}

func (c *gpuContext) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return compute.ErrReleased
	}
	return nil
}

func (c *gpuContext) Devices() []compute.Device { return []compute.Device{c.dev} }

func (c *gpuContext) CreateProgram(source string) (compute.Program, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	return &program{ctx: c, source: source}, nil
}

func (c *gpuContext) CreateBuffer(flags compute.MemFlags, size int, host []byte) (compute.Buffer, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("wgpu: negative buffer size %d", size)
	}
	if flags&compute.MemCopyHostData != 0 && len(host) != size {
		return nil, fmt.Errorf("wgpu: host data is %d bytes, buffer %d", len(host), size)
	}

	// Bindings and copies work in whole words.
	alloc := alignUp(max(size, 4), 4)
	raw, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fsa_buffer",
		Size:  uint64(alloc),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer (%d bytes): %w", alloc, err)
	}
	if flags&compute.MemCopyHostData != 0 && size > 0 {
		staged := make([]byte, alloc)
		copy(staged, host)
		if err := c.queue.WriteBuffer(raw, 0, staged); err != nil {
			c.device.DestroyBuffer(raw)
			return nil, fmt.Errorf("wgpu: upload (%d bytes): %w", alloc, err)
		}
	}
	return &buffer{ctx: c, raw: raw, size: size, alloc: alloc, flags: flags}, nil
}

func (c *gpuContext) CreateQueue(dev compute.Device) (compute.Queue, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if dev != compute.Device(c.dev) {
		return nil, errors.New("wgpu: queue device is not the context device")
	}
	return &queue{ctx: c}, nil
}

// Release destroys the device if the context opened it.
func (c *gpuContext) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return compute.ErrReleased
	}
	c.released = true
	if c.owned {
		c.device.Destroy()
	}
	return nil
}

type buffer struct {
	ctx   *gpuContext
	raw   hal.Buffer
	size  int
	alloc int
	flags compute.MemFlags
	once  sync.Once
}

func (b *buffer) Size() int               { return b.size }
func (b *buffer) Flags() compute.MemFlags { return b.flags }

func (b *buffer) Release() {
	b.once.Do(func() { b.ctx.device.DestroyBuffer(b.raw) })
}

type program struct {
	ctx    *gpuContext
	source string

	mu      sync.Mutex
	module  hal.ShaderModule
	log     string
	entries []wgsl.EntryPoint
}

// Build compiles the source to SPIR-V, reusing the backend's compiled
// kernel cache, and creates the shader module.
func (p *program) Build([]compute.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ctx.alive(); err != nil {
		return err
	}
	if p.module != nil {
		return nil
	}

	key := sha256.Sum256([]byte(p.source))
	words, hit, err := p.ctx.backend.kernels.GetOrCompute(key, func() ([]uint32, error) {
		spirv, err := naga.Compile(p.source)
		if err != nil {
			return nil, err
		}
		return spirvWords(spirv), nil
	})
	if err != nil {
		p.log = err.Error()
		return fmt.Errorf("wgpu: compile: %w", err)
	}
	metrics.ObserveKernelCache(hit)
	fsa.Logger().Debug("wgpu: kernel compiled", "cached", hit, "words", len(words))

	p.entries = wgsl.EntryPoints(p.source)
	if len(p.entries) == 0 {
		p.log = "no @compute entry point declared"
		return errors.New("wgpu: " + p.log)
	}

	module, err := p.ctx.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "fsa_kernel",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		p.log = err.Error()
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}
	p.module = module
	p.log = ""
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

	if p.module == nil {
		return nil, compute.ErrNotBuilt
	}
	for _, ep := range p.entries {
		if ep.Name == name {
			return &kernel{program: p, entry: ep, pipelines: make(map[string]*pipeline)}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", compute.ErrUnknownKernel, name)
}

func (p *program) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.module != nil {
		p.ctx.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}

// pipeline is the compute pipeline for one argument signature.
type pipeline struct {
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	compute    hal.ComputePipeline
}

type kernel struct {
	program *program
	entry   wgsl.EntryPoint

	mu        sync.Mutex
	args      []any
	pipelines map[string]*pipeline
}

func (k *kernel) SetArg(index int, value any) error {
	if index < 0 || index >= maxKernelArgs {
		return fmt.Errorf("%w: index %d", compute.ErrArgument, index)
	}
	switch v := value.(type) {
	case uint32:
	case *buffer:
		if v.ctx != k.program.ctx {
			return fmt.Errorf("%w: buffer %d belongs to another context", compute.ErrArgument, index)
		}
	default:
		return fmt.Errorf("%w: index %d has type %T", compute.ErrArgument, index, value)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = value
	return nil
}

// bound is a snapshot of kernel arguments split by binding convention.
type bound struct {
	scalars []uint32
	buffers []*buffer
}

// signature identifies the bind group layout of b.
func (b bound) signature() string {
	var sb strings.Builder
	if len(b.scalars) > 0 {
		sb.WriteByte('u')
	}
	for _, buf := range b.buffers {
		if buf.flags&compute.MemReadOnly != 0 {
			sb.WriteByte('r')
		} else {
			sb.WriteByte('w')
		}
	}
	return sb.String()
}

// uniform packs the scalars into a 16-byte aligned block.
func (b bound) uniform() []byte {
	out := make([]byte, alignUp(max(4*len(b.scalars), 16), 16))
	for i, v := range b.scalars {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}

func (k *kernel) snapshot() (bound, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var b bound
	for i, v := range k.args {
		switch v := v.(type) {
		case uint32:
			b.scalars = append(b.scalars, v)
		case *buffer:
			b.buffers = append(b.buffers, v)
		default:
			return bound{}, fmt.Errorf("%w: %d", compute.ErrUnsetArgument, i)
		}
	}
	return b, nil
}

// pipelineFor returns the pipeline for the signature of b, creating it on
// first use.
func (k *kernel) pipelineFor(b bound) (*pipeline, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	sig := b.signature()
	if p, ok := k.pipelines[sig]; ok {
		return p, nil
	}

	dev := k.program.ctx.device
	var entries []gputypes.BindGroupLayoutEntry
	binding := uint32(0)
	if len(b.scalars) > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for _, buf := range b.buffers {
		binding++
		typ := gputypes.BufferBindingTypeStorage
		if buf.flags&compute.MemReadOnly != 0 {
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}

	label := "fsa_" + k.entry.Name
	bindLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	layout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		dev.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	k.program.mu.Lock()
	module := k.program.module
	k.program.mu.Unlock()
	if module == nil {
		dev.DestroyPipelineLayout(layout)
		dev.DestroyBindGroupLayout(bindLayout)
		return nil, compute.ErrReleased
	}

	cp, err := dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: k.entry.Name,
		},
	})
	if err != nil {
		dev.DestroyPipelineLayout(layout)
		dev.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("wgpu: create compute pipeline: %w", err)
	}

	p := &pipeline{bindLayout: bindLayout, layout: layout, compute: cp}
	k.pipelines[sig] = p
	return p, nil
}

func (k *kernel) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	dev := k.program.ctx.device
	for sig, p := range k.pipelines {
		dev.DestroyComputePipeline(p.compute)
		dev.DestroyPipelineLayout(p.layout)
		dev.DestroyBindGroupLayout(p.bindLayout)
		delete(k.pipelines, sig)
	}
}

// spirvWords converts naga's little-endian SPIR-V bytes to words.
func spirvWords(spirv []byte) []uint32 {
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words
}

func alignUp(n, a int) int { return (n + a - 1) / a * a }
