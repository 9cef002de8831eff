package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/compute"
)

// maxGroupsPerDimension is the WebGPU default for
// maxComputeWorkgroupsPerDimension.
const maxGroupsPerDimension = 65535

// waitLogInterval is how long Finish waits between "still waiting" logs.
// Finish itself never times out.
const waitLogInterval = 5 * time.Second

// maxPollBackoff caps the sleep between completion polls.
const maxPollBackoff = time.Millisecond

// HAL capabilities Finish resolves at run time. Completion is read from the
// queue's submission index when available and falls back to idling the
// device. Staging memory is read through the queue or mapped on the device.
type (
	completionPoller interface{ PollCompleted() uint64 }
	idleWaiter       interface{ WaitIdle() error }
	idleWaiterNoErr  interface{ WaitIdle() }

	queueReader interface {
		ReadBuffer(buffer hal.Buffer, offset uint64, dst []byte) error
	}
	bufferMapper interface {
		MapBuffer(buffer hal.Buffer, offset, size uint64) ([]byte, error)
	}
	bufferUnmapper      interface{ UnmapBuffer(buffer hal.Buffer) error }
	bufferUnmapperNoErr interface{ UnmapBuffer(buffer hal.Buffer) }
)

// command is one recorded queue operation.
type command interface {
	encode(enc hal.CommandEncoder)
	destroy(dev hal.Device)
}

type dispatchCommand struct {
	label     string
	pipeline  hal.ComputePipeline
	bindGroup hal.BindGroup
	uniform   hal.Buffer // nil without scalar arguments
	groups    [3]uint32
}

func (c *dispatchCommand) encode(enc hal.CommandEncoder) {
	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: c.label})
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, c.bindGroup, nil)
	pass.Dispatch(c.groups[0], c.groups[1], c.groups[2])
	pass.End()
}

func (c *dispatchCommand) destroy(dev hal.Device) {
	dev.DestroyBindGroup(c.bindGroup)
	if c.uniform != nil {
		dev.DestroyBuffer(c.uniform)
	}
}

type readCommand struct {
	src     hal.Buffer
	staging hal.Buffer
	offset  uint64
	size    uint64
	dst     []byte
}

func (c *readCommand) encode(enc hal.CommandEncoder) {
	enc.CopyBufferToBuffer(c.src, c.staging, []hal.BufferCopy{
		{SrcOffset: c.offset, DstOffset: 0, Size: c.size},
	})
}

func (c *readCommand) destroy(dev hal.Device) { dev.DestroyBuffer(c.staging) }

// queue records commands until Finish submits them as one command buffer.
type queue struct {
	ctx *gpuContext

	mu       sync.Mutex
	commands []command
	released bool
}

func (q *queue) record(cmd command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		cmd.destroy(q.ctx.device)
		return compute.ErrReleased
	}
	q.commands = append(q.commands, cmd)
	return nil
}

// dispatchGrid returns the workgroup grid covering lanes invocations of
// workgroupX lanes each, folding into y past the per-dimension limit.
func dispatchGrid(lanes int, workgroupX uint32) ([3]uint32, error) {
	groups := (uint64(lanes) + uint64(workgroupX) - 1) / uint64(workgroupX)
	if groups <= maxGroupsPerDimension {
		return [3]uint32{uint32(groups), 1, 1}, nil //nolint:gosec // bounded above
	}
	y := (groups + maxGroupsPerDimension - 1) / maxGroupsPerDimension
	if y > maxGroupsPerDimension {
		return [3]uint32{}, fmt.Errorf("%w: %d lanes exceed the dispatch grid", compute.ErrArgument, lanes)
	}
	return [3]uint32{maxGroupsPerDimension, uint32(y), 1}, nil //nolint:gosec // bounded above
}

func (q *queue) EnqueueKernel(k compute.Kernel, globalSize int) error {
	gk, ok := k.(*kernel)
	if !ok || gk.program.ctx != q.ctx {
		return fmt.Errorf("%w: foreign kernel %T", compute.ErrArgument, k)
	}
	if globalSize < 0 {
		return fmt.Errorf("%w: global size %d", compute.ErrArgument, globalSize)
	}
	args, err := gk.snapshot()
	if err != nil {
		return err
	}
	if globalSize == 0 {
		return nil
	}
	grid, err := dispatchGrid(globalSize, gk.entry.WorkgroupSize[0])
	if err != nil {
		return err
	}
	p, err := gk.pipelineFor(args)
	if err != nil {
		return err
	}

	dev := q.ctx.device
	cmd := &dispatchCommand{label: "fsa_" + gk.entry.Name, pipeline: p.compute, groups: grid}
	var entries []gputypes.BindGroupEntry
	if len(args.scalars) > 0 {
		data := args.uniform()
		cmd.uniform, err = dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "fsa_params",
			Size:  uint64(len(data)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create uniform buffer: %w", err)
		}
		if err := q.ctx.queue.WriteBuffer(cmd.uniform, 0, data); err != nil {
			dev.DestroyBuffer(cmd.uniform)
			return fmt.Errorf("wgpu: upload uniform block: %w", err)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: cmd.uniform.NativeHandle(), Offset: 0, Size: uint64(len(data))},
		})
	}
	for i, buf := range args.buffers {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // i < maxKernelArgs
			Resource: gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: 0, Size: uint64(buf.alloc)},
		})
	}

	cmd.bindGroup, err = dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   cmd.label + "_bind",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		if cmd.uniform != nil {
			dev.DestroyBuffer(cmd.uniform)
		}
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}

	fsa.Logger().Debug("wgpu: enqueue kernel", "entry", gk.entry.Name, "lanes", globalSize,
		"workgroup", gk.entry.WorkgroupSize[0], "grid", grid)
	return q.record(cmd)
}

func (q *queue) EnqueueReadBuffer(b compute.Buffer, blocking bool, offset int, dst []byte) error {
	gb, ok := b.(*buffer)
	if !ok || gb.ctx != q.ctx {
		return fmt.Errorf("%w: foreign buffer %T", compute.ErrArgument, b)
	}
	if offset < 0 || offset%4 != 0 || offset+len(dst) > gb.size {
		return fmt.Errorf("%w: read [%d, %d) of %d bytes", compute.ErrArgument, offset, offset+len(dst), gb.size)
	}
	if len(dst) > 0 {
		size := uint64(alignUp(len(dst), 4))
		staging, err := q.ctx.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "fsa_staging",
			Size:  size,
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create staging buffer: %w", err)
		}
		cmd := &readCommand{src: gb.raw, staging: staging, offset: uint64(offset), size: size, dst: dst}
		if err := q.record(cmd); err != nil {
			return err
		}
	}
	if blocking {
		return q.Finish()
	}
	return nil
}

// Finish submits every recorded command in one command buffer, waits for
// the submission to complete and fills the host slices of recorded reads.
func (q *queue) Finish() error {
	q.mu.Lock()
	cmds := q.commands
	q.commands = nil
	q.mu.Unlock()

	if len(cmds) == 0 {
		return nil
	}
	dev := q.ctx.device
	defer func() {
		for _, cmd := range cmds {
			cmd.destroy(dev)
		}
	}()

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fsa_queue"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("fsa_queue"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	for _, cmd := range cmds {
		cmd.encode(encoder)
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	idx, err := q.ctx.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	if err := q.wait(idx); err != nil {
		return err
	}

	for _, cmd := range cmds {
		if rc, ok := cmd.(*readCommand); ok {
			if err := q.readback(rc); err != nil {
				return fmt.Errorf("wgpu: readback: %w", err)
			}
		}
	}
	return nil
}

// wait blocks until submission idx has completed.
func (q *queue) wait(idx uint64) error {
	return waitSubmission(q.ctx.device, q.ctx.queue, idx)
}

// waitSubmission blocks until the HAL reports submission idx complete,
// polling the queue (or device) or idling the device when neither can be
// polled.
func waitSubmission(dev, hq any, idx uint64) error {
	p, ok := hq.(completionPoller)
	if !ok {
		p, ok = dev.(completionPoller)
	}
	if ok {
		start, logged := time.Now(), time.Now()
		backoff := 10 * time.Microsecond
		for p.PollCompleted() < idx {
			if time.Since(logged) >= waitLogInterval {
				fsa.Logger().Warn("wgpu: still waiting for device", "submission", idx,
					"elapsed", time.Since(start).Round(time.Second))
				logged = time.Now()
			}
			time.Sleep(backoff)
			backoff = min(2*backoff, maxPollBackoff)
		}
		return nil
	}
	switch w := dev.(type) {
	case idleWaiter:
		if err := w.WaitIdle(); err != nil {
			return fmt.Errorf("wgpu: wait for device: %w", err)
		}
		return nil
	case idleWaiterNoErr:
		w.WaitIdle()
		return nil
	}
	return errors.New("wgpu: device exposes no completion wait")
}

// readback copies the staging buffer of rc into its host slice.
func (q *queue) readback(rc *readCommand) error {
	return readStaging(q.ctx.device, q.ctx.queue, rc)
}

// readStaging reads rc.staging through the queue when it can copy mapped
// memory itself and maps the buffer on the device otherwise.
func readStaging(dev, hq any, rc *readCommand) error {
	if r, ok := hq.(queueReader); ok {
		if uint64(len(rc.dst)) == rc.size {
			return r.ReadBuffer(rc.staging, 0, rc.dst)
		}
		tmp := make([]byte, rc.size)
		if err := r.ReadBuffer(rc.staging, 0, tmp); err != nil {
			return err
		}
		copy(rc.dst, tmp)
		return nil
	}

	m, ok := dev.(bufferMapper)
	if !ok {
		return errors.New("device exposes no buffer readback")
	}
	mapped, err := m.MapBuffer(rc.staging, 0, rc.size)
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	if len(mapped) < len(rc.dst) {
		err = fmt.Errorf("mapped %d bytes, want %d", len(mapped), len(rc.dst))
	} else {
		copy(rc.dst, mapped)
	}
	switch u := dev.(type) {
	case bufferUnmapper:
		if uerr := u.UnmapBuffer(rc.staging); uerr != nil && err == nil {
			err = fmt.Errorf("unmap staging buffer: %w", uerr)
		}
	case bufferUnmapperNoErr:
		u.UnmapBuffer(rc.staging)
	}
	return err
}

// Release discards commands that were never submitted.
func (q *queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return
	}
	q.released = true
	for _, cmd := range q.commands {
		cmd.destroy(q.ctx.device)
	}
	q.commands = nil
}
