package fsa

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/internal/metrics"
)

// Defaults for Engine options.
const (
	DefaultKernelPath = "automaton.wgsl"
	DefaultEntryPoint = "automaton"
)

var tracer = otel.Tracer("github.com/gogpu/fsa")

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	kernelPath    string
	entryPoint    string
	platformIndex int
	deviceIndex   int
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		kernelPath: DefaultKernelPath,
		entryPoint: DefaultEntryPoint,
	}
}

// WithKernelPath sets the kernel source file. Default: DefaultKernelPath.
func WithKernelPath(path string) Option {
	return func(o *engineOptions) { o.kernelPath = path }
}

// WithEntryPoint sets the kernel entry point. Default: DefaultEntryPoint.
func WithEntryPoint(name string) Option {
	return func(o *engineOptions) { o.entryPoint = name }
}

// WithPlatform selects a platform by enumeration index. Default: 0.
func WithPlatform(index int) Option {
	return func(o *engineOptions) { o.platformIndex = index }
}

// WithDevice selects a device on the platform by enumeration index.
// Default: 0.
func WithDevice(index int) Option {
	return func(o *engineOptions) { o.deviceIndex = index }
}

// Engine evaluates automata over text, one lane per code point.
//
// An Engine holds configuration only. Every Run creates its own execution
// context, program, buffers and queue and releases them before returning,
// so an Engine is safe for concurrent use.
type Engine struct {
	backend compute.Backend
	opts    engineOptions
}

// NewEngine returns an Engine dispatching through b.
func NewEngine(b compute.Backend, opts ...Option) *Engine {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{backend: b, opts: o}
}

// Backend returns the backend the engine dispatches through.
func (e *Engine) Backend() compute.Backend { return e.backend }

// Run evaluates a at every position of text and returns one result per
// code point, in text order. See RunContext.
func (e *Engine) Run(a *Automaton, text []rune) ([]uint32, error) {
	return e.RunContext(context.Background(), a, text)
}

// RunContext is Run with a context for trace propagation. Runs cannot be
// cancelled: once dispatched, the call blocks until the device finishes.
//
// Either the complete result or an *Error is returned, never both.
func (e *Engine) RunContext(ctx context.Context, a *Automaton, text []rune) ([]uint32, error) {
	runID := uuid.NewString()
	backendName := e.backend.Name()

	_, span := tracer.Start(ctx, "fsa.Run", trace.WithAttributes(
		attribute.String("fsa.run_id", runID),
		attribute.String("fsa.backend", backendName),
		attribute.Int("fsa.lanes", len(text)),
	))
	defer span.End()

	start := time.Now()
	out, err := e.run(runID, a, text)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	switch KindOf(err) {
	case KindUser:
		outcome = metrics.OutcomeUser
	case KindInternal:
		outcome = metrics.OutcomeInternal
	}
	metrics.ObserveRun(backendName, outcome, len(text), elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		Logger().Debug("fsa: run failed", "run", runID, "kind", KindOf(err), "err", err)
		return nil, err
	}
	Logger().Debug("fsa: run complete", "run", runID, "lanes", len(text), "elapsed", elapsed)
	return out, nil
}

func (e *Engine) run(runID string, a *Automaton, text []rune) ([]uint32, error) {
	if a == nil {
		return nil, userError("validate", fmt.Errorf("%w: nil", ErrInvalidAutomaton))
	}
	if err := a.Validate(); err != nil {
		return nil, userError("validate", err)
	}
	if uint64(len(text)) > math.MaxUint32 {
		return nil, userError("validate", ErrTextTooLong)
	}
	length := uint32(len(text)) //nolint:gosec // checked above

	sel, err := SelectDevice(e.backend, e.opts.platformIndex, e.opts.deviceIndex)
	if err != nil {
		return nil, err
	}
	Logger().Info("fsa: device selected", "run", runID,
		"platform", sel.Platform.Name(), "device", sel.Devices[0].Name(), "type", sel.Devices[0].Type())

	cctx, err := sel.Platform.CreateContext(sel.Devices)
	if err != nil {
		return nil, internalError("create context", err)
	}
	defer func() {
		if err := cctx.Release(); err != nil {
			Logger().Warn("fsa: context release failed", "run", runID, "err", err)
		}
	}()

	program, err := BuildProgramFromFile(e.opts.kernelPath, cctx, sel.Devices)
	if err != nil {
		return nil, err
	}
	defer program.Release()

	kernel, err := program.CreateKernel(e.opts.entryPoint)
	if err != nil {
		return nil, internalError("create kernel", fmt.Errorf("%s: %w", e.opts.entryPoint, err))
	}
	defer kernel.Release()

	if length == 0 {
		return []uint32{}, nil
	}

	return e.dispatch(runID, cctx, sel.Devices[0], kernel, a, text, length)
}

// dispatch uploads the inputs, launches one lane per code point and waits
// for the result behind a single Finish.
func (e *Engine) dispatch(
	runID string, cctx compute.Context, dev compute.Device, kernel compute.Kernel,
	a *Automaton, text []rune, length uint32,
) ([]uint32, error) {
	textBytes := EncodeText(text)
	outSize := len(text) * WordSize

	dAutomaton, err := cctx.CreateBuffer(compute.MemReadOnly|compute.MemCopyHostData, len(a.Data), a.Data)
	if err != nil {
		return nil, internalError("create buffer", fmt.Errorf("automaton (%d bytes): %w", len(a.Data), err))
	}
	defer dAutomaton.Release()

	dText, err := cctx.CreateBuffer(compute.MemReadOnly|compute.MemCopyHostData, len(textBytes), textBytes)
	if err != nil {
		return nil, internalError("create buffer", fmt.Errorf("text (%d bytes): %w", len(textBytes), err))
	}
	defer dText.Release()

	dOutput, err := cctx.CreateBuffer(compute.MemReadWrite, outSize, nil)
	if err != nil {
		return nil, internalError("create buffer", fmt.Errorf("output (%d bytes): %w", outSize, err))
	}
	defer dOutput.Release()

	Logger().Debug("fsa: buffers allocated", "run", runID,
		"automaton", len(a.Data), "text", len(textBytes), "output", outSize)

	args := [KernelArity]any{
		ArgStateCount: a.N,
		ArgStride:     a.M,
		ArgOffset:     a.O,
		ArgTextLength: length,
		ArgAutomaton:  dAutomaton,
		ArgText:       dText,
		ArgOutput:     dOutput,
	}
	for i, v := range args {
		if err := kernel.SetArg(i, v); err != nil {
			return nil, internalError("set kernel argument", fmt.Errorf("argument %d: %w", i, err))
		}
	}

	queue, err := cctx.CreateQueue(dev)
	if err != nil {
		return nil, internalError("create queue", err)
	}
	defer queue.Release()

	if err := queue.EnqueueKernel(kernel, len(text)); err != nil {
		return nil, internalError("enqueue kernel", err)
	}

	host := make([]byte, outSize)
	if err := queue.EnqueueReadBuffer(dOutput, false, 0, host); err != nil {
		return nil, internalError("enqueue read", err)
	}

	if err := queue.Finish(); err != nil {
		return nil, internalError("finish", err)
	}
	return decodeResults(host), nil
}
