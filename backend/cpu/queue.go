package cpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/internal/parallel"
)

// minGrain is the smallest lane range handed to a worker.
const minGrain = 256

// queue executes commands in order on a dedicated goroutine. Enqueue calls
// return once the command is accepted; Finish waits for the backlog.
type queue struct {
	pool     *parallel.Pool
	commands chan func() error
	stopped  chan struct{}

	pending sync.WaitGroup

	// mu orders submissions against Release.
	mu       sync.Mutex
	released bool

	errMu sync.Mutex
	err   error // first command error, cleared by Finish
}

func newQueue(workers int) *queue {
	q := &queue{
		pool:     parallel.NewPool(workers),
		commands: make(chan func() error, 16),
		stopped:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *queue) loop() {
	defer close(q.stopped)
	for cmd := range q.commands {
		if err := cmd(); err != nil {
			q.errMu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.errMu.Unlock()
		}
		q.pending.Done()
	}
}

func (q *queue) submit(cmd func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return compute.ErrReleased
	}
	q.pending.Add(1)
	q.commands <- cmd
	return nil
}

func (q *queue) EnqueueKernel(k compute.Kernel, globalSize int) error {
	hk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("%w: foreign kernel %T", compute.ErrArgument, k)
	}
	if globalSize < 0 {
		return fmt.Errorf("%w: global size %d", compute.ErrArgument, globalSize)
	}
	args, err := hk.snapshot()
	if err != nil {
		return err
	}

	grain := max(minGrain, globalSize/(q.pool.Workers()*8))
	fsa.Logger().Debug("cpu: enqueue kernel", "lanes", globalSize, "grain", grain, "workers", q.pool.Workers())

	fn := hk.native.fn
	return q.submit(func() error {
		return q.pool.For(globalSize, grain, func(lo, hi int) {
			for lane := lo; lane < hi; lane++ {
				fn(lane, args)
			}
		})
	})
}

func (q *queue) EnqueueReadBuffer(b compute.Buffer, blocking bool, offset int, dst []byte) error {
	hb, ok := b.(*buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer %T", compute.ErrArgument, b)
	}
	if offset < 0 || offset+len(dst) > len(hb.data) {
		return fmt.Errorf("%w: read [%d, %d) of %d bytes", compute.ErrArgument, offset, offset+len(dst), len(hb.data))
	}
	if err := q.submit(func() error {
		copy(dst, hb.data[offset:])
		return nil
	}); err != nil {
		return err
	}
	if blocking {
		return q.Finish()
	}
	return nil
}

func (q *queue) Finish() error {
	q.pending.Wait()
	q.errMu.Lock()
	defer q.errMu.Unlock()
	err := q.err
	q.err = nil
	return err
}

// Release drains the queue and stops its workers.
func (q *queue) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	close(q.commands)
	q.mu.Unlock()

	<-q.stopped
	q.pool.Close()
}
