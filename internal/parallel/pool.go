// Package parallel runs lane ranges on a fixed set of goroutines.
package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// task is one contiguous lane range.
type task struct {
	lo, hi int
	fn     func(lo, hi int)
	done   func()
}

// Pool distributes lane ranges across workers, each with its own queue.
// Workers steal from other queues when their own is empty, which balances
// ranges whose lanes halt early against ranges that scan far.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int

	// queues holds per-worker task queues.
	queues []chan task

	// done signals workers to stop.
	done chan struct{}

	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan task, workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan task, queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case t := <-own:
			t.run()
		default:
			if t, ok := p.steal(id); ok {
				t.run()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case t := <-own:
				t.run()
			}
		}
	}
}

func (t task) run() {
	defer t.done()
	t.fn(t.lo, t.hi)
}

func (p *Pool) drain(q chan task) {
	for {
		select {
		case t := <-q:
			t.run()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) (task, bool) {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case t := <-p.queues[i]:
			return t, true
		default:
		}
	}
	return task{}, false
}

// For splits [0, n) into ranges of at most grain lanes, runs fn on each and
// waits for all of them. Ranges are disjoint and run in no particular
// order. A panic in fn is recovered and returned as an error after every
// range has finished.
//
// On a closed pool the ranges run on the calling goroutine.
func (p *Pool) For(n, grain int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	if grain <= 0 {
		grain = (n + p.workers - 1) / p.workers
	}

	var (
		pending  sync.WaitGroup
		panicErr atomic.Pointer[error]
	)
	guarded := func(lo, hi int) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("parallel: lanes [%d, %d) panicked: %v", lo, hi, r)
				panicErr.CompareAndSwap(nil, &err)
			}
		}()
		fn(lo, hi)
	}

	worker := 0
	for lo := 0; lo < n; lo += grain {
		hi := min(lo+grain, n)
		pending.Add(1)
		t := task{lo: lo, hi: hi, fn: guarded, done: pending.Done}

		if !p.running.Load() {
			t.run()
			continue
		}
		select {
		case p.queues[worker] <- t:
		case <-p.done:
			t.run()
		}
		worker = (worker + 1) % p.workers
	}

	pending.Wait()
	if err := panicErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Close stops the workers after they finish queued ranges.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int { return p.workers }

// IsRunning returns true if the pool still accepts work.
func (p *Pool) IsRunning() bool { return p.running.Load() }
