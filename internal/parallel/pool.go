// Package parallel provides the worker pool used for CPU fan-out work
// such as rectangle picking.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs closures on a fixed set of goroutines. Each worker
// owns a queue and steals from the others when its own runs dry, so a
// few slow items do not leave the rest of the pool idle.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// workers <= 0 selects GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.loop(i)
	}
	return p
}

func (p *WorkerPool) loop(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			run(fn)
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			run(fn)
		}
	}
}

func run(fn func()) {
	if fn != nil {
		fn()
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			run(fn)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work round-robin and blocks until every item
// has run. It is a no-op on a closed pool.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 || !p.running.Load() {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer wg.Done()
			fn()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			wg.Done()
		}
	}
	wg.Wait()
}

// Close stops accepting work, finishes what is queued and stops the
// workers. It is safe to call more than once.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Span is a half-open index range [Lo, Hi).
type Span struct {
	Lo, Hi int
}

// Len returns the number of indices in the span.
func (s Span) Len() int { return s.Hi - s.Lo }

// Split cuts [0, n) into at most parts contiguous spans of nearly equal
// length. It returns nil when n <= 0.
func Split(n, parts int) []Span {
	if n <= 0 {
		return nil
	}
	parts = min(max(parts, 1), n)
	spans := make([]Span, 0, parts)
	base, extra := n/parts, n%parts
	lo := 0
	for i := range parts {
		size := base
		if i < extra {
			size++
		}
		spans = append(spans, Span{Lo: lo, Hi: lo + size})
		lo += size
	}
	return spans
}

// Gather runs fn over each span of [0, n) on the pool, giving every
// span a private accumulator created by newAcc. The accumulators are
// handed to merge one at a time, in span order, after all work is done.
func Gather[A any](p *WorkerPool, n, parts int, newAcc func() A, fn func(s Span, acc A), merge func(A)) {
	spans := Split(n, parts)
	if len(spans) == 0 {
		return
	}
	accs := make([]A, len(spans))
	work := make([]func(), len(spans))
	for i, s := range spans {
		accs[i] = newAcc()
		acc := accs[i]
		work[i] = func() { fn(s, acc) }
	}
	if p == nil || !p.IsRunning() {
		for _, w := range work {
			w()
		}
	} else {
		p.ExecuteAll(work)
	}
	for _, a := range accs {
		merge(a)
	}
}
