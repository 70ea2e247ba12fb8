package verify

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hibpindex/sha1t48/internal/shard"
)

// DispatchPool is a fixed set of dispatcher goroutines, each pinned to its
// own OS thread via runtime.LockOSThread and each owning a buffer that never
// migrates threads. This is the idiomatic Go rendition of spec §4.3's
// completion-based variant: Go has no stable io_uring binding in the
// example corpus (see DESIGN.md), so the "kernel completion-queue interface
// with thread-local buffers" constraint is reproduced here as goroutine/
// OS-thread pinning instead. Requests are routed round-robin across
// dispatchers, which is why this variant is documented (spec §4.3/§9) as
// slower than the offloaded pool: there is no work-stealing between
// dispatcher threads, so an unlucky assignment queues behind unrelated
// work even while other dispatchers sit idle.
type DispatchPool struct {
	dispatchers []chan dispatchJob
	next        atomic.Uint64
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

type dispatchJob struct {
	dir    string
	prefix uint32
	needle [recordSize]byte
	result chan<- blockingResult
}

// NewDispatchPool starts n dispatcher goroutines, each locked to its own OS
// thread with a dedicated, never-shared read buffer.
func NewDispatchPool(n int) *DispatchPool {
	if n <= 0 {
		n = 1
	}
	p := &DispatchPool{dispatchers: make([]chan dispatchJob, n)}
	p.wg.Add(n)
	for i := range p.dispatchers {
		ch := make(chan dispatchJob, 8)
		p.dispatchers[i] = ch
		go p.runDispatcher(ch)
	}
	return p
}

func (p *DispatchPool) runDispatcher(jobs chan dispatchJob) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// buf is thread-local by construction: only this locked goroutine, on
	// this OS thread, ever touches it.
	var buf [shard.MaxShardBytes]byte
	for job := range jobs {
		found, err := lookup(job.dir, job.prefix, job.needle, buf[:])
		job.result <- blockingResult{found: found, err: err}
	}
}

// Close stops all dispatchers and waits for in-flight work to drain.
func (p *DispatchPool) Close() {
	p.closeOnce.Do(func() {
		for _, ch := range p.dispatchers {
			close(ch)
		}
	})
	p.wg.Wait()
}

func (p *DispatchPool) submit(ctx context.Context, dir string, prefix uint32, needle [recordSize]byte) (bool, error) {
	idx := p.next.Add(1) % uint64(len(p.dispatchers))
	result := make(chan blockingResult, 1)
	select {
	case p.dispatchers[idx] <- dispatchJob{dir: dir, prefix: prefix, needle: needle, result: result}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case r := <-result:
		return r.found, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// IsBreachedDispatched routes steps 4-5 to a fixed dispatcher goroutine
// selected round-robin from pool, per spec §4.3's completion-based variant.
func (c *Checker) IsBreachedDispatched(ctx context.Context, pool *DispatchPool, password string) (bool, error) {
	prefix, needle := splitHash(password)
	return pool.submit(ctx, c.Dir, prefix, needle)
}
