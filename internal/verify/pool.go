package verify

import (
	"context"
	"sync"

	"github.com/hibpindex/sha1t48/internal/shard"
)

// blockingJob is one unit of blocking work: read the shard, search it,
// report back. The offloaded variant hands this whole unit to the pool in a
// single handoff, deliberately not splitting the open/read/search sequence
// across multiple submissions — spec §4.3/§9 calls out wrapping each
// syscall individually as strictly worse.
type blockingJob struct {
	dir    string
	prefix uint32
	needle [recordSize]byte
	result chan<- blockingResult
}

type blockingResult struct {
	found bool
	err   error
}

// BlockingPool is a bounded pool of goroutines dedicated to blocking
// shard reads, shared across offloaded lookups. It is the Go rendition of
// spec §4.3's "shared bounded worker pool": one goroutine handoff per
// lookup amortizes pool-reuse cost, rather than suspending per I/O syscall.
type BlockingPool struct {
	jobs chan blockingJob
	wg   sync.WaitGroup
}

// NewBlockingPool starts size worker goroutines. size should match the
// expected concurrent-lookup load; it is independent of the builder's
// worker count.
func NewBlockingPool(size int) *BlockingPool {
	if size <= 0 {
		size = 1
	}
	p := &BlockingPool{jobs: make(chan blockingJob, size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *BlockingPool) run() {
	defer p.wg.Done()
	var buf [shard.MaxShardBytes]byte
	for job := range p.jobs {
		found, err := lookup(job.dir, job.prefix, job.needle, buf[:])
		job.result <- blockingResult{found: found, err: err}
	}
}

// Close stops accepting new work and waits for in-flight jobs to finish.
func (p *BlockingPool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *BlockingPool) submit(ctx context.Context, dir string, prefix uint32, needle [recordSize]byte) (bool, error) {
	result := make(chan blockingResult, 1)
	select {
	case p.jobs <- blockingJob{dir: dir, prefix: prefix, needle: needle, result: result}:
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

// IsBreachedOffloaded computes the hash on the caller's goroutine (steps
// 1-3, CPU-light) and hands steps 4-5 (read + search) to pool as a single
// unit of blocking work, per spec §4.3's offloaded-blocking variant.
func (c *Checker) IsBreachedOffloaded(ctx context.Context, pool *BlockingPool, password string) (bool, error) {
	prefix, needle := splitHash(password)
	return pool.submit(ctx, c.Dir, prefix, needle)
}
