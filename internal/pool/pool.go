package pool

import (
	"context"
	"fmt"

	"github.com/kloudmate/metrics-core/internal/models"
)

// Pool is a bounded set of reusable sample buffers. All buffers are
// allocated once at construction; Checkout blocks when the pool is
// exhausted rather than allocating. The free list is a buffered channel,
// so blocking and waking are constant-time and every return wakes at most
// one waiter.
type Pool struct {
	free chan *models.Buffer
	size int
}

// New creates a pool of fixed-capacity buffers, each holding up to
// bufferCap samples. A pool that can never satisfy a checkout is a
// configuration error.
func New(buffers, bufferCap int) (*Pool, error) {
	if buffers <= 0 {
		return nil, fmt.Errorf("pool needs at least one buffer, got %d", buffers)
	}
	if bufferCap <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", bufferCap)
	}

	p := &Pool{
		free: make(chan *models.Buffer, buffers),
		size: buffers,
	}
	for i := 0; i < buffers; i++ {
		p.free <- models.NewBuffer(bufferCap)
	}

	return p, nil
}

// Checkout hands ownership of a free buffer to the caller, blocking while
// the pool is exhausted. This blocking is deliberate backpressure: no new
// buffers are ever allocated at runtime. The context is the only way out of
// the wait.
func (p *Pool) Checkout(ctx context.Context) (*models.Buffer, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
	}

	select {
	case b := <-p.free:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return resets the buffer and makes it available to the next Checkout.
// The caller must not reference the buffer afterwards.
func (p *Pool) Return(b *models.Buffer) {
	b.Reset()
	p.free <- b
}

// Free reports how many buffers are currently available.
func (p *Pool) Free() int {
	return len(p.free)
}

// Size reports the fixed pool capacity. free + checked out == Size holds
// at all times.
func (p *Pool) Size() int {
	return p.size
}
