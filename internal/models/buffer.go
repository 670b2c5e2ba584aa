package models

// Buffer is a fixed-capacity batch of samples. A buffer is owned by exactly
// one party at a time: the pool (free), a sink (being filled), the transfer
// channel (in flight), or the aggregator (being drained). It carries no
// internal synchronization; the ownership protocol is the synchronization.
type Buffer struct {
	samples []Sample
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{samples: make([]Sample, 0, capacity)}
}

// Append adds a sample. The caller must ensure the buffer is not full.
func (b *Buffer) Append(s Sample) {
	b.samples = append(b.samples, s)
}

func (b *Buffer) Len() int {
	return len(b.samples)
}

func (b *Buffer) Cap() int {
	return cap(b.samples)
}

func (b *Buffer) Full() bool {
	return len(b.samples) == cap(b.samples)
}

// Samples returns the used slots in insertion order. The slice aliases the
// buffer's storage and is invalidated by Reset.
func (b *Buffer) Samples() []Sample {
	return b.samples
}

// Reset clears the used-slot count, retaining capacity.
func (b *Buffer) Reset() {
	b.samples = b.samples[:0]
}
