package gesture

import "github.com/bunchim/archer/model"

// SampleBuffer is the ordered list of linear-acceleration samples gathered
// while pulling. A positive limit keeps only the newest samples.
type SampleBuffer struct {
	samples []model.AccelerationSample
	limit   int
	dropped int
}

// NewSampleBuffer returns an empty buffer. limit <= 0 means unbounded.
func NewSampleBuffer(limit int) *SampleBuffer {
	return &SampleBuffer{limit: limit}
}

// Append adds s to the end of the buffer.
func (b *SampleBuffer) Append(s model.AccelerationSample) {
	b.samples = append(b.samples, s)
	if b.limit > 0 && len(b.samples) > b.limit {
		over := len(b.samples) - b.limit
		b.samples = append(b.samples[:0], b.samples[over:]...)
		b.dropped += over
	}
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int { return len(b.samples) }

// Dropped returns how many samples were evicted by the limit since the
// last Reset.
func (b *SampleBuffer) Dropped() int { return b.dropped }

// Samples returns a copy of the buffered samples in arrival order.
func (b *SampleBuffer) Samples() []model.AccelerationSample {
	out := make([]model.AccelerationSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Reset empties the buffer.
func (b *SampleBuffer) Reset() {
	b.samples = nil
	b.dropped = 0
}
