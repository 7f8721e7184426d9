// Package backoff implements exponential backoff with full jitter, hand
// rolled over time.Duration the way every reconnect loop in this lineage
// does it — no dependency in the retrieval pack carries a dedicated
// backoff library, so this follows the corpus's own convention rather
// than introducing one.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff computes successive delays: base, base*factor, base*factor^2,
// ..., capped at max, each scaled by a uniform random factor in [0,1)
// ("full jitter").
type Backoff struct {
	base, max time.Duration
	factor    float64
	attempt   int
}

func New(base time.Duration, factor float64, max time.Duration) *Backoff {
	return &Backoff{base: base, factor: factor, max: max}
}

// Next returns the delay for this attempt and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	d := b.Peek()
	b.attempt++
	return d
}

// Peek returns the delay Next would return, without advancing.
func (b *Backoff) Peek() time.Duration {
	ceiling := float64(b.base)
	for i := 0; i < b.attempt; i++ {
		ceiling *= b.factor
		if ceiling >= float64(b.max) {
			ceiling = float64(b.max)
			break
		}
	}
	return time.Duration(rand.Float64() * ceiling)
}

// Reset clears the attempt counter after a successful operation.
func (b *Backoff) Reset() {
	b.attempt = 0
}
