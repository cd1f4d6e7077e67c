package bus

import (
	"math/rand"
	"time"
)

// Policy computes retry delays: the base delay doubles per attempt up to
// a cap. Delay is the deterministic schedule; Jittered spreads each delay
// over [d/2, d) so simultaneous reconnects from many processes do not
// land together. Because consecutive uncapped delay ranges do not
// overlap, jittered delays are still non-decreasing until the cap.
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the un-jittered delay before the given retry attempt.
// Attempts are numbered from 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Jittered returns Delay(attempt) with jitter applied.
func (p Policy) Jittered(attempt int) time.Duration {
	d := p.Delay(attempt)
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
