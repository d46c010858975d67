// Package backoff provides the bounded exponential delay policy used by
// the refresh scheduler's retry loop.
package backoff

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Policy produces exponentially growing delays capped at Max, with a
// random jitter of ±Jitter so concurrently failing contexts do not retry
// in lockstep.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  time.Duration
}

// Delay returns the wait before retry number attempt (starting at 0).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Initial
	if d <= 0 {
		d = time.Second
	}

	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			d = p.Max
			break
		}
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}

	if j, err := randomJitter(p.Jitter); err == nil {
		d += j
	}
	if d < 0 {
		d = 0
	}
	return d
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	span := jitterRange.Nanoseconds()*2 + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - jitterRange.Nanoseconds()), nil
}
