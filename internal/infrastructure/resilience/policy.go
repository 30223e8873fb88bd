package resilience

import "time"

// Policy controls how a Guard retries and when its breaker opens.
// Attempts counts the first call, so 1 means no retry.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	Breaker BreakerPolicy
}

type BreakerPolicy struct {
	Disabled       bool
	MinRequests    uint32
	FailureRatio   float64
	OpenFor        time.Duration
	HalfOpenProbes uint32
}

// EmbeddingPolicy suits idempotent embedding calls: a few quick retries.
func EmbeddingPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2,
		Breaker:        defaultBreaker(),
	}
}

// GenerationPolicy never retries; a failed generation degrades to NoAnswer.
func GenerationPolicy() Policy {
	p := EmbeddingPolicy()
	p.Attempts = 1
	return p
}

func defaultBreaker() BreakerPolicy {
	return BreakerPolicy{
		MinRequests:    10,
		FailureRatio:   0.5,
		OpenFor:        30 * time.Second,
		HalfOpenProbes: 2,
	}
}

func (p Policy) withDefaults() Policy {
	out := p
	if out.Attempts <= 0 {
		out.Attempts = 1
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = 100 * time.Millisecond
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1 {
		out.Multiplier = 2
	}

	def := defaultBreaker()
	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.FailureRatio
	}
	if out.Breaker.OpenFor <= 0 {
		out.Breaker.OpenFor = def.OpenFor
	}
	if out.Breaker.HalfOpenProbes == 0 {
		out.Breaker.HalfOpenProbes = def.HalfOpenProbes
	}
	return out
}

// backoff returns the wait before retry number n (1-based).
func (p Policy) backoff(n int) time.Duration {
	wait := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		wait *= p.Multiplier
		if time.Duration(wait) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return time.Duration(wait)
}
