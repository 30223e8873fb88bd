// Package resilience wraps calls to the cascade's remote backends (embedding
// and generation) with bounded retries and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

// Verdict is a classifier's decision about one failed call.
type Verdict struct {
	Retry bool
	// Trip marks the error as a backend failure that counts toward opening
	// the breaker. Caller mistakes and cancellations should not trip.
	Trip bool
}

type Classifier func(err error) Verdict

// Guard protects one backend operation. It is safe for concurrent use.
type Guard struct {
	name    string
	policy  Policy
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(name string, policy Policy) *Guard {
	policy = policy.withDefaults()
	g := &Guard{name: name, policy: policy}
	if policy.Breaker.Disabled {
		return g
	}

	bp := policy.Breaker
	g.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: bp.HalfOpenProbes,
		Timeout:     bp.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bp.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var call *callError
			if errors.As(err, &call) {
				return !call.verdict.Trip
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "backend", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

func (g *Guard) Name() string { return g.name }

// State reports the breaker state ("closed", "half-open", "open"), or
// "disabled" when the guard has no breaker.
func (g *Guard) State() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

// callError carries the classifier verdict for the final attempt through the
// breaker so IsSuccessful does not have to classify twice.
type callError struct {
	err     error
	verdict Verdict
}

func (e *callError) Error() string { return e.err.Error() }
func (e *callError) Unwrap() error { return e.err }

// Do runs fn under the guard. A rejected call (open or saturated half-open
// breaker) is returned as domain.ErrTemporary without invoking fn.
func Do[T any](ctx context.Context, g *Guard, classify Classifier, fn func(context.Context) (T, error)) (T, error) {
	if classify == nil {
		classify = tripOnAny
	}

	var out T
	run := func() (struct{}, error) {
		v, err := retry(ctx, g, classify, fn)
		if err != nil {
			return struct{}{}, err
		}
		out = v
		return struct{}{}, nil
	}

	var err error
	if g.breaker == nil {
		_, err = run()
	} else {
		_, err = g.breaker.Execute(run)
	}
	if err == nil {
		return out, nil
	}

	var zero T
	if IsCircuitOpen(err) {
		return zero, domain.WrapError(domain.ErrTemporary, g.name, err)
	}
	var call *callError
	if errors.As(err, &call) {
		return zero, call.err
	}
	return zero, err
}

func retry[T any](ctx context.Context, g *Guard, classify Classifier, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &callError{err: err}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		verdict := classify(err)
		if !verdict.Retry || attempt >= g.policy.Attempts {
			return zero, &callError{err: err, verdict: verdict}
		}

		wait := g.policy.backoff(attempt)
		slog.Warn("backend_retry",
			"backend", g.name,
			"attempt", attempt,
			"max_attempts", g.policy.Attempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &callError{err: err, verdict: verdict}
		case <-timer.C:
		}
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func tripOnAny(error) Verdict {
	return Verdict{Trip: true}
}
