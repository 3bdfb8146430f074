package vision

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/neuroti/Psi/internal/detection"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
)

// BreakerSettings configures the fallback circuit breaker.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerFallback guards a fallback classifier with a circuit breaker. While
// the circuit is open calls fail immediately with gobreaker.ErrOpenState.
type BreakerFallback struct {
	inner detection.FallbackClassifier
	cb    *gobreaker.CircuitBreaker[[]detection.FallbackItem]
	name  string
}

func NewBreakerFallback(inner detection.FallbackClassifier, s BreakerSettings) *BreakerFallback {
	if s.Name == "" {
		s.Name = "fallback-vision"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]detection.FallbackItem](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= s.ConsecutiveFailures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Str("breaker", s.Name).Msg("opening fallback circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerFallback{inner: inner, cb: cb, name: s.Name}
}

func (b *BreakerFallback) Detect(ctx context.Context, image []byte) ([]detection.FallbackItem, error) {
	items, err := b.cb.Execute(func() ([]detection.FallbackItem, error) {
		return b.inner.Detect(ctx, image)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Debug().Str("breaker", b.name).Msg("fallback rejected by open circuit")
	}
	return items, err
}

// State reports the breaker state, for health output.
func (b *BreakerFallback) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
