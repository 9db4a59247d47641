package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"policybot/internal/domain"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("answer service temporarily unavailable")

// MaxRetries bounds retries of RetryableError failures.
const MaxRetries = 3

// Guard wraps a generator with a rate limiter, retries on transient errors
// and a circuit breaker.
type Guard struct {
	next    domain.Generator
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

// NewGuard limits next to requestsPerMinute calls (0 disables the limit).
func NewGuard(next domain.Generator, requestsPerMinute int, log *slog.Logger) *Guard {
	limit := rate.Inf
	burst := 1
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
		burst = max(1, requestsPerMinute/10)
	}
	g := &Guard{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
		backoff: Backoff,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingAPIKey)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("llm circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

func (g *Guard) Name() string { return g.next.Name() }

// Close releases the wrapped generator's client, if it holds one.
func (g *Guard) Close() error {
	if c, ok := g.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *Guard) Generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			d := g.backoff(attempt - 1)
			g.log.Info("retrying llm call", "provider", g.Name(), "attempt", attempt, "delay", d, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d):
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return g.next.Generate(ctx, question, results)
		})
		if err == nil {
			return out.(string), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrUnavailable
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
