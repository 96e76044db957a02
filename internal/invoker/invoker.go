// Package invoker delivers rendered payloads to the compute function.
//
// Invokers perform exactly one outbound call per firing. They never retry:
// transport failures are returned as invocation_* AppErrors so that the
// trigger mechanism's own retry policy can act. Each schedule has its own
// circuit breaker, so repeated failures of one schedule stop further calls
// for that schedule only.
package invoker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"lottodispatch/internal/types"
)

// Request is one firing's call to the compute function.
type Request struct {
	Schedule string
	FiringID string
	Body     []byte
}

// Response describes the transport-level outcome. The compute function's
// own result is not interpreted.
type Response struct {
	StatusCode    int
	RequestID     string
	FunctionError string
}

// Invoker sends a payload to the compute function.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// breakerSettings returns the circuit breaker configuration used by every
// per-schedule breaker. Rejected requests do not count as failures: they indicate a bad
// request, not an unhealthy function.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || types.CodeOf(err) == types.ErrCodeInvocationRejected
		},
	}
}

// breakerSet lazily creates one circuit breaker per schedule name.
type breakerSet[T any] struct {
	prefix   string
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[T]
}

func newBreakerSet[T any](prefix string) *breakerSet[T] {
	return &breakerSet[T]{
		prefix:   prefix,
		breakers: make(map[string]*gobreaker.CircuitBreaker[T]),
	}
}

// get returns the breaker for schedule and its name.
func (s *breakerSet[T]) get(schedule string) (*gobreaker.CircuitBreaker[T], string) {
	name := s.prefix + "/" + schedule

	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[schedule]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[T](breakerSettings(name))
		s.breakers[schedule] = cb
	}
	return cb, name
}

// breakerError maps gobreaker's own refusals onto the invocation taxonomy and
// passes every other error through unchanged.
func breakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInvocationUnreachable,
			"circuit breaker is open; compute function unavailable",
			err,
			map[string]any{"breaker": name},
		)
	}
	return err
}

// contextError classifies a failure caused by the caller's context.
// Returns nil if ctx is still live.
func contextError(ctx context.Context, err error) *types.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeInvocationTimeout, "compute function did not respond before the dispatch deadline", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return types.NewAppError(types.ErrCodeInvocationUnreachable, "invocation cancelled", err)
	}
	return nil
}
