// Package dispatch turns trigger firings into compute function invocations.
//
// Handler flow per firing:
//  1. Resolve the schedule, by name or by matching the firing time.
//  2. Render the payload.
//  3. Invoke the compute function once, bounded by the schedule's tolerance
//     window (or the configured override).
//  4. Report the outcome. Nothing is retried here; invocation errors are
//     returned so that the trigger mechanism's retry policy can act.
//
// Firings share no mutable state, so distinct schedules may be dispatched
// concurrently without locking.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lottodispatch/internal/invoker"
	"lottodispatch/internal/metrics"
	"lottodispatch/internal/payload"
	"lottodispatch/internal/types"
)

// ScheduleSource resolves schedules. *schedule.Table satisfies it.
type ScheduleSource interface {
	ByName(name string) (types.Schedule, bool)
	Matching(at time.Time) []types.Schedule
}

// Result describes one firing.
type Result struct {
	Schedule      string
	FiringID      string
	PayloadDigest string
	StatusCode    int
	RequestID     string
	Duration      time.Duration
	Err           error
}

// Dispatcher routes firings to the compute function.
type Dispatcher struct {
	schedules   ScheduleSource
	invoker     invoker.Invoker
	metrics     metrics.Recorder
	logger      *slog.Logger
	timeout     time.Duration
	concurrency int
	now         func() time.Time
	newID       func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(d *Dispatcher) {
		if rec != nil {
			d.metrics = rec
		}
	}
}

// WithTimeout bounds every invocation by timeout instead of the schedule's
// tolerance window. Zero keeps the tolerance window.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithConcurrency limits how many matched schedules are invoked at once
// during a time-based firing. Zero means no limit.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithIDGenerator overrides firing ID generation. fn must be safe for
// concurrent use.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		d.newID = fn
	}
}

// New creates a Dispatcher.
func New(schedules ScheduleSource, inv invoker.Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		schedules: schedules,
		invoker:   inv,
		metrics:   metrics.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one trigger event. An event naming a schedule is
// dispatched by name; otherwise every schedule matching the firing time is
// dispatched. The firing time is ev.Time, then eventTime, then now.
func (d *Dispatcher) Dispatch(ctx context.Context, ev types.TriggerEvent, eventTime time.Time) ([]Result, error) {
	firedAt := eventTime
	if ev.Time != nil && !ev.Time.IsZero() {
		firedAt = *ev.Time
	}
	if firedAt.IsZero() {
		firedAt = d.now()
	}

	if lag := d.now().Sub(firedAt); lag >= 0 {
		d.metrics.RecordTriggerLag(ctx, lag)
	}

	if ev.Schedule != "" {
		res, err := d.DispatchByName(ctx, ev.Schedule, firedAt)
		return []Result{res}, err
	}
	return d.DispatchByTime(ctx, firedAt)
}

// DispatchByName fires the named schedule. An unknown name is reported as a
// resolution error and nothing is invoked.
func (d *Dispatcher) DispatchByName(ctx context.Context, name string, firedAt time.Time) (Result, error) {
	firingID := d.newID()
	logger := d.firingLogger(ctx, name, firingID, firedAt)

	s, ok := d.schedules.ByName(name)
	if !ok {
		err := types.NewAppErrorWithDetails(
			types.ErrCodeResolutionNotFound,
			fmt.Sprintf("schedule %q is not in the table", name),
			nil,
			map[string]any{"schedule": name},
		)
		logger.ErrorContext(ctx, "trigger references unknown schedule", "error", err)
		d.metrics.RecordDispatch(ctx, name, types.DispatchUnresolved, 0)
		return Result{Schedule: name, FiringID: firingID, Err: err}, err
	}

	res := d.fire(ctx, s, firingID, logger)
	return res, res.Err
}

// DispatchByTime fires every schedule whose time expression matches firedAt
// within its tolerance window. Each matched schedule is invoked
// independently; one failure never cancels or alters another. The returned
// error joins every per-firing error.
func (d *Dispatcher) DispatchByTime(ctx context.Context, firedAt time.Time) ([]Result, error) {
	matches := d.schedules.Matching(firedAt)
	if len(matches) == 0 {
		err := types.NewAppErrorWithDetails(
			types.ErrCodeResolutionNoMatch,
			fmt.Sprintf("no schedule matches firing time %s", firedAt.UTC().Format(time.RFC3339)),
			nil,
			map[string]any{"fired_at": firedAt.UTC().Format(time.RFC3339)},
		)
		types.LoggerFromContextOr(ctx, d.logger).ErrorContext(ctx, "firing matched no schedule", "fired_at", firedAt.UTC().Format(time.RFC3339))
		return nil, err
	}

	results := make([]Result, len(matches))

	// A plain Group: a failed firing must not cancel its siblings.
	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, s := range matches {
		g.Go(func() error {
			firingID := d.newID()
			results[i] = d.fire(ctx, s, firingID, d.firingLogger(ctx, s.Name, firingID, firedAt))
			return results[i].Err
		})
	}

	if g.Wait() == nil {
		return results, nil
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

// fire renders and invokes one schedule.
func (d *Dispatcher) fire(ctx context.Context, s types.Schedule, firingID string, logger *slog.Logger) Result {
	start := d.now()
	res := Result{Schedule: s.Name, FiringID: firingID}

	body, err := payload.Render(s)
	if err != nil {
		res.Err = fmt.Errorf("rendering payload for schedule %q: %w", s.Name, err)
		logger.ErrorContext(ctx, "payload render failed", "error", err)
		d.metrics.RecordDispatch(ctx, s.Name, types.DispatchFailed, 0)
		return res
	}
	res.PayloadDigest = payload.Digest(body)
	logger = logger.With("payload_digest", res.PayloadDigest)

	timeout := d.timeout
	if timeout <= 0 {
		timeout = s.Tolerance()
	}

	resp, err := d.invoke(ctx, timeout, invoker.Request{
		Schedule: s.Name,
		FiringID: firingID,
		Body:     body,
	}, logger)
	res.Duration = d.now().Sub(start)

	if err != nil {
		res.Err = fmt.Errorf("dispatching schedule %q: %w", s.Name, err)
		logger.ErrorContext(ctx, "compute function invocation failed",
			"error", err,
			"retryable", types.IsRetryable(err),
			"duration_ms", res.Duration.Milliseconds(),
		)
		d.metrics.RecordDispatch(ctx, s.Name, types.DispatchFailed, res.Duration)
		return res
	}

	res.StatusCode = resp.StatusCode
	res.RequestID = resp.RequestID
	logger.InfoContext(ctx, "compute function invoked",
		"status_code", resp.StatusCode,
		"request_id", resp.RequestID,
		"games", len(s.Games),
		"send_mail", s.SendMail,
		"duration_ms", res.Duration.Milliseconds(),
	)
	d.metrics.RecordDispatch(ctx, s.Name, types.DispatchSuccess, res.Duration)
	return res
}

// invoke calls the invoker and stops waiting once timeout elapses, even if
// the invoker ignores its context. The abandoned call is left to finish on
// its own.
func (d *Dispatcher) invoke(ctx context.Context, timeout time.Duration, req invoker.Request, logger *slog.Logger) (invoker.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	callCtx = types.WithLogger(callCtx, logger)

	type outcome struct {
		resp invoker.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := d.invoker.Invoke(callCtx, req)
		done <- outcome{resp, err}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return invoker.Response{}, types.NewAppErrorWithDetails(
				types.ErrCodeInvocationTimeout,
				fmt.Sprintf("compute function did not respond within %s", timeout),
				callCtx.Err(),
				map[string]any{"timeout": timeout.String()},
			)
		}
		return invoker.Response{}, types.NewAppError(types.ErrCodeInvocationUnreachable, "dispatch cancelled", callCtx.Err())
	}
}

// firingLogger prefers a logger carried by ctx, such as one tagged with the
// Lambda request ID.
func (d *Dispatcher) firingLogger(ctx context.Context, schedule, firingID string, firedAt time.Time) *slog.Logger {
	return types.LoggerFromContextOr(ctx, d.logger).With(
		"schedule", schedule,
		"firing_id", firingID,
		"fired_at", firedAt.UTC().Format(time.RFC3339),
	)
}
