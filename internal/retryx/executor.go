package retryx

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cofind/internal/logging"
)

// Operation is one attempt of the work being retried. It receives a context
// bounded by Policy.Timeout.
type Operation[T any] func(ctx context.Context) (T, error)

// Result is what Execute hands back. Err is nil on success; otherwise it is
// an *Error carrying the class, attempt count and elapsed time.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Executor carries the ambient collaborators of Execute: logging, metrics and
// the sleep function used between attempts. The zero value is not usable;
// build one with NewExecutor. A nil *Executor passed to Execute behaves like
// NewExecutor().
type Executor struct {
	log   logging.Logger
	inst  *Instruments
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type Option func(*Executor)

func WithLogger(l logging.Logger) Option {
	return func(e *Executor) { e.log = l }
}

func WithInstruments(i *Instruments) Option {
	return func(e *Executor) { e.inst = i }
}

// WithSleep replaces the pause between attempts (tests record delays instead
// of waiting them out).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		log:   logging.Nop(),
		inst:  NopInstruments(),
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute runs op up to policy.MaxRetries+1 times. Each attempt races op
// against policy.Timeout. Only timeout- and network-classified failures are
// retried, and only when the policy enables that class; everything else is
// returned at once. Between attempts it waits min(BaseDelay*2^attempt,
// MaxDelay). Cancelling ctx ends the loop immediately.
func Execute[T any](ctx context.Context, e *Executor, name string, policy Policy, op Operation[T]) Result[T] {
	if e == nil {
		e = defaultExecutor
	}
	start := e.now()
	schedule := policy.schedule()
	log := e.log.With("operation", name)

	var res Result[T]
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		res.Attempts = attempt + 1
		e.inst.attempt(ctx, name)

		value, err := runAttempt(ctx, policy.Timeout, op)
		if err == nil {
			res.Value = value
			res.Err = nil
			res.Duration = e.now().Sub(start)
			if attempt > 0 {
				log.Info(ctx, "operation succeeded after retries", "attempts", res.Attempts, "duration", res.Duration)
			}
			e.inst.finish(ctx, name, ClassNone, res.Duration)
			return res
		}

		class := Classify(err)
		if ctx.Err() != nil {
			return fail(ctx, e, res, ClassOther, start, ctx.Err(), name)
		}
		if !policy.shouldRetry(attempt, class) {
			if class != ClassOther {
				log.Warn(ctx, "operation failed, giving up", "attempts", res.Attempts, "class", class.String(), "error", err)
			}
			return fail(ctx, e, res, class, start, err, name)
		}

		delay := policy.capDelay(schedule.NextBackOff())
		log.Warn(ctx, "operation failed, retrying", "attempt", res.Attempts, "class", class.String(), "delay", delay, "error", err)
		if serr := e.sleep(ctx, delay); serr != nil {
			return fail(ctx, e, res, ClassOther, start, serr, name)
		}
	}

	// unreachable for MaxRetries >= 0; a negative MaxRetries never runs op.
	return fail(ctx, e, res, ClassOther, start, fmt.Errorf("no attempts allowed (max retries %d)", policy.MaxRetries), name)
}

func fail[T any](ctx context.Context, e *Executor, res Result[T], class Class, start time.Time, err error, name string) Result[T] {
	res.Duration = e.now().Sub(start)
	res.Err = &Error{Class: class, Attempts: res.Attempts, Duration: res.Duration, Err: err}
	e.inst.finish(ctx, name, class, res.Duration)
	return res
}

type outcome[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	actx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		v, err := op(actx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
