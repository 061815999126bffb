// Package retry implements bounded exponential back-off as a small explicit
// state machine.
//
// Each retried item moves through
//
//	Pending -> Attempting(1) -> [Backoff(d) -> Attempting(n+1)]* -> Succeeded | FailedPermanent
//
// driven by the pure function Next. Do runs the machine for a single
// operation; callers that need per-attempt hooks (the download scheduler)
// drive Next themselves.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Phase is the state of one retried item.
type Phase int

const (
	Pending Phase = iota
	Attempting
	Backoff
	Succeeded
	FailedPermanent
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case Succeeded:
		return "succeeded"
	case FailedPermanent:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the machine state. Attempt counts attempts started so far; Delay is
// only meaningful in Backoff; Err is the last failure.
type State struct {
	Phase   Phase
	Attempt int
	Delay   time.Duration
	Err     error
}

// Done reports whether the state is terminal.
func (s State) Done() bool {
	return s.Phase == Succeeded || s.Phase == FailedPermanent
}

// OutcomeKind classifies what happened since the last transition.
type OutcomeKind int

const (
	// Start moves Pending to Attempting(1).
	Start OutcomeKind = iota
	// OK is a successful attempt.
	OK
	// Transient is a retryable failure.
	Transient
	// Permanent is a failure that must not be retried.
	Permanent
	// Waited means a back-off delay has elapsed.
	Waited
)

// Outcome is the input to Next.
type Outcome struct {
	Kind OutcomeKind
	Err  error

	// RetryAfter is a server-requested delay (e.g. from a Retry-After
	// header). When positive it replaces the computed back-off.
	RetryAfter time.Duration
}

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay after the first failed attempt; it doubles
	// after each subsequent failure.
	BaseDelay time.Duration

	// MaxDelay caps any single delay, including server-requested ones.
	// Zero means no cap.
	MaxDelay time.Duration

	// Jitter is the fraction (0..1) of random spread Sleep adds on top of
	// a computed delay.
	Jitter float64
}

// DefaultPolicy returns 3 attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ErrExhausted wraps the last error once MaxAttempts transient failures have
// been seen.
var ErrExhausted = errors.New("retries exhausted")

// Delay returns BaseDelay * 2^(attempt-1), capped by MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Next is the transition function. It never sleeps and never performs I/O.
func Next(s State, o Outcome, p Policy) State {
	switch s.Phase {
	case Pending:
		return State{Phase: Attempting, Attempt: 1}

	case Attempting:
		switch o.Kind {
		case OK:
			return State{Phase: Succeeded, Attempt: s.Attempt}
		case Permanent:
			return State{Phase: FailedPermanent, Attempt: s.Attempt, Err: o.Err}
		case Transient:
			if s.Attempt >= p.MaxAttempts {
				return State{Phase: FailedPermanent, Attempt: s.Attempt, Err: exhausted(o.Err)}
			}
			delay := p.Delay(s.Attempt)
			if o.RetryAfter > 0 {
				delay = o.RetryAfter
				if p.MaxDelay > 0 && delay > p.MaxDelay {
					delay = p.MaxDelay
				}
			}
			return State{Phase: Backoff, Attempt: s.Attempt, Delay: delay, Err: o.Err}
		}

	case Backoff:
		if o.Kind == Waited {
			return State{Phase: Attempting, Attempt: s.Attempt + 1, Err: s.Err}
		}
	}

	return s
}

// Sleep waits for the state's delay plus jitter, or until ctx is done.
func Sleep(ctx context.Context, s State, p Policy) error {
	d := s.Delay
	if p.Jitter > 0 && d > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Classifier maps an operation error to an outcome.
type Classifier func(err error) Outcome

// Do runs op until it succeeds, fails permanently or exhausts the policy.
// onRetry, when non-nil, is called before each back-off sleep.
func Do(ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) error, onRetry func(State)) error {
	s := Next(State{}, Outcome{Kind: Start}, p)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		o := Outcome{Kind: OK}
		if err != nil {
			o = classify(err)
			o.Err = err
		}

		s = Next(s, o, p)
		switch s.Phase {
		case Succeeded:
			return nil
		case FailedPermanent:
			return s.Err
		}

		if onRetry != nil {
			onRetry(s)
		}
		if err := Sleep(ctx, s, p); err != nil {
			return err
		}
		s = Next(s, Outcome{Kind: Waited}, p)
	}
}

func exhausted(err error) error {
	if err == nil {
		return ErrExhausted
	}
	return &exhaustedError{err: err}
}

type exhaustedError struct {
	err error
}

func (e *exhaustedError) Error() string {
	return ErrExhausted.Error() + ": " + e.err.Error()
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.err}
}
