package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{64, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNext_Transitions(t *testing.T) {
	p := testPolicy()

	s := Next(State{}, Outcome{Kind: Start}, p)
	assert.Equal(t, State{Phase: Attempting, Attempt: 1}, s)

	s = Next(s, Outcome{Kind: Transient, Err: errBoom}, p)
	assert.Equal(t, Backoff, s.Phase)
	assert.Equal(t, 1, s.Attempt)
	assert.Equal(t, time.Millisecond, s.Delay)

	s = Next(s, Outcome{Kind: Waited}, p)
	assert.Equal(t, Attempting, s.Phase)
	assert.Equal(t, 2, s.Attempt)

	s = Next(s, Outcome{Kind: Transient, Err: errBoom}, p)
	assert.Equal(t, 2*time.Millisecond, s.Delay)

	s = Next(s, Outcome{Kind: Waited}, p)
	s = Next(s, Outcome{Kind: OK}, p)
	assert.Equal(t, Succeeded, s.Phase)
	assert.Equal(t, 3, s.Attempt)
	assert.True(t, s.Done())
}

func TestNext_Exhaustion(t *testing.T) {
	p := testPolicy()
	s := State{Phase: Attempting, Attempt: 3}

	s = Next(s, Outcome{Kind: Transient, Err: errBoom}, p)

	assert.Equal(t, FailedPermanent, s.Phase)
	assert.ErrorIs(t, s.Err, ErrExhausted)
	assert.ErrorIs(t, s.Err, errBoom)
}

func TestNext_PermanentSkipsRetry(t *testing.T) {
	s := Next(State{Phase: Attempting, Attempt: 1}, Outcome{Kind: Permanent, Err: errBoom}, testPolicy())

	assert.Equal(t, FailedPermanent, s.Phase)
	assert.Equal(t, 1, s.Attempt)
	assert.Same(t, errBoom, s.Err)
}

func TestNext_RetryAfter(t *testing.T) {
	p := testPolicy()

	s := Next(State{Phase: Attempting, Attempt: 1}, Outcome{Kind: Transient, RetryAfter: 500 * time.Millisecond}, p)
	assert.Equal(t, 500*time.Millisecond, s.Delay)

	s = Next(State{Phase: Attempting, Attempt: 1}, Outcome{Kind: Transient, RetryAfter: time.Hour}, p)
	assert.Equal(t, time.Second, s.Delay, "server delay is capped by MaxDelay")
}

func TestNext_IgnoresUnexpectedOutcome(t *testing.T) {
	s := State{Phase: Succeeded, Attempt: 2}
	assert.Equal(t, s, Next(s, Outcome{Kind: Transient}, testPolicy()))

	b := State{Phase: Backoff, Attempt: 1, Delay: time.Second}
	assert.Equal(t, b, Next(b, Outcome{Kind: OK}, testPolicy()))
}

func classifyAll(kind OutcomeKind) Classifier {
	return func(error) Outcome { return Outcome{Kind: kind} }
}

func TestDo_TransientThenSuccess(t *testing.T) {
	calls := 0
	var retries []State

	err := Do(context.Background(), testPolicy(), classifyAll(Transient), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, func(s State) { retries = append(retries, s) })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, retries, 2)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(), classifyAll(Transient), func(context.Context) error {
		calls++
		return errBoom
	}, nil)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}

func TestDo_Permanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(), classifyAll(Permanent), func(context.Context) error {
		calls++
		return errBoom
	}, nil)

	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	err := Do(ctx, p, classifyAll(Transient), func(context.Context) error {
		return errBoom
	}, func(State) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
}
