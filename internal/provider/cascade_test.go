package provider

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter scripts one behavior per Generate call.
type stubAdapter struct {
	name       string
	completion string
	err        error
	delay      time.Duration
	calls      int
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Generate(ctx context.Context, prompt Prompt) (string, error) {
	a.calls++
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return "", NewError(a.name, KindTimeout, ctx.Err())
		}
	}
	if a.err != nil {
		return "", a.err
	}
	return a.completion, nil
}

func decodeInt(completion string) (int, error) {
	return strconv.Atoi(completion)
}

func TestCascadeFirstAdapterWins(t *testing.T) {
	first := &stubAdapter{name: "first", completion: "42"}
	second := &stubAdapter{name: "second", completion: "99"}

	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{first, second},
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
	}
	result := c.Run(context.Background(), Prompt{User: "q"})

	assert.Equal(t, 42, result.Value)
	assert.Equal(t, "first", result.Provider)
	assert.False(t, result.FromFallback)
	// Short-circuit: the second adapter is never consulted.
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, OutcomeSuccess, result.Attempts[0].Outcome)
}

func TestCascadeFallsThroughOnFailure(t *testing.T) {
	down := &stubAdapter{name: "down", err: NewError("down", KindUnavailable, errors.New("connection refused"))}
	up := &stubAdapter{name: "up", completion: "7"}

	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{down, up},
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
	}
	result := c.Run(context.Background(), Prompt{User: "q"})

	assert.Equal(t, 7, result.Value)
	assert.Equal(t, "up", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, string(KindUnavailable), result.Attempts[0].Outcome)
	assert.Equal(t, OutcomeSuccess, result.Attempts[1].Outcome)
}

func TestCascadeAllFailUsesFallback(t *testing.T) {
	a := &stubAdapter{name: "a", err: NewError("a", KindUnavailable, errors.New("down"))}
	b := &stubAdapter{name: "b", completion: "not a number"}

	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{a, b},
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
	}
	result := c.Run(context.Background(), Prompt{User: "q"})

	assert.Equal(t, -1, result.Value)
	assert.True(t, result.FromFallback)
	assert.Equal(t, "fallback", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, string(KindUnavailable), result.Attempts[0].Outcome)
	assert.Equal(t, string(KindMalformed), result.Attempts[1].Outcome)
}

func TestCascadeNoAdaptersUsesFallback(t *testing.T) {
	c := Cascade[string]{
		Name:     "test",
		Decode:   func(s string) (string, error) { return s, nil },
		Fallback: func() string { return "deterministic" },
	}
	result := c.Run(context.Background(), Prompt{User: "q"})
	assert.Equal(t, "deterministic", result.Value)
	assert.True(t, result.FromFallback)
	assert.Empty(t, result.Attempts)
}

func TestCascadePerAttemptTimeout(t *testing.T) {
	slow := &stubAdapter{name: "slow", completion: "1", delay: 200 * time.Millisecond}
	fast := &stubAdapter{name: "fast", completion: "2"}

	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{slow, fast},
		Timeout:  20 * time.Millisecond,
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
	}
	result := c.Run(context.Background(), Prompt{User: "q"})

	assert.Equal(t, 2, result.Value)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, string(KindTimeout), result.Attempts[0].Outcome)
}

func TestCascadeObserverSeesEveryAttempt(t *testing.T) {
	a := &stubAdapter{name: "a", err: NewError("a", KindUnavailable, errors.New("down"))}
	b := &stubAdapter{name: "b", completion: "5"}

	var seen []Attempt
	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{a, b},
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
		Observer: func(at Attempt) { seen = append(seen, at) },
	}
	c.Run(context.Background(), Prompt{User: "q"})

	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].Provider)
	assert.Equal(t, "b", seen[1].Provider)
}

func TestCascadeStopsWhenParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubAdapter{name: "first", err: NewError("first", KindUnavailable, errors.New("down"))}
	second := &stubAdapter{name: "second", completion: "3"}

	c := Cascade[int]{
		Name:     "test",
		Adapters: []Adapter{first, second},
		Decode:   decodeInt,
		Fallback: func() int { return -1 },
		Observer: func(Attempt) { cancel() },
	}
	result := c.Run(ctx, Prompt{User: "q"})

	assert.True(t, result.FromFallback)
	assert.Zero(t, second.calls)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindMalformed, KindOf(NewError("x", KindMalformed, errors.New("bad"))))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnavailable, KindOf(errors.New("anything")))
}
