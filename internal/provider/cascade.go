package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Attempt records one provider try inside a cascade run.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OutcomeSuccess marks the attempt that produced the result; failed attempts
// carry the ErrorKind string instead.
const OutcomeSuccess = "success"

// Result carries the cascade value plus where it came from.
type Result[T any] struct {
	Value        T
	Provider     string
	FromFallback bool
	Attempts     []Attempt
}

// Cascade tries an ordered list of adapters, decoding each completion into T,
// and falls back to a deterministic value when every adapter fails. Run never
// returns an error: the fallback is the contract that the pipeline always
// moves forward.
type Cascade[T any] struct {
	Name     string
	Adapters []Adapter
	Timeout  time.Duration

	// Decode turns a raw completion into the result value. A decode failure
	// counts as a malformed attempt and the cascade moves on.
	Decode func(completion string) (T, error)

	// Fallback produces the deterministic last-resort value. It must not fail.
	Fallback func() T

	// Observer, when set, receives each attempt as it completes.
	Observer func(Attempt)

	Logger *zap.Logger
}

// Run executes the cascade. The first adapter whose completion decodes wins;
// remaining adapters are not consulted.
func (c *Cascade[T]) Run(ctx context.Context, prompt Prompt) Result[T] {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var attempts []Attempt
	for _, adapter := range c.Adapters {
		attempt, value, ok := c.try(ctx, adapter, prompt)
		attempts = append(attempts, attempt)
		if c.Observer != nil {
			c.Observer(attempt)
		}
		if ok {
			logger.Debug("cascade resolved",
				zap.String("cascade", c.Name),
				zap.String("provider", adapter.Name()),
				zap.Duration("duration", attempt.Duration))
			return Result[T]{Value: value, Provider: adapter.Name(), Attempts: attempts}
		}
		logger.Warn("cascade attempt failed",
			zap.String("cascade", c.Name),
			zap.String("provider", attempt.Provider),
			zap.String("outcome", attempt.Outcome),
			zap.String("error", attempt.Error))

		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("cascade exhausted, using deterministic fallback",
		zap.String("cascade", c.Name),
		zap.Int("attempts", len(attempts)))
	return Result[T]{Value: c.Fallback(), Provider: "fallback", FromFallback: true, Attempts: attempts}
}

func (c *Cascade[T]) try(ctx context.Context, adapter Adapter, prompt Prompt) (Attempt, T, bool) {
	var zero T

	attemptCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	start := time.Now()
	completion, err := adapter.Generate(attemptCtx, prompt)
	elapsed := time.Since(start)

	if err != nil {
		kind := KindOf(err)
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return Attempt{
			Provider: adapter.Name(),
			Outcome:  string(kind),
			Error:    err.Error(),
			Duration: elapsed,
		}, zero, false
	}

	value, err := c.Decode(completion)
	if err != nil {
		return Attempt{
			Provider: adapter.Name(),
			Outcome:  string(KindMalformed),
			Error:    err.Error(),
			Duration: elapsed,
		}, zero, false
	}

	return Attempt{
		Provider: adapter.Name(),
		Outcome:  OutcomeSuccess,
		Duration: elapsed,
	}, value, true
}
