package errors

import (
	"context"
	"sync"
	"time"
)

// StepOutcome records what happened to a single step bounded by a Budget.
type StepOutcome struct {
	Name      string
	Started   time.Time
	Timeout   time.Duration
	Completed bool
	TimedOut  bool
	Skipped   bool
	Elapsed   time.Duration
}

// Budget composes multiple scoped timeouts over a single outer deadline
// (spec §4.A time budget). Each step is bounded by min(stepMax, remaining);
// once remaining is exhausted, further steps are skipped.
type Budget struct {
	mu       sync.Mutex
	deadline time.Time
	total    time.Duration
	steps    []StepOutcome
}

// NewBudget starts a budget with the given total duration, counted from now.
func NewBudget(total time.Duration) *Budget {
	return &Budget{deadline: time.Now().Add(total), total: total}
}

// Remaining returns the time left before the outer deadline.
func (b *Budget) Remaining() time.Duration {
	return time.Until(b.deadline)
}

// Step runs fn under a context bounded by min(stepMax, remaining). If no
// time remains before the step starts, it is recorded as skipped and fn is
// never called.
func (b *Budget) Step(parent context.Context, name string, stepMax time.Duration, fn func(ctx context.Context) error) error {
	remaining := b.Remaining()
	if remaining <= 0 {
		b.record(StepOutcome{Name: name, Skipped: true})
		return nil
	}

	bound := stepMax
	if remaining < bound {
		bound = remaining
	}

	ctx, cancel := context.WithTimeout(parent, bound)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	select {
	case err := <-errCh:
		elapsed := time.Since(start)
		b.record(StepOutcome{Name: name, Started: start, Timeout: bound, Completed: err == nil, Elapsed: elapsed})
		return err
	case <-ctx.Done():
		elapsed := time.Since(start)
		b.record(StepOutcome{Name: name, Started: start, Timeout: bound, TimedOut: true, Elapsed: elapsed})
		return New(KindWorkflowTimeout, "step "+name+" timed out", WithContext(Context{Operation: name}))
	}
}

func (b *Budget) record(o StepOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps = append(b.steps, o)
}

// Outcomes returns a snapshot of every recorded step.
func (b *Budget) Outcomes() []StepOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]StepOutcome, len(b.steps))
	copy(out, b.steps)
	return out
}

// CompletedStages returns the names of steps that completed successfully,
// in the order they ran -- used to populate BudgetExhaustedError.
func (b *Budget) CompletedStages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, s := range b.steps {
		if s.Completed {
			names = append(names, s.Name)
		}
	}
	return names
}

// Exhausted reports whether the outer deadline has passed.
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}
