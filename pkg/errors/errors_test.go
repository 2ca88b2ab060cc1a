package errors

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestNewDefaultsRecoverable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindAgentTimeout, true},
		{KindAgentValidation, false},
		{KindLLMRateLimit, true},
		{KindLLMAuthentication, false},
		{KindVectorDBConnection, true},
	}

	for _, tt := range tests {
		err := New(tt.kind, "boom")
		if err.Recoverable != tt.want {
			t.Errorf("New(%s).Recoverable = %v, want %v", tt.kind, err.Recoverable, tt.want)
		}
	}
}

func TestIsRecoverableUnwraps(t *testing.T) {
	inner := New(KindAgentTimeout, "timed out")
	wrapped := fmt.Errorf("calling agent: %w", inner)
	if !IsRecoverable(wrapped) {
		t.Error("expected wrapped timeout error to be recoverable")
	}
}

func TestRetryDoSucceedsAfterN(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2.0}

	err := Do(context.Background(), policy, nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(KindLLMTimeout, "slow")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryDoStopsOnNonRecoverable(t *testing.T) {
	attempts := 0
	policy := StandardPolicy()

	err := Do(context.Background(), policy, nil, func(ctx context.Context) error {
		attempts++
		return New(KindAgentValidation, "bad input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (non-recoverable should not retry)", attempts)
	}
}

func TestRetryDoExhaustsMaxRetries(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, ExponentialBase: 2.0}

	err := Do(context.Background(), policy, nil, func(ctx context.Context) error {
		attempts++
		return New(KindLLMTimeout, "always slow")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 1+maxRetries=3", attempts)
	}
}

func TestBudgetSkipsStepsOnceExhausted(t *testing.T) {
	b := NewBudget(10 * time.Millisecond)

	_ = b.Step(context.Background(), "slow", 50*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	err := b.Step(context.Background(), "never-runs", time.Second, func(ctx context.Context) error {
		t.Fatal("step should have been skipped")
		return nil
	})
	if err != nil {
		t.Fatalf("skip should not return an error: %v", err)
	}

	outcomes := b.Outcomes()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[1].Skipped {
		t.Error("second step should be marked skipped")
	}
}

func TestBudgetTimesOutStep(t *testing.T) {
	b := NewBudget(time.Second)

	err := b.Step(context.Background(), "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindWorkflowTimeout {
		t.Errorf("expected KindWorkflowTimeout, got %v", kind)
	}

	outcomes := b.Outcomes()
	if !outcomes[0].TimedOut {
		t.Error("expected step to be marked timed out")
	}
}
