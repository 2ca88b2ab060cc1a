package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCorrelationIDRoundTrips(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Fatalf("expected empty correlation id, got %q", got)
	}

	id := NewCorrelationID()
	ctx = WithCorrelationID(ctx, id)
	if got := CorrelationID(ctx); got != id {
		t.Errorf("CorrelationID = %q, want %q", got, id)
	}
}

func TestMetricsTimedOperationRecordsStats(t *testing.T) {
	m := NewMetrics("test")

	_ = m.TimedOperation("op", func() error { return nil })
	_ = m.TimedOperation("op", func() error { return errors.New("boom") })

	stats := m.Stats("op")
	if stats.Count != 2 {
		t.Fatalf("Count = %d, want 2", stats.Count)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", stats.SuccessRate)
	}
}

func TestTraceNestsChildSpans(t *testing.T) {
	trace := NewRequestTrace("req-1")
	ctx := context.Background()

	ctx, parent := trace.StartSpan(ctx, "orchestrator", "validateCode")
	_, child := trace.StartSpan(ctx, "security", "validateCode")
	child.Finish(nil)
	parent.Finish(nil)

	if len(trace.Roots) != 1 {
		t.Fatalf("expected 1 root span, got %d", len(trace.Roots))
	}
	if len(trace.Roots[0].Children) != 1 {
		t.Fatalf("expected 1 child span, got %d", len(trace.Roots[0].Children))
	}
	if trace.Roots[0].Children[0].AgentID != "security" {
		t.Errorf("child agent id = %s, want security", trace.Roots[0].Children[0].AgentID)
	}
	if trace.Roots[0].Status != SpanSuccess {
		t.Errorf("parent status = %s, want success", trace.Roots[0].Status)
	}
}

func TestManagerStartFinishRequest(t *testing.T) {
	m := NewManager("test_mgr", nil)

	ctx, trace := m.StartRequest(context.Background())
	if CorrelationID(ctx) == "" {
		t.Fatal("expected correlation id on context")
	}
	if trace.CorrelationID != CorrelationID(ctx) {
		t.Errorf("trace correlation id mismatch")
	}

	m.FinishRequest(trace.CorrelationID)
	m.mu.Lock()
	_, stillTracked := m.traces[trace.CorrelationID]
	m.mu.Unlock()
	if stillTracked {
		t.Error("expected trace to be removed after FinishRequest")
	}
}

func TestTimingRingCapsAtCapacity(t *testing.T) {
	m := NewMetrics("test_ring")
	for i := 0; i < timingRingCap+10; i++ {
		m.RecordTiming("flood", time.Millisecond, true)
	}
	stats := m.Stats("flood")
	if stats.Count != timingRingCap {
		t.Errorf("Count = %d, want %d", stats.Count, timingRingCap)
	}
}
