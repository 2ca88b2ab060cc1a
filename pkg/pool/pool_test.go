package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	omniErrors "github.com/omnicore/agentrt/pkg/errors"
)

type fakeConn struct {
	id int
}

type fakeFactory struct {
	next    int32
	healthy atomic.Bool
	created int32
	closed  int32
}

func newFakeFactory() *fakeFactory {
	f := &fakeFactory{}
	f.healthy.Store(true)
	return f
}

func (f *fakeFactory) Create(ctx context.Context) (*fakeConn, error) {
	atomic.AddInt32(&f.created, 1)
	id := int(atomic.AddInt32(&f.next, 1))
	return &fakeConn{id: id}, nil
}

func (f *fakeFactory) Close(conn *fakeConn) error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func (f *fakeFactory) IsHealthy(ctx context.Context, conn *fakeConn) bool {
	return f.healthy.Load()
}

func TestAcquireCreatesUpToMax(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 2, AcquireTimeout: time.Second}, factory)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	c2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if c1.id == c2.id {
		t.Fatal("expected distinct connections")
	}

	snap := p.Snapshot()
	if snap.TotalConnections != 2 || snap.InUse != 2 {
		t.Errorf("snapshot = %+v, want 2 total/2 in use", snap)
	}
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 1, AcquireTimeout: 50 * time.Millisecond}, factory)
	defer p.Close()

	ctx := context.Background()
	if _, err := p.Acquire(ctx); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}

	_, err := p.Acquire(ctx)
	if err == nil {
		t.Fatal("expected pool exhausted error")
	}
	if _, ok := err.(*omniErrors.PoolExhaustedError); !ok {
		t.Fatalf("expected PoolExhaustedError, got %T: %v", err, err)
	}
}

func TestReleaseMakesConnectionAvailableAgain(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 1, AcquireTimeout: time.Second}, factory)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	p.Release(ctx, c1)

	c2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if c1.id != c2.id {
		t.Errorf("expected reuse of the same connection, got %d then %d", c1.id, c2.id)
	}
	if atomic.LoadInt32(&factory.created) != 1 {
		t.Errorf("expected exactly one creation, got %d", factory.created)
	}
}

func TestReleaseDropsUnhealthyConnection(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 1, AcquireTimeout: time.Second}, factory)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	factory.healthy.Store(false)
	p.Release(ctx, c1)

	if atomic.LoadInt32(&factory.closed) != 1 {
		t.Errorf("expected unhealthy connection to be closed, closed=%d", factory.closed)
	}

	factory.healthy.Store(true)
	c2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after drop: %v", err)
	}
	if c2.id == c1.id {
		t.Error("expected a fresh connection, not the dropped one")
	}
}

func TestAcquireAfterCloseFails(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 1, AcquireTimeout: time.Second}, factory)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := p.Acquire(context.Background())
	if _, ok := err.(*omniErrors.PoolClosedError); !ok {
		t.Fatalf("expected PoolClosedError, got %T: %v", err, err)
	}
}

func TestAcquireUnblocksOnRelease(t *testing.T) {
	factory := newFakeFactory()
	p := New[*fakeConn](Config{MaxConnections: 1, AcquireTimeout: time.Second}, factory)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(ctx, c1)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked acquire failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked acquire never unblocked")
	}
}
