package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 1.5}
	err := Do(context.Background(), nil, "test_op", p, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("Do: expected error, got nil")
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
}

func TestDoReturnsNilOnSuccess(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Factor: 2}
	err := Do(context.Background(), nil, "test_op", p, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, Factor: 2}
	err := Do(ctx, nil, "test_op", p, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	sentinel := errors.New("persistent failure")
	p := Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Factor: 2}
	err := Do(context.Background(), nil, "upsert", p, func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got=%v", err)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	inner := errors.New("bad input")
	err := Do(context.Background(), nil, "task", Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return Permanent(inner)
	})
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("error identity lost: got=%v", err)
	}
}

func TestTaskPolicyBounds(t *testing.T) {
	p := TaskPolicy()
	if p.MaxAttempts != 3 {
		t.Fatalf("max attempts: want=3 got=%d", p.MaxAttempts)
	}
	if p.InitialDelay != 5*time.Second {
		t.Fatalf("initial delay: want=5s got=%s", p.InitialDelay)
	}
	if p.Factor != 1.8 {
		t.Fatalf("factor: want=1.8 got=%v", p.Factor)
	}
	if p.MaxDelay != 30*time.Second {
		t.Fatalf("max delay: want=30s got=%s", p.MaxDelay)
	}
}
