package throttle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSystemClock_NanoTimeIsMonotonic(t *testing.T) {
	c := NewSystemClock()

	first := c.NanoTime()
	time.Sleep(time.Millisecond)
	second := c.NanoTime()

	if second-first < int64(time.Millisecond) {
		t.Errorf("NanoTime advanced %d ns across a 1ms sleep", second-first)
	}
}

func TestSystemClock_SleepDelivers(t *testing.T) {
	c := NewSystemClock()
	requested := int64(5 * time.Millisecond)

	start := time.Now()
	remaining, err := c.Sleep(context.Background(), requested)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if remaining > 0 {
		t.Errorf("Sleep() remaining = %d, want <= 0 after a full sleep", remaining)
	}
	if elapsed < time.Duration(requested) {
		t.Errorf("Sleep() returned after %v, want >= %v", elapsed, time.Duration(requested))
	}
}

func TestSystemClock_SleepNonPositive(t *testing.T) {
	c := NewSystemClock()

	for _, nanos := range []int64{0, -100} {
		remaining, err := c.Sleep(context.Background(), nanos)
		if err != nil {
			t.Fatalf("Sleep(%d) error = %v", nanos, err)
		}
		if remaining != nanos {
			t.Errorf("Sleep(%d) remaining = %d, want %d", nanos, remaining, nanos)
		}
	}
}

func TestSystemClock_SleepCancelled(t *testing.T) {
	c := NewSystemClock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	requested := int64(time.Second)
	remaining, err := c.Sleep(ctx, requested)

	if !errors.Is(err, ErrSleepInterrupted) {
		t.Fatalf("Sleep() error = %v, want ErrSleepInterrupted", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Sleep() error = %v, want it to wrap DeadlineExceeded", err)
	}
	if remaining <= 0 || remaining >= requested {
		t.Errorf("Sleep() remaining = %d, want within (0, %d)", remaining, requested)
	}
}

func TestSystemClock_SleepAlreadyCancelled(t *testing.T) {
	c := NewSystemClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	remaining, err := c.Sleep(ctx, 1000)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if remaining != 1000 {
		t.Errorf("Sleep() remaining = %d, want 1000", remaining)
	}
}
