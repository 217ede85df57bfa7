package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// tolerance absorbs the gap between the limiter stamping a call and the
// caller observing the return.
const tolerance = 2 * time.Millisecond

func TestLimiterFirstWaitDoesNotBlock(t *testing.T) {
	l := New(time.Hour)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("first wait blocked for %s", elapsed)
	}
}

func TestLimiterSpacesConsecutiveWaits(t *testing.T) {
	const minDelay = 40 * time.Millisecond
	l := New(minDelay)

	var returns []time.Time
	for i := 0; i < 4; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		returns = append(returns, time.Now())
	}

	for i := 1; i < len(returns); i++ {
		if gap := returns[i].Sub(returns[i-1]); gap < minDelay-tolerance {
			t.Fatalf("gap %d = %s, want >= %s", i, gap, minDelay)
		}
	}
}

func TestLimiterNoWaitAfterIdle(t *testing.T) {
	l := New(20 * time.Millisecond)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 15*time.Millisecond {
		t.Fatalf("wait after idle blocked for %s", elapsed)
	}
}

func TestLimiterCancelledWait(t *testing.T) {
	l := New(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiterSharedInstanceSerializes(t *testing.T) {
	const minDelay = 25 * time.Millisecond
	l := New(minDelay)

	var (
		mu      sync.Mutex
		returns []time.Time
		wg      sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			returns = append(returns, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(returns) != 3 {
		t.Fatalf("returns=%d, want 3", len(returns))
	}
	first, last := returns[0], returns[0]
	for _, ts := range returns {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if span := last.Sub(first); span < 2*minDelay-tolerance {
		t.Fatalf("span=%s, want >= %s", span, 2*minDelay)
	}
}
