package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
)

func TestWaitUnknownService(t *testing.T) {
	l := New()
	err := l.Wait(context.Background(), "histogram")
	if !errors.Is(err, domain.ErrNoLimit) {
		t.Fatalf("expected ErrNoLimit, got %v", err)
	}
}

func TestWaitEnforcesMinimumGap(t *testing.T) {
	const delay = 50 * time.Millisecond

	l := New()
	l.Register("histogram", delay)

	ctx := context.Background()
	var returns []time.Time
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "histogram"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		returns = append(returns, time.Now())
	}

	for i := 1; i < len(returns); i++ {
		gap := returns[i].Sub(returns[i-1])
		// Allow a small scheduling tolerance below the nominal delay.
		if gap < delay-5*time.Millisecond {
			t.Fatalf("gap %d too small: %v < %v", i, gap, delay)
		}
	}
}

func TestWaitFirstCallDoesNotBlock(t *testing.T) {
	l := New()
	l.Register("sellitem", time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- l.Wait(context.Background(), "sellitem")
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first wait blocked")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	l.Register("sellitem", time.Hour)

	// Consume the free first slot.
	if err := l.Wait(context.Background(), "sellitem"); err != nil {
		t.Fatalf("priming wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "sellitem")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWaitConcurrentSameService(t *testing.T) {
	const delay = 30 * time.Millisecond

	l := New()
	l.Register("createbuyorder", delay)

	var (
		mu      sync.Mutex
		returns []time.Time
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background(), "createbuyorder"); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			returns = append(returns, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(returns) != 4 {
		t.Fatalf("expected 4 returns, got %d", len(returns))
	}
	for i := 1; i < len(returns); i++ {
		gap := returns[i].Sub(returns[i-1])
		if gap < delay-5*time.Millisecond {
			t.Fatalf("concurrent gap %d too small: %v", i, gap)
		}
	}
}

func TestServicesAreIndependent(t *testing.T) {
	l := New()
	l.Register("histogram", time.Hour)
	l.Register("priceoverview", 0)

	if err := l.Wait(context.Background(), "histogram"); err != nil {
		t.Fatalf("histogram wait: %v", err)
	}

	// The other service must not inherit histogram's pending delay.
	done := make(chan error, 1)
	go func() {
		done <- l.Wait(context.Background(), "priceoverview")
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("priceoverview wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("priceoverview wait blocked on histogram's limit")
	}
}
