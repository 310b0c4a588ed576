package ratelimit

import (
	"context"
	"testing"
	"time"
)

// TestInitialTokensWithinBounds verifies the randomized starting balance never
// leaves [0, capacity].
func TestInitialTokensWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		c := NewController(1.0, 4.0)
		if c.tokens < 0 || c.tokens > c.capacity {
			t.Fatalf("initial tokens out of bounds: %f", c.tokens)
		}
	}
}

// TestTokensStayWithinBounds drains a controller repeatedly and checks the
// bucket invariant after every call.
func TestTokensStayWithinBounds(t *testing.T) {
	// 1. A fast refill rate keeps the forced sleeps short.
	c := NewController(500, 4)
	ctx := context.Background()

	// 2. Request far more tokens than the capacity.
	for i := 0; i < 200; i++ {
		if err := c.WaitForToken(ctx); err != nil {
			t.Fatalf("WaitForToken failed on call %d: %v", i, err)
		}
		if c.tokens < 0 || c.tokens > c.capacity {
			t.Fatalf("tokens out of bounds after call %d: %f", i, c.tokens)
		}
	}
}

// TestDebitWithoutSleep verifies that an available token is debited
// immediately.
func TestDebitWithoutSleep(t *testing.T) {
	c := NewController(1.0, 4.0)
	c.tokens = 2.5
	c.last = time.Now()

	start := time.Now()
	if err := c.WaitForToken(context.Background()); err != nil {
		t.Fatalf("WaitForToken failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected an immediate return, took %v", elapsed)
	}
	if c.tokens < 1.4 || c.tokens > 1.6 {
		t.Errorf("expected ~1.5 tokens after debit, got %f", c.tokens)
	}
}

// TestSleepWhenEmpty verifies the shortfall sleep lands near need/rate with
// the jitter factor applied, and that the bucket is zeroed afterwards.
func TestSleepWhenEmpty(t *testing.T) {
	// 1 token per 100ms.
	c := NewController(10, 4)
	c.tokens = 0
	c.last = time.Now()

	start := time.Now()
	if err := c.WaitForToken(context.Background()); err != nil {
		t.Fatalf("WaitForToken failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 70*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("expected a sleep near 100ms (jittered), got %v", elapsed)
	}
	if c.tokens != 0 {
		t.Errorf("expected an empty bucket after a forced sleep, got %f", c.tokens)
	}
}

// TestCancelCutsSleepShort verifies a cancelled context interrupts the wait.
func TestCancelCutsSleepShort(t *testing.T) {
	// 1 token per 10s, so the sleep would be far longer than the test.
	c := NewController(0.1, 1)
	c.tokens = 0
	c.last = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.WaitForToken(ctx)
	if err == nil {
		t.Fatal("expected a context error, got nil")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancellation did not cut the sleep short")
	}
}
