package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_EnforcesWindow(t *testing.T) {
	now := time.Date(2020, 6, 2, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "client", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if want := 2 - i; decision.Remaining != want {
			t.Fatalf("remaining = %d, want %d", decision.Remaining, want)
		}
	}

	decision, err := limiter.Allow(ctx, "client", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("fourth request in window should be denied")
	}

	now = now.Add(61 * time.Second)
	decision, err = limiter.Allow(ctx, "client", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("window should have reset")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatal("first request for key a denied")
	}
	if d, _ := limiter.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Fatal("second request for key a should be denied")
	}
	if d, _ := limiter.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Fatal("key b should not share key a's bucket")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	for i := 0; i < 10; i++ {
		d, err := limiter.Allow(context.Background(), "any", 0, time.Minute)
		if err != nil || !d.Allowed {
			t.Fatalf("disabled limiter should always allow, got %+v err %v", d, err)
		}
	}
}
