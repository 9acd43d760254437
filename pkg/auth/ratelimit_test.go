package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInProcessLimiter_PerRoleLimit(t *testing.T) {
	l := NewInProcessLimiter(map[string]int{"User": 2}, 100)
	id := &Identity{Subject: "u1", Roles: []string{"user"}}

	for i := 0; i < 2; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("3rd request err = %v, want ErrTooManyRequests", err)
	}
}

func TestInProcessLimiter_MostGenerousRoleWins(t *testing.T) {
	l := NewInProcessLimiter(map[string]int{"user": 1, "admin": 3}, 100)
	id := &Identity{Subject: "a1", Roles: []string{"user", "admin"}}

	for i := 0; i < 3; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(context.Background(), id); err == nil {
		t.Error("4th request should be limited")
	}
}

func TestInProcessLimiter_UnlimitedRole(t *testing.T) {
	l := NewInProcessLimiter(map[string]int{"user": 1, "service": 0}, 1)
	id := &Identity{Subject: "svc", Roles: []string{"user", "service"}}

	for i := 0; i < 50; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d limited: %v", i+1, err)
		}
	}
}

func TestInProcessLimiter_DefaultAndWindowReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewInProcessLimiter(nil, 1)
	l.now = func() time.Time { return now }
	id := &Identity{Subject: "u1", Roles: []string{"user"}}

	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(context.Background(), id); err == nil {
		t.Fatal("second request in window should be limited")
	}

	now = now.Add(time.Minute)
	if err := l.Allow(context.Background(), id); err != nil {
		t.Errorf("request after window reset: %v", err)
	}
}

func TestInProcessLimiter_SubjectsAreIndependent(t *testing.T) {
	l := NewInProcessLimiter(nil, 1)

	if err := l.Allow(context.Background(), &Identity{Subject: "a", Roles: []string{"user"}}); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(context.Background(), &Identity{Subject: "b", Roles: []string{"user"}}); err != nil {
		t.Errorf("other subject limited: %v", err)
	}
}

func TestInProcessLimiter_ExpiredCountersAreSwept(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewInProcessLimiter(nil, 5)
	l.now = func() time.Time { return now }

	for _, subject := range []string{"a", "b", "c"} {
		if err := l.Allow(context.Background(), &Identity{Subject: subject, Roles: []string{"user"}}); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(l.counters); got != 3 {
		t.Fatalf("counters = %d, want 3", got)
	}

	now = now.Add(30 * time.Second)
	if err := l.Allow(context.Background(), &Identity{Subject: "d", Roles: []string{"user"}}); err != nil {
		t.Fatal(err)
	}
	if got := len(l.counters); got != 4 {
		t.Errorf("counters = %d, want live windows kept", got)
	}

	now = now.Add(2 * time.Minute)
	if err := l.Allow(context.Background(), &Identity{Subject: "e", Roles: []string{"user"}}); err != nil {
		t.Fatal(err)
	}
	if got := len(l.counters); got != 1 {
		t.Errorf("counters = %d, want only the new subject after the sweep", got)
	}
}

func newRedisLimiter(t *testing.T, roleRPM map[string]int, defaultRPM int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, "rl:", roleRPM, defaultRPM), mr
}

func TestRedisLimiter_LimitAndReset(t *testing.T) {
	l, _ := newRedisLimiter(t, map[string]int{"user": 2}, 0)
	now := time.Unix(1_700_000_040, 0)
	l.limits.now = func() time.Time { return now }
	id := &Identity{Subject: "u1", Roles: []string{"user"}}

	for i := 0; i < 2; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("3rd request err = %v, want ErrTooManyRequests", err)
	}

	now = now.Add(time.Minute)
	if err := l.Allow(context.Background(), id); err != nil {
		t.Errorf("next window: %v", err)
	}
}

func TestRedisLimiter_FallsBackWhenRedisFails(t *testing.T) {
	l, mr := newRedisLimiter(t, nil, 1)
	mr.SetError("ERR injected failure")
	id := &Identity{Subject: "u1", Roles: []string{"user"}}

	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("second request err = %v, want ErrTooManyRequests from fallback", err)
	}
}

func TestRedisLimiter_UnlimitedSkipsRedis(t *testing.T) {
	l, mr := newRedisLimiter(t, map[string]int{"admin": 0}, 1)
	mr.SetError("ERR should not be called")

	if err := l.Allow(context.Background(), &Identity{Subject: "a1", Roles: []string{"admin"}}); err != nil {
		t.Errorf("unlimited role: %v", err)
	}
}
