package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("unexpected first call state allowed=%v count=%d", allowed, count)
	}
	key := client.RateLimitKey("test-scope")
	if got := mock.ttl[key]; got != time.Minute {
		t.Fatalf("expected window ttl on first hit, got %v", got)
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "test-scope", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "test-scope", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestFixedWindowAllowFailedCounterLeavesNoImmortalKey(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	mock.evalErr = errors.New("READONLY You can't write against a read only replica")
	client := &Client{store: mock}

	if _, _, err := client.FixedWindowAllow(ctx, "ip:payment_verify:1.2.3.4", 1, time.Minute); err == nil {
		t.Fatalf("expected counter error to surface")
	}
	key := client.RateLimitKey("ip:payment_verify:1.2.3.4")
	if _, exists := mock.counters[key]; exists {
		t.Fatalf("a failed script must not leave a counter behind")
	}

	mock.evalErr = nil
	allowed, count, err := client.FixedWindowAllow(ctx, "ip:payment_verify:1.2.3.4", 1, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected a fresh window, allowed=%v count=%d", allowed, count)
	}
	if got := mock.ttl[key]; got != time.Minute {
		t.Fatalf("expected window ttl, got %v", got)
	}
}

func TestFixedWindowAllowRepairsCounterWithoutTTL(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.RateLimitKey("ip:api:9.9.9.9")
	mock.counters[key] = 500

	if _, _, err := client.FixedWindowAllow(ctx, "ip:api:9.9.9.9", 300, 15*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mock.ttl[key]; got != 15*time.Minute {
		t.Fatalf("a counter without ttl should get the window ttl, got %v", got)
	}
}

func TestFixedWindowAllowRejectsInvalidWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, _, err := client.FixedWindowAllow(context.Background(), "scope", 1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.IdempotencyKey("paystack_webhook", "charge.success:VG-1")
	ok, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || ok {
		t.Fatalf("expected duplicate SetNX to lose, ok=%v err=%v", ok, err)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected SetNX to win again after delete, ok=%v err=%v", ok, err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.SetNX(context.Background(), "k", "v", time.Second); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, _, err := client.FixedWindowAllow(context.Background(), "k", 1, time.Second); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "vg:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "vg:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.IdempotencyKey("scope", ""); got != "vg:idempotency:scope" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

// mockCmdable runs the window script in memory. A failing eval changes
// nothing, matching the all-or-nothing execution of a Lua script.
type mockCmdable struct {
	data     map[string]string
	counters map[string]int64
	ttl      map[string]time.Duration
	evalErr  error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		ttl:      make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	if script != windowScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script call"))
	}
	ms, ok := args[0].(int64)
	if !ok {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected ttl argument %T", args[0]))
	}
	key := keys[0]
	m.counters[key]++
	if _, hasTTL := m.ttl[key]; !hasTTL {
		m.ttl[key] = time.Duration(ms) * time.Millisecond
	}
	return redis.NewCmdResult(m.counters[key], nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.counters, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
