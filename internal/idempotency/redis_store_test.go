package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisStore(rdb), mr
}

func newRequest(key, body string) Request {
	return Request{
		Scope:       "create-user",
		Key:         key,
		RequestHash: Hash([]byte(body)),
		LockTTL:     30 * time.Second,
	}
}

func TestRedisStore_AcquireCompleteReplay(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	req := newRequest("k-1", `{"name":"alice"}`)

	d, err := store.Acquire(ctx, req)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionAcquired {
		t.Fatalf("expected acquired, got %s", d.Type)
	}

	// Пока ответ не сохранён, повтор ждёт
	d, err = store.Acquire(ctx, req)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionInProgress {
		t.Errorf("expected in_progress, got %s", d.Type)
	}

	resp := StoredResponse{
		StatusCode:  201,
		Body:        []byte(`{"user":{"name":"alice"},"warnings":[]}`),
		ContentType: "application/json",
	}
	if err := store.Complete(ctx, req, resp, time.Hour); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if ttl := mr.TTL(redisKey(req)); ttl != time.Hour {
		t.Errorf("expected completed entry ttl 1h, got %v", ttl)
	}

	d, err = store.Acquire(ctx, req)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionReplay {
		t.Fatalf("expected replay, got %s", d.Type)
	}
	if d.Response.StatusCode != 201 {
		t.Errorf("expected stored status 201, got %d", d.Response.StatusCode)
	}
	if string(d.Response.Body) != string(resp.Body) {
		t.Errorf("expected stored body %s, got %s", resp.Body, d.Response.Body)
	}
	if d.Response.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", d.Response.ContentType)
	}
}

func TestRedisStore_HashMismatchIsConflict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, newRequest("k-2", `{"name":"alice"}`)); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	d, err := store.Acquire(ctx, newRequest("k-2", `{"name":"bob"}`))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionConflict {
		t.Errorf("expected conflict, got %s", d.Type)
	}
}

func TestRedisStore_ReleaseAllowsReacquire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	req := newRequest("k-3", `{"name":"alice"}`)

	if _, err := store.Acquire(ctx, req); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := store.Release(ctx, req); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if mr.Exists(redisKey(req)) {
		t.Error("released key should be deleted")
	}

	d, err := store.Acquire(ctx, req)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionAcquired {
		t.Errorf("expected acquired after release, got %s", d.Type)
	}
}

func TestRedisStore_LockExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	req := newRequest("k-4", `{"name":"alice"}`)

	if _, err := store.Acquire(ctx, req); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ttl := mr.TTL(redisKey(req)); ttl != req.LockTTL {
		t.Errorf("expected lock ttl %v, got %v", req.LockTTL, ttl)
	}

	// Упавший запрос не держит ключ дольше LockTTL
	mr.FastForward(req.LockTTL + time.Second)

	d, err := store.Acquire(ctx, req)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if d.Type != DecisionAcquired {
		t.Errorf("expected acquired after lock expiry, got %s", d.Type)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, err := store.Acquire(context.Background(), newRequest("k-5", "{}")); err == nil {
		t.Error("expected error when redis is down")
	}
}
