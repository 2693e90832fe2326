package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "A@Khwopa.edu.np", "123456", time.Now().UTC().Add(5*time.Minute))

	code, ok := store.Get(ctx, " a@khwopa.edu.np")
	if !ok {
		t.Fatal("Get should find the code regardless of email case")
	}
	if code != "123456" {
		t.Errorf("code = %q, want 123456", code)
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)
	store.Put(ctx, "a@khwopa.edu.np", "111111", exp)
	store.Put(ctx, "a@khwopa.edu.np", "222222", exp)

	if code, _ := store.Get(ctx, "a@khwopa.edu.np"); code != "222222" {
		t.Errorf("code = %q, want latest 222222", code)
	}
}

func TestMemoryStore_Missing(t *testing.T) {
	store := NewMemoryStore()
	if code, ok := store.Get(context.Background(), "nobody@khwopa.edu.np"); ok || code != "" {
		t.Errorf("Get missing = (%q, %v), want empty", code, ok)
	}
}

func TestMemoryStore_Expired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }
	store.Put(ctx, "a@khwopa.edu.np", "123456", now.Add(time.Minute))

	now = now.Add(time.Minute)
	if _, ok := store.Get(ctx, "a@khwopa.edu.np"); ok {
		t.Error("code should be expired at its expiry instant")
	}
	store.mu.RLock()
	n := len(store.m)
	store.mu.RUnlock()
	if n != 0 {
		t.Errorf("expired entry not evicted, %d left", n)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "a@khwopa.edu.np", "123456", time.Now().Add(time.Minute))
	store.Delete(ctx, "A@khwopa.edu.np")
	if _, ok := store.Get(ctx, "a@khwopa.edu.np"); ok {
		t.Error("Get after Delete should miss")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("u%d@khwopa.edu.np", i%5)
			store.Put(ctx, email, fmt.Sprintf("%06d", i), exp)
			store.Get(ctx, email)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 5; i++ {
		if _, ok := store.Get(ctx, fmt.Sprintf("u%d@khwopa.edu.np", i)); !ok {
			t.Errorf("u%d missing after concurrent writes", i)
		}
	}
}
