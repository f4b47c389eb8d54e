package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[int](time.Minute)

	c.Set("ana", 42)
	got, ok := c.Get("ana")
	if !ok || got != 42 {
		t.Fatalf("expected 42, got %d (found=%v)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("unexpected hit for missing key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string](10 * time.Millisecond)

	c.Set("ana", "value")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("ana"); ok {
		t.Fatalf("expected entry to expire")
	}
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", cleaned)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got size %d", c.Size())
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[int](time.Minute)

	c.Set("ana", 1)
	c.Delete("ana")
	if _, ok := c.Get("ana"); ok {
		t.Fatalf("expected delete to evict the entry")
	}
}
