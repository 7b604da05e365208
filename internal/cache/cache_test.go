package cache

import (
	"sync"
	"testing"
)

func TestCacheBasicOperations(t *testing.T) {
	c := NewCache[string, int]()

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache reported a hit")
	}

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite not applied: got %d", v)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestCacheKeys(t *testing.T) {
	c := NewCache[string, bool]()
	c.Set("x", true)
	c.Set("y", true)

	keys := c.Keys()
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["x"] || !seen["y"] {
		t.Errorf("keys = %v", keys)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache[int, int]()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(i, i*2)
			c.Get(i)
			c.Len()
		}()
	}
	wg.Wait()

	if c.Len() != 32 {
		t.Errorf("Len() = %d, want 32", c.Len())
	}
}
