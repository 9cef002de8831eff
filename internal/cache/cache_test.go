package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](4)

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() on empty cache returned ok")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s was evicted", k)
		}
	}
}

func TestCache_Unlimited(t *testing.T) {
	c := New[int, int](0)
	for i := range 1000 {
		c.Set(i, i)
	}
	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	c := New[string, int](8)
	errBoom := errors.New("boom")

	if _, _, err := c.GetOrCompute("k", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, errBoom)
	}
	if c.Len() != 0 {
		t.Fatal("failed computation was cached")
	}

	v, hit, err := c.GetOrCompute("k", func() (int, error) { return 7, nil })
	if err != nil || hit || v != 7 {
		t.Fatalf("GetOrCompute() = %d, %v, %v, want 7, false, nil", v, hit, err)
	}
	v, hit, _ = c.GetOrCompute("k", func() (int, error) { return 9, nil })
	if !hit || v != 7 {
		t.Errorf("second GetOrCompute() = %d, %v, want 7, true", v, hit)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 2 {
		t.Errorf("Stats() = %+v, want 1 hit, 2 misses", s)
	}
}

func TestCache_GetOrComputeConcurrent(t *testing.T) {
	c := New[string, int](8)
	var calls atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrCompute("shared", func() (int, error) {
				calls.Add(1)
				return 1, nil
			})
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("compute ran %d times, want 1", calls.Load())
	}
}

func TestCache_DeleteClear(t *testing.T) {
	c := New[string, int](8)
	for i := range 3 {
		c.Set(strconv.Itoa(i), i)
	}
	if !c.Delete("1") {
		t.Error("Delete(1) = false")
	}
	if c.Delete("1") {
		t.Error("second Delete(1) = true")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	c.Set("x", 1)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Error("cache unusable after Clear")
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := New[string, int](1000)
	for i := range 100 {
		c.Set(strconv.Itoa(i), i)
	}
	b.ResetTimer()
	for range b.N {
		c.Get("50")
	}
}
