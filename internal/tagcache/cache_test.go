package tagcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", c.TTL(), DefaultTTL)
	}
	if c.interval != DefaultSweepInterval {
		t.Errorf("sweep interval = %v, want %v", c.interval, DefaultSweepInterval)
	}
}

func TestCache_GetSet(t *testing.T) {
	t.Run("miss on empty cache", func(t *testing.T) {
		c := New(Config{})
		if _, ok := c.Get("abc"); ok {
			t.Error("Get() hit on empty cache")
		}
	})

	t.Run("hit after set", func(t *testing.T) {
		c := New(Config{})
		c.Set("abc", "https://example.com", 0)

		got, ok := c.Get("abc")
		if !ok {
			t.Fatal("Get() miss after Set()")
		}
		if got != "https://example.com" {
			t.Errorf("Get() = %q, want %q", got, "https://example.com")
		}
	})

	t.Run("set overwrites existing entry", func(t *testing.T) {
		c := New(Config{})
		c.Set("abc", "https://one.example.com", 0)
		c.Set("abc", "https://two.example.com", 0)

		got, _ := c.Get("abc")
		if got != "https://two.example.com" {
			t.Errorf("Get() = %q, want last written URL", got)
		}
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
	})
}

func TestCache_ExpiryAtReadTime(t *testing.T) {
	c := New(Config{TTL: time.Hour})
	c.Set("short", "https://example.com", 40*time.Millisecond)

	if _, ok := c.Get("short"); !ok {
		t.Fatal("Get() miss before TTL elapsed")
	}

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("Get() returned an entry after its TTL elapsed")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (expired entry awaits sweep)", c.Len())
	}
}

func TestCache_ReadDoesNotExtendTTL(t *testing.T) {
	c := New(Config{})
	c.Set("abc", "https://example.com", 60*time.Millisecond)

	deadline := time.Now().Add(120 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Get("abc")
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := c.Get("abc"); ok {
		t.Error("repeated reads kept the entry alive past its TTL")
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New(Config{TTL: time.Hour})
	c.Set("old1", "https://a.example.com", 10*time.Millisecond)
	c.Set("old2", "https://b.example.com", 10*time.Millisecond)
	c.Set("fresh", "https://c.example.com", 0)

	time.Sleep(30 * time.Millisecond)

	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Sweep() removed an unexpired entry")
	}
}

func TestCache_StartClose(t *testing.T) {
	c := New(Config{TTL: time.Hour, SweepInterval: 10 * time.Millisecond})
	c.Set("old", "https://example.com", 5*time.Millisecond)

	c.Start(context.Background())
	c.Start(context.Background()) // no-op while running

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Fatalf("background sweep did not remove expired entry, Len() = %d", c.Len())
	}

	c.Close()
	c.Close() // idempotent

	c.Set("after", "https://example.com", 0)
	if _, ok := c.Get("after"); !ok {
		t.Error("cache unusable after Close()")
	}
}

func TestCache_StopsOnContextCancel(t *testing.T) {
	c := New(Config{SweepInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	stopped := c.stopped
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not exit after context cancel")
	}
	c.Close()
}

func TestCache_Concurrent(t *testing.T) {
	c := New(Config{SweepInterval: time.Millisecond})
	c.Start(context.Background())
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				tag := fmt.Sprintf("t%d-%d", i, j%10)
				c.Set(tag, "https://example.com/"+tag, 0)
				if got, ok := c.Get(tag); ok && got != "https://example.com/"+tag {
					t.Errorf("Get(%q) = %q", tag, got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
