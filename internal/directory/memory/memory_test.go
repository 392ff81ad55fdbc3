package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sundayezeilo/shorttag/internal/errx"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("get unknown tag is NotFound", func(t *testing.T) {
		d := New()
		_, err := d.Get(ctx, "nope")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("Get() error kind = %v, want NotFound", errx.KindOf(err))
		}
	})

	t.Run("set then get and exists", func(t *testing.T) {
		d := New()
		if err := d.Set(ctx, "abc", "https://example.com"); err != nil {
			t.Fatalf("Set() unexpected error: %v", err)
		}

		ok, err := d.Exists(ctx, "abc")
		if err != nil || !ok {
			t.Fatalf("Exists() = %v, %v; want true, nil", ok, err)
		}
		got, err := d.Get(ctx, "abc")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got != "https://example.com" {
			t.Errorf("Get() = %q, want %q", got, "https://example.com")
		}
	})

	t.Run("set if absent keeps first binding", func(t *testing.T) {
		d := New()
		ok, err := d.SetIfAbsent(ctx, "abc", "https://one.example.com")
		if err != nil || !ok {
			t.Fatalf("first SetIfAbsent() = %v, %v; want true, nil", ok, err)
		}
		ok, err = d.SetIfAbsent(ctx, "abc", "https://two.example.com")
		if err != nil || ok {
			t.Fatalf("second SetIfAbsent() = %v, %v; want false, nil", ok, err)
		}

		got, _ := d.Get(ctx, "abc")
		if got != "https://one.example.com" {
			t.Errorf("Get() = %q, want first URL", got)
		}
	})

	t.Run("reserved tags are rejected", func(t *testing.T) {
		d := New()
		if err := d.Set(ctx, "a.b", "https://example.com"); errx.KindOf(err) != errx.Invalid {
			t.Errorf("Set() error kind = %v, want Invalid", errx.KindOf(err))
		}
		if _, err := d.Exists(ctx, "a[0]"); errx.KindOf(err) != errx.Invalid {
			t.Errorf("Exists() error kind = %v, want Invalid", errx.KindOf(err))
		}
	})

	t.Run("concurrent set if absent has one winner", func(t *testing.T) {
		d := New()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := d.SetIfAbsent(ctx, "race", "https://example.com"); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("SetIfAbsent() winners = %d, want 1", wins.Load())
		}
		if d.Len() != 1 {
			t.Errorf("Len() = %d, want 1", d.Len())
		}
	})
}
