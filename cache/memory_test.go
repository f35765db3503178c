package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get(missing) hit")
	}

	value := []byte("hello")
	if err := c.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'j'

	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v, want hello", got, ok)
	}
	got[0] = 'y'
	if again, _ := c.Get(ctx, "k"); string(again) != "hello" {
		t.Errorf("stored value mutated through Get result: %q", again)
	}
}

func TestMemoryCache_ZeroTTLStoresNothing(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("zero TTL value was stored")
	}
}

func TestMemoryCache_RejectsInvalidKey(t *testing.T) {
	c := NewMemoryCache(0)
	if err := c.Set(context.Background(), "bad\nkey", []byte("v"), time.Minute); err != ErrInvalidKey {
		t.Errorf("Set(bad key) = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewMemoryCache(0)
		ctx := context.Background()
		_ = c.Set(ctx, "k", []byte("v"), time.Minute)

		time.Sleep(59 * time.Second)
		if _, ok := c.Get(ctx, "k"); !ok {
			t.Fatal("entry expired early")
		}

		time.Sleep(time.Second)
		if _, ok := c.Get(ctx, "k"); ok {
			t.Fatal("entry still served at expiry")
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0 after lazy purge", c.Len())
		}
	})
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get() hit after Delete")
	}
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewMemoryCache(2)
		ctx := context.Background()

		_ = c.Set(ctx, "short", []byte("1"), time.Minute)
		_ = c.Set(ctx, "long", []byte("2"), time.Hour)
		_ = c.Set(ctx, "new", []byte("3"), time.Hour)

		if c.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", c.Len())
		}
		if _, ok := c.Get(ctx, "short"); ok {
			t.Error("entry closest to expiry survived")
		}
		for _, k := range []string{"long", "new"} {
			if _, ok := c.Get(ctx, k); !ok {
				t.Errorf("%s evicted", k)
			}
		}

		// Overwriting an existing key never evicts.
		_ = c.Set(ctx, "new", []byte("4"), time.Hour)
		if c.Len() != 2 {
			t.Errorf("Len() = %d after overwrite, want 2", c.Len())
		}
	})
}

func TestMemoryCache_MaxEntriesPurgesExpiredFirst(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := NewMemoryCache(2)
		ctx := context.Background()

		_ = c.Set(ctx, "a", []byte("1"), time.Second)
		_ = c.Set(ctx, "b", []byte("2"), time.Second)
		time.Sleep(2 * time.Second)

		_ = c.Set(ctx, "c", []byte("3"), time.Hour)
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1 after purging expired entries", c.Len())
		}
	})
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i*100+j)%80)
				_ = c.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = c.Get(ctx, key)
				if j%10 == 0 {
					_ = c.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d, want <= 50", c.Len())
	}
}
