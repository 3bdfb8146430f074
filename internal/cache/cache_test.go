package cache

import (
	"context"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := Open("")
	if err != nil {
		t.Fatalf("Failed to open in-memory cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBadgerCache(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if ok {
			t.Error("Expected miss for absent key")
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.SetWithExpiry(ctx, "k", []byte("v"), time.Hour); err != nil {
			t.Fatalf("SetWithExpiry failed: %v", err)
		}
		val, ok, err := c.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
		}
		if string(val) != "v" {
			t.Errorf("Expected 'v', got %q", val)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		if err := c.SetWithExpiry(ctx, "short", []byte("v"), time.Second); err != nil {
			t.Fatalf("SetWithExpiry failed: %v", err)
		}
		time.Sleep(1100 * time.Millisecond)
		if _, ok, _ := c.Get(ctx, "short"); ok {
			t.Error("Expected entry to expire")
		}
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	type payload struct {
		Name  string  `json:"name"`
		Grams float64 `json:"grams"`
	}

	if err := SetJSON(ctx, c, "p", payload{Name: "apple", Grams: 150}, time.Hour); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got payload
	ok, err := GetJSON(ctx, c, "p", &got)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Name != "apple" || got.Grams != 150 {
		t.Errorf("Unexpected payload %+v", got)
	}

	if err := c.SetWithExpiry(ctx, "broken", []byte("{not json"), time.Hour); err != nil {
		t.Fatalf("SetWithExpiry failed: %v", err)
	}
	ok, err = GetJSON(ctx, c, "broken", &got)
	if err != nil || ok {
		t.Errorf("Expected undecodable entry to be a miss, got ok=%v err=%v", ok, err)
	}
}
