package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neuroti/Psi/internal/cache"
)

// --- Mocks ---

type MockPrimary struct {
	Candidates []Candidate
	Err        error
	MaxCalls   int32
	calls      atomic.Int32
}

func (m *MockPrimary) Detect(ctx context.Context, image []byte) ([]Candidate, error) {
	n := m.calls.Add(1)
	if m.MaxCalls > 0 && n > m.MaxCalls {
		return nil, fmt.Errorf("primary invoked %d times, expected at most %d", n, m.MaxCalls)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Candidates, nil
}

type MockFallback struct {
	Items []FallbackItem
	Err   error
	Delay time.Duration
	calls atomic.Int32
}

func (m *MockFallback) Detect(ctx context.Context, image []byte) ([]FallbackItem, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Items, nil
}

// MapCache is an in-process cache.Cache with switchable write failures.
type MapCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	FailSets bool
}

func NewMapCache() *MapCache {
	return &MapCache{data: make(map[string][]byte)}
}

func (c *MapCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *MapCache) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.FailSets {
		return errors.New("cache unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// --- Tests ---

func TestHybridDetector_CacheIdempotence(t *testing.T) {
	ctx := context.Background()
	badger, err := cache.Open("")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer badger.Close()

	primary := &MockPrimary{
		Candidates: []Candidate{{Label: "apple", Confidence: 0.95, Region: Box{Width: 0.5, Height: 1}}},
		MaxCalls:   1,
	}
	d := NewHybridDetector(primary, &MockFallback{}, badger, Options{})

	image := []byte("jpeg-bytes")
	first, err := d.Detect(ctx, image)
	if err != nil {
		t.Fatalf("first Detect failed: %v", err)
	}
	second, err := d.Detect(ctx, image)
	if err != nil {
		t.Fatalf("second Detect should be served from cache, got %v", err)
	}

	if len(second) != 1 || second[0] != first[0] {
		t.Errorf("Expected identical cached output, got %+v vs %+v", first, second)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("Expected 1 primary call, got %d", primary.calls.Load())
	}
}

func TestHybridDetector_FallbackGate(t *testing.T) {
	ctx := context.Background()

	t.Run("HighConfidenceSkipsFallback", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{
			{Label: "apple", Confidence: 0.95, Region: Box{Width: 0.5, Height: 0.5}},
			{Label: "banana", Confidence: 0.90, Region: Box{Left: 0.5, Width: 0.5, Height: 0.5}},
		}}
		fallback := &MockFallback{Items: []FallbackItem{{Label: "pear", Confidence: 0.9}}}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if fallback.calls.Load() != 0 {
			t.Errorf("Expected fallback never called, got %d calls", fallback.calls.Load())
		}
		if len(items) != 2 || items[0].Label != "apple" || items[1].Label != "banana" {
			t.Errorf("Unexpected items %+v", items)
		}
		if items[0].EstimatedMassGrams != 100 {
			t.Errorf("Expected quarter-frame region to estimate 100g, got %v", items[0].EstimatedMassGrams)
		}
	})

	t.Run("LowConfidenceReplacedByFallback", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{
			{Label: "blob", Confidence: 0.5},
			{Label: "thing", Confidence: 0.3},
		}}
		fallback := &MockFallback{Items: []FallbackItem{
			{Label: "kimchi", Confidence: 0.92, EstimatedMassGrams: 80},
			{Label: "rice", Confidence: 0.88},
		}}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if fallback.calls.Load() != 1 {
			t.Errorf("Expected exactly 1 fallback call, got %d", fallback.calls.Load())
		}
		if len(items) != 2 || items[0].Label != "kimchi" || items[1].Label != "rice" {
			t.Fatalf("Expected fallback output to replace primary, got %+v", items)
		}
		if items[0].Region != FullFrame {
			t.Errorf("Expected full-frame region, got %+v", items[0].Region)
		}
		if items[1].EstimatedMassGrams != DefaultMassGrams {
			t.Errorf("Expected default mass %v, got %v", DefaultMassGrams, items[1].EstimatedMassGrams)
		}
	})

	t.Run("FallbackFailureKeepsPrimary", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{{Label: "blob", Confidence: 0.4}}}
		fallback := &MockFallback{Err: errors.New("quota exhausted")}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Expected fallback failure to be swallowed, got %v", err)
		}
		if len(items) != 1 || items[0].Label != "blob" {
			t.Errorf("Expected primary result, got %+v", items)
		}
	})

	t.Run("FallbackTimeoutKeepsPrimary", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{{Label: "blob", Confidence: 0.4}}}
		fallback := &MockFallback{Delay: time.Second, Items: []FallbackItem{{Label: "late", Confidence: 1}}}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{FallbackTimeout: 20 * time.Millisecond})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Expected timeout to be swallowed, got %v", err)
		}
		if len(items) != 1 || items[0].Label != "blob" {
			t.Errorf("Expected primary result after timeout, got %+v", items)
		}
	})

	t.Run("EmptyFallbackReplacesPrimary", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{{Label: "blob", Confidence: 0.4}}}
		fallback := &MockFallback{Items: []FallbackItem{}}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if fallback.calls.Load() != 1 {
			t.Errorf("Expected exactly 1 fallback call, got %d", fallback.calls.Load())
		}
		if items == nil || len(items) != 0 {
			t.Errorf("Expected an empty non-nil list from the fallback, got %+v", items)
		}
	})

	t.Run("BlankFallbackLabelsReplacePrimary", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{{Label: "blob", Confidence: 0.4}}}
		fallback := &MockFallback{Items: []FallbackItem{{Label: "  ", Confidence: 0.9}}}
		d := NewHybridDetector(primary, fallback, NewMapCache(), Options{})

		items, _ := d.Detect(ctx, []byte("img"))
		if len(items) != 0 {
			t.Errorf("Expected blank fallback labels to yield no items, got %+v", items)
		}
	})

	t.Run("NilFallback", func(t *testing.T) {
		primary := &MockPrimary{Candidates: []Candidate{{Label: "blob", Confidence: 0.1}}}
		d := NewHybridDetector(primary, nil, NewMapCache(), Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil || len(items) != 1 {
			t.Errorf("Expected primary result without fallback, got %+v, %v", items, err)
		}
	})
}

func TestHybridDetector_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("PrimaryErrorIsFatal", func(t *testing.T) {
		fallback := &MockFallback{Items: []FallbackItem{{Label: "x", Confidence: 1}}}
		d := NewHybridDetector(&MockPrimary{Err: errors.New("boom")}, fallback, NewMapCache(), Options{})

		if _, err := d.Detect(ctx, []byte("img")); err == nil {
			t.Fatal("Expected primary failure to be returned")
		}
		if fallback.calls.Load() != 0 {
			t.Error("Expected fallback not to run after primary failure")
		}
	})

	t.Run("CacheWriteFailureIsNotFatal", func(t *testing.T) {
		c := NewMapCache()
		c.FailSets = true
		primary := &MockPrimary{Candidates: []Candidate{{Label: "apple", Confidence: 0.9}}}
		d := NewHybridDetector(primary, nil, c, Options{})

		items, err := d.Detect(ctx, []byte("img"))
		if err != nil {
			t.Fatalf("Expected result despite cache failure, got %v", err)
		}
		if len(items) != 1 {
			t.Errorf("Expected 1 item, got %d", len(items))
		}
	})

	t.Run("EmptyResultIsCached", func(t *testing.T) {
		c := NewMapCache()
		primary := &MockPrimary{MaxCalls: 1}
		d := NewHybridDetector(primary, &MockFallback{}, c, Options{})

		for i := 0; i < 2; i++ {
			items, err := d.Detect(ctx, []byte("empty"))
			if err != nil {
				t.Fatalf("Detect %d failed: %v", i, err)
			}
			if len(items) != 0 {
				t.Errorf("Expected no detections, got %+v", items)
			}
		}
	})
}

func TestHybridDetector_ClampsOutput(t *testing.T) {
	primary := &MockPrimary{Candidates: []Candidate{
		{Label: " apple ", Confidence: 1.7, Region: Box{Left: -0.2, Top: 0.5, Width: 2, Height: 2}},
	}}
	d := NewHybridDetector(primary, nil, NewMapCache(), Options{})

	items, err := d.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	it := items[0]
	if it.Label != "apple" {
		t.Errorf("Expected trimmed label, got %q", it.Label)
	}
	if it.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %v", it.Confidence)
	}
	if it.Region.Left != 0 || it.Region.Width != 1 || it.Region.Height != 0.5 {
		t.Errorf("Expected region clamped to the frame, got %+v", it.Region)
	}
}

func TestDetectMany(t *testing.T) {
	primary := &selectivePrimary{fail: "bad"}
	d := NewHybridDetector(primary, nil, NewMapCache(), Options{MaxConcurrency: 2})

	images := [][]byte{[]byte("good-1"), []byte("bad"), []byte("good-2")}
	results := d.DetectMany(context.Background(), images)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[1].Err == nil {
		t.Error("Expected the failing image to report its error")
	}
	for _, i := range []int{0, 2} {
		if results[i].Err != nil || len(results[i].Items) != 1 {
			t.Errorf("Expected image %d to succeed, got %+v", i, results[i])
			continue
		}
		if results[i].Items[0].Label != string(images[i]) {
			t.Errorf("Expected result %d to keep input order, got %s", i, results[i].Items[0].Label)
		}
	}
}

type selectivePrimary struct {
	fail string
}

func (s *selectivePrimary) Detect(ctx context.Context, image []byte) ([]Candidate, error) {
	if string(image) == s.fail {
		return nil, errors.New("unreadable image")
	}
	return []Candidate{{Label: string(image), Confidence: 0.99}}, nil
}

func TestCacheKey(t *testing.T) {
	a := CacheKey([]byte("same"))
	b := CacheKey([]byte("same"))
	c := CacheKey([]byte("other"))
	if a != b {
		t.Error("Expected identical bytes to share a key")
	}
	if a == c {
		t.Error("Expected different bytes to have different keys")
	}
	if len(a) != len(cacheKeyPrefix)+64 {
		t.Errorf("Unexpected key %s", a)
	}
}
