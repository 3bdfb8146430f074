package detection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neuroti/Psi/internal/cache"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/shared"
)

const (
	cacheKeyPrefix = "food_detection:"

	DefaultHighConfidenceThreshold = 0.8
	DefaultFallbackTimeout         = 20 * time.Second
	DefaultCacheTTL                = 24 * time.Hour
	DefaultMaxConcurrency          = 4
)

// Options tunes the HybridDetector. Zero values take the defaults above.
type Options struct {
	HighConfidenceThreshold float64
	FallbackTimeout         time.Duration
	CacheTTL                time.Duration
	MaxConcurrency          int
	PrimaryModel            string
	FallbackModel           string
}

func (o Options) withDefaults() Options {
	if o.HighConfidenceThreshold <= 0 {
		o.HighConfidenceThreshold = DefaultHighConfidenceThreshold
	}
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = DefaultFallbackTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	return o
}

// HybridDetector runs a fast primary classifier and escalates to the
// fallback when mean confidence is low. Results are cached by image content,
// so byte-identical images from different users share one entry.
type HybridDetector struct {
	primary  PrimaryClassifier
	fallback FallbackClassifier
	cache    cache.Cache
	opts     Options
}

// NewHybridDetector creates a detector. fallback may be nil, in which case
// low-confidence results are returned as they are.
func NewHybridDetector(primary PrimaryClassifier, fallback FallbackClassifier, c cache.Cache, opts Options) *HybridDetector {
	return &HybridDetector{
		primary:  primary,
		fallback: fallback,
		cache:    c,
		opts:     opts.withDefaults(),
	}
}

// CacheKey is the content address of an image.
func CacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Detect returns the detections for image.
func (d *HybridDetector) Detect(ctx context.Context, image []byte) ([]DetectedItem, error) {
	items, _, err := d.DetectWithMeta(ctx, image)
	return items, err
}

// DetectWithMeta is Detect plus per-stage metadata for the metrics store.
func (d *HybridDetector) DetectWithMeta(ctx context.Context, image []byte) ([]DetectedItem, []shared.StageMeta, error) {
	key := CacheKey(image)

	var cached []DetectedItem
	hit, err := cache.GetJSON(ctx, d.cache, key, &cached)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("detection cache read failed")
	}
	if hit {
		metrics.DetectionCacheLookups.WithLabelValues("hit").Inc()
		return cached, []shared.StageMeta{{Stage: "detection_cache", Outcome: shared.OutcomeCached}}, nil
	}
	metrics.DetectionCacheLookups.WithLabelValues("miss").Inc()

	var metas []shared.StageMeta

	start := time.Now()
	candidates, err := d.primary.Detect(ctx, image)
	primaryMeta := shared.StageMeta{Stage: "primary", Model: d.opts.PrimaryModel, Latency: time.Since(start)}
	if err != nil {
		primaryMeta.Outcome = shared.OutcomeFailure
		metrics.PrimaryFailures.Inc()
		return nil, append(metas, primaryMeta), fmt.Errorf("failed to run primary classifier: %w", err)
	}
	primaryMeta.Outcome = shared.OutcomeSuccess
	metas = append(metas, primaryMeta)

	items := fromCandidates(candidates)

	if mean := MeanConfidence(items); mean < d.opts.HighConfidenceThreshold && d.fallback != nil {
		replaced, meta := d.runFallback(ctx, image, mean)
		metas = append(metas, meta)
		if replaced != nil {
			items = replaced
		}
	}

	if err := cache.SetJSON(ctx, d.cache, key, items, d.opts.CacheTTL); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("detection cache write failed")
	}

	return items, metas, nil
}

// runFallback returns nil when the primary result should be kept. A
// successful call returns a non-nil, possibly empty, list.
func (d *HybridDetector) runFallback(ctx context.Context, image []byte, mean float64) ([]DetectedItem, shared.StageMeta) {
	fctx, cancel := context.WithTimeout(ctx, d.opts.FallbackTimeout)
	defer cancel()

	start := time.Now()
	raw, err := d.fallback.Detect(fctx, image)
	meta := shared.StageMeta{Stage: "fallback", Model: d.opts.FallbackModel, Latency: time.Since(start)}
	if err != nil {
		meta.Outcome = shared.OutcomeFailure
		metrics.FallbackInvocations.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Float64("mean_confidence", mean).Msg("fallback classifier failed, keeping primary result")
		return nil, meta
	}
	meta.Outcome = shared.OutcomeSuccess

	// A successful fallback always replaces the primary list, even when it
	// found nothing.
	items := fromFallback(raw)
	if len(items) == 0 {
		metrics.FallbackInvocations.WithLabelValues("empty").Inc()
	} else {
		metrics.FallbackInvocations.WithLabelValues("replaced").Inc()
	}
	return items, meta
}

func fromCandidates(candidates []Candidate) []DetectedItem {
	items := make([]DetectedItem, 0, len(candidates))
	for _, c := range candidates {
		region := c.Region.clamped()
		items = append(items, DetectedItem{
			Label:              strings.TrimSpace(c.Label),
			Confidence:         clamp01(c.Confidence),
			Region:             region,
			EstimatedMassGrams: EstimateMass(region.Area(), FullFrame.Area()),
		})
	}
	return items
}

func fromFallback(raw []FallbackItem) []DetectedItem {
	items := make([]DetectedItem, 0, len(raw))
	for _, f := range raw {
		label := strings.TrimSpace(f.Label)
		if label == "" {
			continue
		}
		mass := f.EstimatedMassGrams
		if mass <= 0 {
			mass = DefaultMassGrams
		}
		items = append(items, DetectedItem{
			Label:              label,
			Confidence:         clamp01(f.Confidence),
			Region:             FullFrame,
			EstimatedMassGrams: mass,
		})
	}
	return items
}

// Result is the outcome of one image in DetectMany.
type Result struct {
	Items []DetectedItem
	Err   error
}

// DetectMany detects every image concurrently. A failing image reports its
// error in its own Result and does not cancel the others. Results keep the
// input order.
func (d *HybridDetector) DetectMany(ctx context.Context, images [][]byte) []Result {
	results := make([]Result, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.MaxConcurrency)
	for i, img := range images {
		g.Go(func() error {
			items, err := d.Detect(gctx, img)
			results[i] = Result{Items: items, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
