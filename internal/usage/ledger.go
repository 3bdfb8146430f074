// Package usage meters per-user daily feature usage against the free-tier
// quota.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
)

// Feature is a metered feature. The set of values is closed.
type Feature struct {
	key string
}

var (
	FoodAnalysis  = Feature{"food_analyses"}
	FridgeScan    = Feature{"fridge_analyses"}
	WellnessCheck = Feature{"wellness_checks"}
)

// Features lists every metered feature.
var Features = []Feature{FoodAnalysis, FridgeScan, WellnessCheck}

func (f Feature) String() string {
	return f.key
}

var (
	// ErrLimitReached means the user has used up today's quota.
	ErrLimitReached = errors.New("daily usage limit reached")
	// ErrUnavailable means the quota could not be checked. Requests are
	// rejected rather than run unmetered.
	ErrUnavailable = errors.New("usage ledger unavailable")
	// ErrNotRecorded means the work ran but the counter was not incremented.
	ErrNotRecorded = errors.New("usage not recorded")
)

const dateLayout = "2006-01-02"

const (
	selectCountQuery = `SELECT count FROM daily_usage WHERE user_id = ? AND feature = ? AND usage_date = ?`

	incrementQuery = `
INSERT INTO daily_usage (user_id, feature, usage_date, count, updated_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(user_id, feature, usage_date) DO UPDATE SET
	count = count + 1,
	updated_at = excluded.updated_at
RETURNING count`
)

// Ledger counts feature use per user per UTC day.
type Ledger struct {
	db    *sql.DB
	clock func() time.Time
}

// NewLedger creates a ledger. A nil clock uses time.Now.
func NewLedger(db *sql.DB, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{db: db, clock: clock}
}

func (l *Ledger) today() string {
	return l.clock().UTC().Format(dateLayout)
}

// CheckDailyUsage returns today's count, 0 when the user has no row yet.
func (l *Ledger) CheckDailyUsage(ctx context.Context, userID string, f Feature) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, selectCountQuery, userID, f.key, l.today()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check daily usage: %w", err)
	}
	return count, nil
}

// IncrementDailyUsage atomically adds one use and returns the new count.
func (l *Ledger) IncrementDailyUsage(ctx context.Context, userID string, f Feature) (int, error) {
	now := l.clock().UTC()
	var count int
	err := l.db.QueryRowContext(ctx, incrementQuery,
		userID, f.key, now.Format(dateLayout), database.FormatTime(now),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotRecorded, err)
	}
	metrics.UsageRecorded.WithLabelValues(f.key).Inc()
	return count, nil
}

// Allow reports how many uses remain before this one. limit <= 0 means
// unlimited and returns -1.
func (l *Ledger) Allow(ctx context.Context, userID string, f Feature, limit int) (int, error) {
	if limit <= 0 {
		return -1, nil
	}
	count, err := l.CheckDailyUsage(ctx, userID, f)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Str("feature", f.key).Msg("usage check failed, rejecting request")
		metrics.QuotaRejections.WithLabelValues(f.key, "unavailable").Inc()
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= limit {
		metrics.QuotaRejections.WithLabelValues(f.key, "limit").Inc()
		return 0, ErrLimitReached
	}
	return limit - count, nil
}
