package app

import (
	"context"
	"time"

	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/usage"
	"github.com/neuroti/Psi/internal/wellness"
)

// biometricsLookback bounds how old a stored reading may be to stand in for
// missing request values.
const biometricsLookback = 24 * time.Hour

// WellnessRequest carries optional wearable readings. Missing values come
// from the user's latest reading.
type WellnessRequest struct {
	UserID      string   `validate:"required"`
	Variability *float64 `validate:"omitnil,gte=10,lte=200"`
	Rate        *float64 `validate:"omitnil,gte=30,lte=220"`
}

// WellnessReport is the result of CheckWellness.
type WellnessReport struct {
	Emotion         emotion.Reading          `json:"emotion"`
	WellnessScore   int                      `json:"wellness_score"`
	Recommendations wellness.Recommendations `json:"recommendations"`
	Tip             string                   `json:"daily_tip"`
	QuotaRemaining  int                      `json:"quota_remaining"`
}

// CheckWellness classifies the user's current state and returns a wellness
// score with recommendations.
func (a *App) CheckWellness(ctx context.Context, req WellnessRequest) (*WellnessReport, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	remaining, err := a.allow(ctx, req.UserID, usage.WellnessCheck)
	if err != nil {
		return nil, err
	}

	now := a.now()
	hrv, hr, err := a.currentBiometrics(ctx, req, now)
	if err != nil {
		return nil, storageError(err)
	}

	reading := emotion.Classify(hrv, hr, emotion.DefaultCoherence)
	score := wellness.Score(hrv, hr, float64(reading.Score))

	report := &WellnessReport{
		Emotion:         reading,
		WellnessScore:   score,
		Recommendations: wellness.Recommend(reading.Label, score),
		Tip:             wellness.DailyTip(reading.Label, now.Day()),
		QuotaRemaining:  afterUse(remaining),
	}

	err = a.readings.Save(ctx, emotion.StoredReading{
		UserID:      req.UserID,
		Variability: hrv,
		Rate:        hr,
		Coherence:   reading.Coherence,
		Label:       reading.Label,
		Score:       reading.Score,
		RecordedAt:  now,
	})
	if err != nil {
		return nil, storageError(err)
	}

	if err := a.record(ctx, req.UserID, usage.WellnessCheck); err != nil {
		logging.Error().Err(err).
			Str("user_id", req.UserID).
			Str("emotion", string(reading.Label)).
			Int("wellness_score", score).
			Msg("wellness check completed but usage was not recorded")
		return nil, err
	}
	return report, nil
}

// currentBiometrics fills missing request values from the latest reading of
// the lookback window, then from the defaults.
func (a *App) currentBiometrics(ctx context.Context, req WellnessRequest, now time.Time) (float64, float64, error) {
	if hrv, hr, ok := resolveBiometrics(req.Variability, req.Rate); ok {
		return hrv, hr, nil
	}

	hrv, hr := wellness.DefaultVariability, wellness.DefaultRate
	latest, err := a.readings.Latest(ctx, req.UserID, now.Add(-biometricsLookback))
	if err != nil {
		return 0, 0, err
	}
	if latest != nil {
		hrv, hr = latest.Variability, latest.Rate
	}

	if req.Variability != nil {
		hrv = *req.Variability
	}
	if req.Rate != nil {
		hr = *req.Rate
	}
	return hrv, hr, nil
}
