package risk

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tokenpilot/internal/config"
)

// Progress reports schedule adherence against a linear growth trajectory.
type Progress struct {
	DaysElapsed   float64         `json:"days_elapsed"`
	DaysRemaining float64         `json:"days_remaining"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	ExpectedValue decimal.Decimal `json:"expected_value"`
	TargetValue   decimal.Decimal `json:"target_value"`
	OnTrack       bool            `json:"on_track"`
	// Compound daily growth rate still needed to reach the target in time.
	RequiredDailyGrowth float64 `json:"required_daily_growth"`
}

// Tracker derives progress metrics for a fixed capital-growth horizon.
type Tracker struct {
	InitialCapital decimal.Decimal
	TargetValue    decimal.Decimal
	HorizonDays    float64
	StartedAt      time.Time
}

func NewTracker(cfg config.PortfolioConfig, startedAt time.Time) *Tracker {
	horizon := float64(cfg.HorizonDays)
	if horizon <= 0 {
		horizon = 30
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Tracker{
		InitialCapital: decimal.NewFromFloat(cfg.InitialCapitalUSD),
		TargetValue:    decimal.NewFromFloat(cfg.TargetValueUSD),
		HorizonDays:    horizon,
		StartedAt:      startedAt,
	}
}

func (t *Tracker) Measure(currentValue decimal.Decimal, now time.Time) Progress {
	elapsed := now.Sub(t.StartedAt).Hours() / 24
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > t.HorizonDays {
		elapsed = t.HorizonDays
	}
	remaining := t.HorizonDays - elapsed

	frac := elapsed / t.HorizonDays
	expected := t.InitialCapital.Add(
		t.TargetValue.Sub(t.InitialCapital).Mul(decimal.NewFromFloat(frac)),
	)

	return Progress{
		DaysElapsed:         elapsed,
		DaysRemaining:       remaining,
		CurrentValue:        currentValue,
		ExpectedValue:       expected,
		TargetValue:         t.TargetValue,
		OnTrack:             currentValue.GreaterThanOrEqual(expected),
		RequiredDailyGrowth: requiredDailyGrowth(currentValue, t.TargetValue, remaining),
	}
}

func requiredDailyGrowth(current, target decimal.Decimal, daysRemaining float64) float64 {
	if daysRemaining <= 0 {
		return 0
	}
	if current.LessThanOrEqual(decimal.Zero) || target.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	ratio := target.InexactFloat64() / current.InexactFloat64()
	return math.Pow(ratio, 1/daysRemaining) - 1
}
