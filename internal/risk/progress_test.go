package risk

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokenpilot/internal/config"
)

func testTracker(start time.Time) *Tracker {
	return NewTracker(config.PortfolioConfig{
		InitialCapitalUSD: 100,
		TargetValueUSD:    1000,
		HorizonDays:       30,
	}, start)
}

func TestMeasure_Midway(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tracker := testTracker(start)

	prog := tracker.Measure(decimal.NewFromInt(400), start.Add(15*24*time.Hour))
	if prog.DaysElapsed != 15 {
		t.Fatalf("days_elapsed=%f want=15", prog.DaysElapsed)
	}
	if prog.DaysRemaining != 15 {
		t.Fatalf("days_remaining=%f want=15", prog.DaysRemaining)
	}
	// Linear trajectory: 100 + (1000-100)*0.5 = 550.
	if prog.ExpectedValue.Cmp(decimal.NewFromInt(550)) != 0 {
		t.Fatalf("expected=%s want=550", prog.ExpectedValue.String())
	}
	if prog.OnTrack {
		t.Fatalf("400 against 550 expected should be off track")
	}
	want := math.Pow(1000.0/400.0, 1.0/15.0) - 1
	if math.Abs(prog.RequiredDailyGrowth-want) > 1e-9 {
		t.Fatalf("required_growth=%f want=%f", prog.RequiredDailyGrowth, want)
	}
}

func TestMeasure_OnTrackAtStart(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tracker := testTracker(start)

	prog := tracker.Measure(decimal.NewFromInt(100), start)
	if !prog.OnTrack {
		t.Fatalf("initial capital at start should be on track")
	}
	if prog.DaysElapsed != 0 {
		t.Fatalf("days_elapsed=%f want=0", prog.DaysElapsed)
	}
}

func TestMeasure_ClampedPastHorizon(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tracker := testTracker(start)

	prog := tracker.Measure(decimal.NewFromInt(500), start.Add(45*24*time.Hour))
	if prog.DaysElapsed != 30 {
		t.Fatalf("days_elapsed=%f want=30", prog.DaysElapsed)
	}
	if prog.DaysRemaining != 0 {
		t.Fatalf("days_remaining=%f want=0", prog.DaysRemaining)
	}
	if prog.RequiredDailyGrowth != 0 {
		t.Fatalf("required_growth=%f want=0 when no days remain", prog.RequiredDailyGrowth)
	}
	if prog.ExpectedValue.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("expected=%s want=1000", prog.ExpectedValue.String())
	}
}

func TestRequiredDailyGrowth_NonPositiveValue(t *testing.T) {
	if got := requiredDailyGrowth(decimal.Zero, decimal.NewFromInt(1000), 10); got != 0 {
		t.Fatalf("growth=%f want=0 for zero current value", got)
	}
}
