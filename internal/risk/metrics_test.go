package risk

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokenpilot/internal/config"
)

func TestCheckLimits_MaxDrawdown(t *testing.T) {
	m := &MetricsTracker{Config: config.RiskConfig{MaxDrawdownPct: 0.2}}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(decimal.NewFromInt(1000), now)
	if breaches := m.CheckLimits(decimal.NewFromInt(900), now.Add(time.Hour)); len(breaches) != 0 {
		t.Fatalf("breaches=%v want none at 10%% drawdown", breaches)
	}
	breaches := m.CheckLimits(decimal.NewFromInt(700), now.Add(2*time.Hour))
	if len(breaches) != 1 || breaches[0] != "max_drawdown" {
		t.Fatalf("breaches=%v want [max_drawdown]", breaches)
	}
}

func TestCheckLimits_MaxDailyLoss(t *testing.T) {
	m := &MetricsTracker{Config: config.RiskConfig{MaxDailyLossPct: 0.1}}
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	m.Observe(decimal.NewFromInt(1000), now)
	breaches := m.CheckLimits(decimal.NewFromInt(850), now.Add(time.Hour))
	found := false
	for _, b := range breaches {
		if b == "max_daily_loss" {
			found = true
		}
	}
	if !found {
		t.Fatalf("breaches=%v want contains max_daily_loss", breaches)
	}

	// A new day resets the daily open, so the same value no longer breaches.
	nextDay := now.Add(24 * time.Hour)
	if breaches := m.CheckLimits(decimal.NewFromInt(850), nextDay); len(breaches) != 0 {
		t.Fatalf("breaches=%v want none after daily reset", breaches)
	}
}

func TestReport_Fields(t *testing.T) {
	m := &MetricsTracker{Config: config.RiskConfig{}}
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	m.Observe(decimal.NewFromInt(1000), now)
	m.Observe(decimal.NewFromInt(1200), now.Add(time.Hour))

	report := m.Report(decimal.NewFromInt(900), decimal.NewFromInt(300), now.Add(2*time.Hour))
	if report.AllTimeHigh.Cmp(decimal.NewFromInt(1200)) != 0 {
		t.Fatalf("all_time_high=%s want=1200", report.AllTimeHigh.String())
	}
	if math.Abs(report.CurrentDrawdownPct-0.25) > 1e-9 {
		t.Fatalf("drawdown=%f want=0.25", report.CurrentDrawdownPct)
	}
	if math.Abs(report.DailyPnLPct-(-0.1)) > 1e-9 {
		t.Fatalf("daily_pnl=%f want=-0.1", report.DailyPnLPct)
	}
	// 900 total with 300 in cash leaves two thirds deployed.
	if math.Abs(report.ExposurePct-2.0/3.0) > 1e-9 {
		t.Fatalf("exposure=%f want=%f", report.ExposurePct, 2.0/3.0)
	}
	if report.MaxDrawdownPct < 0.25 {
		t.Fatalf("max_drawdown=%f want>=0.25", report.MaxDrawdownPct)
	}
}
