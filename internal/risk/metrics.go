package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/config"
)

// MetricsTracker maintains drawdown state across observed portfolio values.
type MetricsTracker struct {
	Config config.RiskConfig
	Logger *zap.Logger

	mu          sync.Mutex
	allTimeHigh decimal.Decimal
	dailyHigh   decimal.Decimal
	dailyOpen   decimal.Decimal
	day         time.Time
	maxDrawdown float64
}

type Report struct {
	AllTimeHigh        decimal.Decimal `json:"all_time_high"`
	DailyHigh          decimal.Decimal `json:"daily_high"`
	CurrentDrawdownPct float64         `json:"current_drawdown_pct"`
	MaxDrawdownPct     float64         `json:"max_drawdown_pct"`
	DailyPnLPct        float64         `json:"daily_pnl_pct"`
	ExposurePct        float64         `json:"exposure_pct"`
	LimitBreaches      []string        `json:"limit_breaches"`
}

// Observe folds a portfolio valuation into the high-water marks.
func (m *MetricsTracker) Observe(totalValue decimal.Decimal, now time.Time) {
	if m == nil || totalValue.LessThanOrEqual(decimal.Zero) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(m.day) {
		m.day = day
		m.dailyOpen = totalValue
		m.dailyHigh = totalValue
	}
	if totalValue.GreaterThan(m.dailyHigh) {
		m.dailyHigh = totalValue
	}
	if totalValue.GreaterThan(m.allTimeHigh) {
		m.allTimeHigh = totalValue
	}

	dd := drawdown(totalValue, m.allTimeHigh)
	if dd > m.maxDrawdown {
		m.maxDrawdown = dd
	}
}

// CheckLimits reports which configured loss limits the current value breaches.
func (m *MetricsTracker) CheckLimits(totalValue decimal.Decimal, now time.Time) []string {
	if m == nil {
		return nil
	}
	m.Observe(totalValue, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	var breaches []string
	if m.Config.MaxDrawdownPct > 0 && drawdown(totalValue, m.allTimeHigh) > m.Config.MaxDrawdownPct {
		breaches = append(breaches, "max_drawdown")
	}
	if m.Config.MaxDailyLossPct > 0 && m.dailyOpen.GreaterThan(decimal.Zero) {
		loss := m.dailyOpen.Sub(totalValue).Div(m.dailyOpen).InexactFloat64()
		if loss > m.Config.MaxDailyLossPct {
			breaches = append(breaches, "max_daily_loss")
		}
	}
	if len(breaches) > 0 && m.Logger != nil {
		m.Logger.Warn("risk limits breached",
			zap.Strings("breaches", breaches),
			zap.String("total_value", totalValue.StringFixed(2)),
		)
	}
	return breaches
}

func (m *MetricsTracker) Report(totalValue, availableCapital decimal.Decimal, now time.Time) Report {
	breaches := m.CheckLimits(totalValue, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	dailyPnL := 0.0
	if m.dailyOpen.GreaterThan(decimal.Zero) {
		dailyPnL = totalValue.Sub(m.dailyOpen).Div(m.dailyOpen).InexactFloat64()
	}
	exposure := 0.0
	if totalValue.GreaterThan(decimal.Zero) {
		exposure = totalValue.Sub(availableCapital).Div(totalValue).InexactFloat64()
		if exposure < 0 {
			exposure = 0
		}
	}
	return Report{
		AllTimeHigh:        m.allTimeHigh,
		DailyHigh:          m.dailyHigh,
		CurrentDrawdownPct: drawdown(totalValue, m.allTimeHigh),
		MaxDrawdownPct:     m.maxDrawdown,
		DailyPnLPct:        dailyPnL,
		ExposurePct:        exposure,
		LimitBreaches:      breaches,
	}
}

func drawdown(value, high decimal.Decimal) float64 {
	if high.LessThanOrEqual(decimal.Zero) || value.GreaterThanOrEqual(high) {
		return 0
	}
	return high.Sub(value).Div(high).InexactFloat64()
}
