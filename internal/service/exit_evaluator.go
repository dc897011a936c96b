package service

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
)

const (
	ExitReasonTakeProfit = "take_profit"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTimeExit   = "time_exit"
)

// ExitRecommendation pairs a holding with the first exit rule it triggered.
type ExitRecommendation struct {
	Holding models.Holding `json:"holding"`
	Reason  string         `json:"reason"`
}

// ExitEvaluator scans open holdings against the exit rules. Rules apply in
// strict priority order: take-profit, then stop-loss, then time-based; the
// first match wins. Evaluation never mutates a holding.
type ExitEvaluator struct {
	Config config.ExitConfig
	Logger *zap.Logger
}

func NewExitEvaluator(cfg config.ExitConfig, logger *zap.Logger) *ExitEvaluator {
	return &ExitEvaluator{Config: cfg, Logger: logger}
}

func (e *ExitEvaluator) Evaluate(holdings []models.Holding, now time.Time) []ExitRecommendation {
	if e == nil {
		return nil
	}
	var out []ExitRecommendation
	for i := range holdings {
		h := holdings[i]
		if h.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		reason, ok := e.check(h, now)
		if !ok {
			continue
		}
		out = append(out, ExitRecommendation{Holding: h, Reason: reason})
		if e.Logger != nil {
			e.Logger.Info("exit triggered",
				zap.String("token", h.TokenAddress),
				zap.String("reason", reason),
				zap.String("gain", gainRatio(h).StringFixed(4)),
			)
		}
	}
	return out
}

func (e *ExitEvaluator) check(h models.Holding, now time.Time) (string, bool) {
	gain := gainRatio(h)
	if gain.GreaterThanOrEqual(decimal.NewFromFloat(e.takeProfitPct())) {
		return ExitReasonTakeProfit, true
	}
	if gain.LessThanOrEqual(decimal.NewFromFloat(-e.stopLossPct())) {
		return ExitReasonStopLoss, true
	}
	if now.Sub(h.OpenedAt) > e.maxHold() && gain.LessThan(decimal.NewFromFloat(e.minGainPct())) {
		return ExitReasonTimeExit, true
	}
	return "", false
}

// gainRatio is the fractional price move against the average entry.
func gainRatio(h models.Holding) decimal.Decimal {
	if h.AvgEntryPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return h.CurrentPrice.Sub(h.AvgEntryPrice).Div(h.AvgEntryPrice)
}

func (e *ExitEvaluator) takeProfitPct() float64 {
	if e.Config.TakeProfitPct > 0 {
		return e.Config.TakeProfitPct
	}
	return 0.30
}

func (e *ExitEvaluator) stopLossPct() float64 {
	if e.Config.StopLossPct > 0 {
		return e.Config.StopLossPct
	}
	return 0.15
}

func (e *ExitEvaluator) maxHold() time.Duration {
	if e.Config.MaxHold > 0 {
		return e.Config.MaxHold
	}
	return 48 * time.Hour
}

func (e *ExitEvaluator) minGainPct() float64 {
	if e.Config.MinGainPct > 0 {
		return e.Config.MinGainPct
	}
	return 0.05
}
