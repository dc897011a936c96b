package risk

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
)

var riskMultipliers = map[string]float64{
	models.RiskLow:      1.2,
	models.RiskMedium:   1.0,
	models.RiskHigh:     0.8,
	models.RiskVeryHigh: 0.6,
}

// Sizer converts a signal and the current portfolio state into a USD trade amount.
type Sizer struct {
	Config config.SizingConfig
	Logger *zap.Logger
}

// Amount applies the multiplicative sizing formula:
// available × clamp(base × risk × confidence × decay × progress, 0, max).
func (s *Sizer) Amount(sig models.Signal, available decimal.Decimal, prog Progress) decimal.Decimal {
	if sig.Confidence <= 0 || available.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	base := s.basePct()
	maxPct := s.maxPct()

	mult, ok := riskMultipliers[sig.RiskLevel]
	if !ok {
		mult = 1.0
	}

	pct := base * mult * sig.Confidence * s.decay(prog.DaysElapsed) * progressMultiplier(prog)
	if pct < 0 {
		pct = 0
	}
	if pct > maxPct {
		pct = maxPct
	}

	amount := available.Mul(decimal.NewFromFloat(pct))
	if s.Logger != nil {
		s.Logger.Debug("position sized",
			zap.String("token", sig.TokenAddress),
			zap.Float64("confidence", sig.Confidence),
			zap.String("risk", sig.RiskLevel),
			zap.Float64("pct", pct),
			zap.String("amount_usd", amount.StringFixed(2)),
		)
	}
	return amount
}

// decay shrinks aggressiveness over the horizon, floored so late-cycle
// signals can still be acted on.
func (s *Sizer) decay(daysElapsed float64) float64 {
	perDay := s.Config.DecayPerDay
	if perDay <= 0 {
		perDay = 0.1
	}
	floor := s.Config.DecayFloor
	if floor <= 0 {
		floor = 0.5
	}
	d := 1 - perDay*daysElapsed
	if d < floor {
		return floor
	}
	return d
}

func progressMultiplier(prog Progress) float64 {
	switch prog.CurrentValue.Cmp(prog.ExpectedValue) {
	case -1:
		// Behind schedule: push harder.
		return 1.3
	case 1:
		// Ahead of schedule: protect gains.
		return 0.7
	default:
		return 1.0
	}
}

func (s *Sizer) basePct() float64 {
	if s.Config.BasePct > 0 {
		return s.Config.BasePct
	}
	return 0.15
}

func (s *Sizer) maxPct() float64 {
	if s.Config.MaxPositionPct > 0 {
		return s.Config.MaxPositionPct
	}
	return 0.35
}
