package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
)

func onSchedule(value int64) Progress {
	v := decimal.NewFromInt(value)
	return Progress{CurrentValue: v, ExpectedValue: v}
}

func TestAmount_BaseCase(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{}}
	sig := models.Signal{Confidence: 0.8, RiskLevel: models.RiskHigh}

	amount := s.Amount(sig, decimal.NewFromInt(100), onSchedule(100))
	// 0.15 * 0.8 * 0.8 * 1.0 * 1.0 = 0.096
	want := decimal.NewFromFloat(9.6)
	if amount.Cmp(want) != 0 {
		t.Fatalf("amount=%s want=%s", amount.String(), want.String())
	}
}

func TestAmount_BehindScheduleSizesUp(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{}}
	sig := models.Signal{Confidence: 0.8, RiskLevel: models.RiskHigh}

	behind := Progress{
		CurrentValue:  decimal.NewFromInt(80),
		ExpectedValue: decimal.NewFromInt(100),
	}
	ahead := Progress{
		CurrentValue:  decimal.NewFromInt(120),
		ExpectedValue: decimal.NewFromInt(100),
	}
	base := s.Amount(sig, decimal.NewFromInt(100), onSchedule(100))
	if got := s.Amount(sig, decimal.NewFromInt(100), behind); got.Cmp(base.Mul(decimal.NewFromFloat(1.3))) != 0 {
		t.Fatalf("behind=%s want=%s", got.String(), base.Mul(decimal.NewFromFloat(1.3)).String())
	}
	if got := s.Amount(sig, decimal.NewFromInt(100), ahead); got.Cmp(base.Mul(decimal.NewFromFloat(0.7))) != 0 {
		t.Fatalf("ahead=%s want=%s", got.String(), base.Mul(decimal.NewFromFloat(0.7)).String())
	}
}

func TestAmount_TimeDecayFloored(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{}}
	sig := models.Signal{Confidence: 1.0, RiskLevel: models.RiskMedium}

	day0 := onSchedule(100)
	day3 := onSchedule(100)
	day3.DaysElapsed = 3
	day20 := onSchedule(100)
	day20.DaysElapsed = 20

	base := s.Amount(sig, decimal.NewFromInt(100), day0)
	if got := s.Amount(sig, decimal.NewFromInt(100), day3); got.Cmp(base.Mul(decimal.NewFromFloat(0.7))) != 0 {
		t.Fatalf("day3=%s want=%s", got.String(), base.Mul(decimal.NewFromFloat(0.7)).String())
	}
	// Decay bottoms out at 0.5 rather than reaching zero.
	if got := s.Amount(sig, decimal.NewFromInt(100), day20); got.Cmp(base.Mul(decimal.NewFromFloat(0.5))) != 0 {
		t.Fatalf("day20=%s want=%s", got.String(), base.Mul(decimal.NewFromFloat(0.5)).String())
	}
}

func TestAmount_CappedAtMaxPct(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{BasePct: 0.5}}
	sig := models.Signal{Confidence: 1.0, RiskLevel: models.RiskLow}

	amount := s.Amount(sig, decimal.NewFromInt(100), onSchedule(100))
	if amount.Cmp(decimal.NewFromInt(35)) != 0 {
		t.Fatalf("amount=%s want=35", amount.String())
	}
}

func TestAmount_RiskMultipliers(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{}}
	available := decimal.NewFromInt(1000)
	prog := onSchedule(1000)

	low := s.Amount(models.Signal{Confidence: 0.5, RiskLevel: models.RiskLow}, available, prog)
	veryHigh := s.Amount(models.Signal{Confidence: 0.5, RiskLevel: models.RiskVeryHigh}, available, prog)
	if low.LessThanOrEqual(veryHigh) {
		t.Fatalf("low-risk size %s should exceed very-high-risk size %s", low.String(), veryHigh.String())
	}
	if veryHigh.Cmp(decimal.NewFromInt(45)) != 0 {
		t.Fatalf("very_high=%s want=45", veryHigh.String())
	}
}

func TestAmount_ZeroCases(t *testing.T) {
	s := &Sizer{Config: config.SizingConfig{}}
	prog := onSchedule(100)

	if got := s.Amount(models.Signal{Confidence: 0, RiskLevel: models.RiskHigh}, decimal.NewFromInt(100), prog); !got.IsZero() {
		t.Fatalf("zero confidence sized %s", got.String())
	}
	if got := s.Amount(models.Signal{Confidence: 0.9, RiskLevel: models.RiskHigh}, decimal.Zero, prog); !got.IsZero() {
		t.Fatalf("zero capital sized %s", got.String())
	}
}
