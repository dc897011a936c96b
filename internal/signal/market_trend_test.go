package signal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tokenpilot/internal/client/dexscreener"
	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
)

type stubScanner struct {
	pairs map[string][]dexscreener.Pair
	err   error
}

func (s *stubScanner) Search(ctx context.Context, query string) ([]dexscreener.Pair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pairs[query], nil
}

func pair(addr, priceUsd string, change24, volume24, liquidity float64, createdAt time.Time) dexscreener.Pair {
	p := dexscreener.Pair{
		PairAddress: addr + "-pair",
		PriceUsd:    priceUsd,
	}
	p.BaseToken.Address = addr
	p.BaseToken.Symbol = addr
	p.PriceChange.H24 = change24
	p.Volume.H24 = volume24
	p.Liquidity.Usd = liquidity
	if !createdAt.IsZero() {
		p.PairCreatedAt = createdAt.UnixMilli()
	}
	return p
}

func trendSource(sc MarketScanner, now time.Time) *MarketTrendSource {
	s := &MarketTrendSource{
		Scanner: sc,
		Config: config.TrendSourceConfig{
			Queries: []string{"SOL"},
		},
	}
	s.now = func() time.Time { return now }
	return s
}

func TestCollect_ScoresMomentumVolumeLiquidity(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-30 * 24 * time.Hour)
	sc := &stubScanner{pairs: map[string][]dexscreener.Pair{
		"SOL": {pair("tokA", "1.5", 25, 300_000, 600_000, created)},
	}}
	s := trendSource(sc, now)

	sigs, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("signals=%d want=1", len(sigs))
	}
	sig := sigs[0]
	// 0.5 + 0.15 (24h momentum) + 0.10 (volume) + 0.10 (liquidity) = 0.85.
	if math.Abs(sig.Confidence-0.85) > 1e-9 {
		t.Fatalf("confidence=%f want=0.85", sig.Confidence)
	}
	if sig.RiskLevel != models.RiskMedium {
		t.Fatalf("risk=%s want=MEDIUM for deep liquidity", sig.RiskLevel)
	}
	if sig.Direction != models.DirectionBuy {
		t.Fatalf("direction=%s want=BUY", sig.Direction)
	}
}

func TestCollect_ThinLiquidityIsVeryHighRisk(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-10 * 24 * time.Hour)
	sc := &stubScanner{pairs: map[string][]dexscreener.Pair{
		"SOL": {pair("tokThin", "0.001", 60, 2_000_000, 30_000, created)},
	}}
	s := trendSource(sc, now)

	sigs, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sigs[0].RiskLevel != models.RiskVeryHigh {
		t.Fatalf("risk=%s want=VERY_HIGH for thin liquidity", sigs[0].RiskLevel)
	}
}

func TestCollect_FreshPairIsVeryHighRisk(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sc := &stubScanner{pairs: map[string][]dexscreener.Pair{
		"SOL": {pair("tokNew", "0.01", 10, 100_000, 200_000, now.Add(-6*time.Hour))},
	}}
	s := trendSource(sc, now)

	sigs, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if sigs[0].RiskLevel != models.RiskVeryHigh {
		t.Fatalf("risk=%s want=VERY_HIGH for pair younger than a day", sigs[0].RiskLevel)
	}
}

func TestCollect_NegativeMomentumLowersConfidence(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-60 * 24 * time.Hour)
	sc := &stubScanner{pairs: map[string][]dexscreener.Pair{
		"SOL": {pair("tokDown", "2.0", -15, 10_000, 100_000, created)},
	}}
	s := trendSource(sc, now)

	sigs, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if math.Abs(sigs[0].Confidence-0.4) > 1e-9 {
		t.Fatalf("confidence=%f want=0.4", sigs[0].Confidence)
	}
}

func TestCollect_MinLiquidityFilterAndDedup(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-60 * 24 * time.Hour)
	sc := &stubScanner{pairs: map[string][]dexscreener.Pair{
		"SOL": {
			pair("tokA", "1.0", 5, 100_000, 80_000, created),
			pair("tokA", "1.0", 5, 100_000, 80_000, created),
			pair("tokTiny", "1.0", 5, 100_000, 5_000, created),
		},
	}}
	s := trendSource(sc, now)
	s.Config.MinLiquidityUSD = 10_000

	sigs, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(sigs) != 1 || sigs[0].TokenAddress != "tokA" {
		t.Fatalf("signals=%v want only tokA", sigs)
	}
}

func TestCollect_AllQueriesFailed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := trendSource(&stubScanner{err: errors.New("upstream 500")}, now)

	if _, err := s.Collect(context.Background()); err == nil {
		t.Fatalf("want error when every query fails")
	}
	if s.Health().Status != "down" {
		t.Fatalf("status=%s want=down", s.Health().Status)
	}
}
