package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/client/dexscreener"
	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
	"tokenpilot/internal/repository"
)

// MarketScanner is the slice of the market-data provider this source needs.
type MarketScanner interface {
	Search(ctx context.Context, query string) ([]dexscreener.Pair, error)
}

// MarketTrendSource scores scanned candidates on 24h momentum, volume and liquidity.
type MarketTrendSource struct {
	Scanner MarketScanner
	Repo    repository.Repository
	Config  config.TrendSourceConfig
	Logger  *zap.Logger

	mu        sync.Mutex
	lastPoll  *time.Time
	lastError *string
	status    string

	now func() time.Time
}

func (s *MarketTrendSource) Name() string { return "market_trend" }

func (s *MarketTrendSource) Health() HealthStatus {
	if s == nil {
		return HealthStatus{Status: "unknown"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	if strings.TrimSpace(status) == "" {
		status = "unknown"
	}
	return HealthStatus{
		Status:     status,
		LastPollAt: s.lastPoll,
		LastError:  s.lastError,
	}
}

func (s *MarketTrendSource) Collect(ctx context.Context) ([]models.Signal, error) {
	if s == nil || s.Scanner == nil {
		return nil, fmt.Errorf("market scanner unavailable")
	}
	now := s.clock()

	queries := s.Config.Queries
	if len(queries) == 0 {
		queries = []string{"SOL"}
	}
	maxTokens := s.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 20
	}

	tokens := make([]models.Token, 0, maxTokens)
	seen := map[string]struct{}{}
	failed := 0
	var lastErr string
	for _, q := range queries {
		pairs, err := s.Scanner.Search(ctx, q)
		if err != nil {
			failed++
			lastErr = err.Error()
			if s.Logger != nil {
				s.Logger.Warn("market scan failed", zap.String("query", q), zap.Error(err))
			}
			continue
		}
		for _, p := range pairs {
			if len(tokens) >= maxTokens {
				break
			}
			tok, ok := tokenFromPair(p, now)
			if !ok {
				continue
			}
			if _, dup := seen[tok.Address]; dup {
				continue
			}
			if s.Config.MinLiquidityUSD > 0 && tok.LiquidityUSD < s.Config.MinLiquidityUSD {
				continue
			}
			seen[tok.Address] = struct{}{}
			tokens = append(tokens, tok)
		}
	}

	if failed == len(queries) {
		s.setHealth(now, "down", strPtr(lastErr))
		return nil, fmt.Errorf("all market scan queries failed: %s", lastErr)
	}
	if failed > 0 {
		s.setHealth(now, "degraded", strPtr(lastErr))
	} else {
		s.setHealth(now, "healthy", nil)
	}

	out := make([]models.Signal, 0, len(tokens))
	for _, tok := range tokens {
		if s.Repo != nil {
			t := tok
			if err := s.Repo.UpsertToken(ctx, &t); err != nil && s.Logger != nil {
				s.Logger.Warn("token upsert failed", zap.String("token", tok.Address), zap.Error(err))
			}
		}
		out = append(out, s.signalFromToken(tok, now))
	}
	return out, nil
}

func tokenFromPair(p dexscreener.Pair, now time.Time) (models.Token, bool) {
	addr := strings.TrimSpace(p.BaseToken.Address)
	if addr == "" {
		return models.Token{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(p.PriceUsd))
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return models.Token{}, false
	}
	tok := models.Token{
		Address:      addr,
		Symbol:       strings.TrimSpace(p.BaseToken.Symbol),
		Name:         strings.TrimSpace(p.BaseToken.Name),
		PriceUSD:     price,
		Change24hPct: p.PriceChange.H24,
		Volume24hUSD: p.Volume.H24,
		LiquidityUSD: p.Liquidity.Usd,
		LastSeenAt:   now,
	}
	if p.PairCreatedAt > 0 {
		created := time.UnixMilli(p.PairCreatedAt).UTC()
		tok.PairCreatedAt = &created
	}
	return tok, true
}

func (s *MarketTrendSource) signalFromToken(tok models.Token, now time.Time) models.Signal {
	confidence, risk := scoreToken(tok, now)

	targetPct := s.Config.TargetPct
	if targetPct <= 0 {
		targetPct = 0.20
	}
	stopPct := s.Config.StopPct
	if stopPct <= 0 {
		stopPct = 0.10
	}

	payload, _ := json.Marshal(map[string]any{
		"change_24h_pct": tok.Change24hPct,
		"volume_24h_usd": tok.Volume24hUSD,
		"liquidity_usd":  tok.LiquidityUSD,
	})
	return models.Signal{
		Source:       s.Name(),
		TokenAddress: tok.Address,
		TokenSymbol:  tok.Symbol,
		Direction:    models.DirectionBuy,
		Confidence:   confidence,
		RiskLevel:    risk,
		EntryPrice:   tok.PriceUSD,
		TargetPrice:  tok.PriceUSD.Mul(decimal.NewFromFloat(1 + targetPct)),
		StopPrice:    tok.PriceUSD.Mul(decimal.NewFromFloat(1 - stopPct)),
		Reasoning: fmt.Sprintf("24h %+.1f%%, volume $%.0f, liquidity $%.0f",
			tok.Change24hPct, tok.Volume24hUSD, tok.LiquidityUSD),
		Metadata:  payload,
		EmittedAt: now,
	}
}

// scoreToken accumulates bounded confidence increments from bucketed market
// indicators and derives the coarse risk level.
func scoreToken(tok models.Token, now time.Time) (float64, string) {
	confidence := 0.5

	switch {
	case tok.Change24hPct >= 50:
		confidence += 0.20
	case tok.Change24hPct >= 20:
		confidence += 0.15
	case tok.Change24hPct >= 10:
		confidence += 0.10
	case tok.Change24hPct <= -10:
		confidence -= 0.10
	}

	switch {
	case tok.Volume24hUSD >= 1_000_000:
		confidence += 0.15
	case tok.Volume24hUSD >= 250_000:
		confidence += 0.10
	case tok.Volume24hUSD >= 50_000:
		confidence += 0.05
	}

	if tok.LiquidityUSD >= 500_000 {
		confidence += 0.10
	}

	risk := models.RiskHigh
	age := tok.Age(now)
	switch {
	case tok.LiquidityUSD < 50_000 || (age > 0 && age < 24*time.Hour):
		risk = models.RiskVeryHigh
	case tok.Change24hPct <= -10:
		risk = models.RiskHigh
	case tok.LiquidityUSD > 500_000:
		risk = models.RiskMedium
	}

	return clamp01(confidence), risk
}

func (s *MarketTrendSource) setHealth(ts time.Time, status string, errStr *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPoll = &ts
	s.status = status
	s.lastError = errStr
}

func (s *MarketTrendSource) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
