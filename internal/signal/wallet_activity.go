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

	"tokenpilot/internal/client/solscan"
	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
	"tokenpilot/internal/repository"
)

// WalletFeed is the slice of the wallet-activity provider this source needs.
type WalletFeed interface {
	AccountActivities(ctx context.Context, address string, limit int) ([]solscan.DefiActivity, error)
}

// WalletActivitySource turns recent buys of well-performing tracked wallets into BUY signals.
type WalletActivitySource struct {
	Feed   WalletFeed
	Repo   repository.Repository
	Config config.WalletSourceConfig
	Logger *zap.Logger

	mu        sync.Mutex
	lastPoll  *time.Time
	lastError *string
	status    string

	// Factored for tests.
	now func() time.Time
}

func (s *WalletActivitySource) Name() string { return "wallet_activity" }

func (s *WalletActivitySource) Health() HealthStatus {
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

func (s *WalletActivitySource) Collect(ctx context.Context) ([]models.Signal, error) {
	if s == nil || s.Feed == nil {
		return nil, fmt.Errorf("wallet feed unavailable")
	}
	now := s.clock()

	wallets := s.wallets(ctx)
	if len(wallets) == 0 {
		s.setHealth(now, "healthy", nil)
		return nil, nil
	}

	limit := s.Config.TxLimit
	if limit <= 0 {
		limit = 50
	}
	minRate := s.Config.MinSuccessRate
	if minRate <= 0 {
		minRate = 0.5
	}
	recency := s.Config.RecencyWindow
	if recency <= 0 {
		recency = 24 * time.Hour
	}
	rating := s.Config.RatingWindow
	if rating <= 0 {
		rating = 7 * 24 * time.Hour
	}

	var out []models.Signal
	failed := 0
	var lastErr string
	for _, w := range wallets {
		activities, err := s.Feed.AccountActivities(ctx, w.Address, limit)
		if err != nil {
			failed++
			lastErr = err.Error()
			if s.Logger != nil {
				s.Logger.Warn("wallet activity fetch failed",
					zap.String("wallet", w.Address),
					zap.Error(err),
				)
			}
			continue
		}
		rate, total := successRate(activities, now.Add(-rating))
		s.recordWalletRating(ctx, w, rate, total, now)
		if total == 0 || rate < minRate {
			// Cold or underperforming wallet: skipped this cycle, not deregistered.
			continue
		}
		out = append(out, s.signalsFromBuys(w, activities, rate, now, recency)...)
	}

	if failed == len(wallets) {
		s.setHealth(now, "down", strPtr(lastErr))
	} else if failed > 0 {
		s.setHealth(now, "degraded", strPtr(lastErr))
	} else {
		s.setHealth(now, "healthy", nil)
	}
	return out, nil
}

// successRate is the share of successful transactions inside the rating window.
func successRate(activities []solscan.DefiActivity, since time.Time) (float64, int) {
	total := 0
	ok := 0
	for _, a := range activities {
		ts := time.Unix(a.BlockTime, 0).UTC()
		if ts.Before(since) {
			continue
		}
		total++
		if a.Success {
			ok++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(ok) / float64(total), total
}

func (s *WalletActivitySource) signalsFromBuys(w models.TrackedWallet, activities []solscan.DefiActivity, rate float64, now time.Time, recency time.Duration) []models.Signal {
	confidence := 0.5 + rate/2
	if confidence > 0.95 {
		confidence = 0.95
	}
	targetPct := s.Config.TargetPct
	if targetPct <= 0 {
		targetPct = 0.25
	}
	stopPct := s.Config.StopPct
	if stopPct <= 0 {
		stopPct = 0.12
	}

	var out []models.Signal
	seen := map[string]struct{}{}
	for _, a := range activities {
		if a.ActivityType != solscan.ActivityTokenBuy || !a.Success {
			continue
		}
		ts := time.Unix(a.BlockTime, 0).UTC()
		if now.Sub(ts) > recency {
			continue
		}
		addr := strings.TrimSpace(a.TokenAddress)
		if addr == "" || a.PriceUSD <= 0 {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}

		entry := decimal.NewFromFloat(a.PriceUSD)
		payload, _ := json.Marshal(map[string]any{
			"wallet":     w.Address,
			"tx_hash":    a.TxHash,
			"amount_usd": a.AmountUSD,
		})
		out = append(out, models.Signal{
			Source:       s.Name(),
			TokenAddress: addr,
			TokenSymbol:  strings.TrimSpace(a.TokenSymbol),
			Direction:    models.DirectionBuy,
			Confidence:   clamp01(confidence),
			RiskLevel:    models.RiskHigh,
			EntryPrice:   entry,
			TargetPrice:  entry.Mul(decimal.NewFromFloat(1 + targetPct)),
			StopPrice:    entry.Mul(decimal.NewFromFloat(1 - stopPct)),
			Reasoning:    fmt.Sprintf("tracked wallet %s bought (7d success %.0f%%)", shortAddr(w.Address), rate*100),
			Metadata:     payload,
			EmittedAt:    now,
		})
	}
	return out
}

func (s *WalletActivitySource) wallets(ctx context.Context) []models.TrackedWallet {
	if s.Repo != nil {
		items, err := s.Repo.ListTrackedWallets(ctx, true)
		if err == nil && len(items) > 0 {
			return items
		}
	}
	out := make([]models.TrackedWallet, 0, len(s.Config.Addresses))
	for _, addr := range s.Config.Addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, models.TrackedWallet{Address: addr, Enabled: true})
	}
	return out
}

func (s *WalletActivitySource) recordWalletRating(ctx context.Context, w models.TrackedWallet, rate float64, total int, now time.Time) {
	if s.Repo == nil {
		return
	}
	w.SuccessRate7d = rate
	w.TxCount7d = total
	w.LastEvaluatedAt = &now
	if err := s.Repo.UpsertTrackedWallet(ctx, &w); err != nil && s.Logger != nil {
		s.Logger.Warn("tracked wallet upsert failed", zap.String("wallet", w.Address), zap.Error(err))
	}
}

func (s *WalletActivitySource) setHealth(ts time.Time, status string, errStr *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPoll = &ts
	s.status = status
	s.lastError = errStr
}

func (s *WalletActivitySource) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}
