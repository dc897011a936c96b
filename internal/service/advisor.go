package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
	"tokenpilot/internal/portfolio"
	"tokenpilot/internal/repository"
	"tokenpilot/internal/risk"
	"tokenpilot/internal/signal"
)

// PriceOracle resolves a token's current USD price.
type PriceOracle interface {
	Price(ctx context.Context, tokenAddress string) (decimal.Decimal, error)
}

// Exchange executes sized orders and reports fills.
type Exchange interface {
	Buy(ctx context.Context, tokenAddress string, amountUSD decimal.Decimal) (models.Trade, error)
	Sell(ctx context.Context, tokenAddress string, quantity decimal.Decimal) (models.Trade, error)
}

// BuyCandidate is an actionable buy signal with its computed position size.
type BuyCandidate struct {
	Signal  models.Signal   `json:"signal"`
	SizeUSD decimal.Decimal `json:"size_usd"`
}

// RecommendedActions is the single read surface combining portfolio state,
// pending exits, sized buy candidates and goal progress.
type RecommendedActions struct {
	Portfolio   portfolio.Snapshot   `json:"portfolio"`
	Sells       []ExitRecommendation `json:"sell_recommendations"`
	Buys        []BuyCandidate       `json:"buy_candidates"`
	Progress    risk.Progress        `json:"progress"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Advisor orchestrates the decision cycle: price refresh, exit evaluation and
// execution, signal aggregation, sizing and buy execution.
type Advisor struct {
	Aggregator *signal.Aggregator
	Ledger     *portfolio.Ledger
	Sizer      *risk.Sizer
	Tracker    *risk.Tracker
	Exits      *ExitEvaluator
	Metrics    *risk.MetricsTracker
	Oracle     PriceOracle
	Exchange   Exchange
	Repo       repository.Repository
	Logger     *zap.Logger
	Sizing     config.SizingConfig

	mu  sync.Mutex
	now func() time.Time
}

func NewAdvisor(
	agg *signal.Aggregator,
	ledger *portfolio.Ledger,
	sizer *risk.Sizer,
	tracker *risk.Tracker,
	exits *ExitEvaluator,
	metrics *risk.MetricsTracker,
	oracle PriceOracle,
	exchange Exchange,
	repo repository.Repository,
	logger *zap.Logger,
	sizing config.SizingConfig,
) *Advisor {
	return &Advisor{
		Aggregator: agg,
		Ledger:     ledger,
		Sizer:      sizer,
		Tracker:    tracker,
		Exits:      exits,
		Metrics:    metrics,
		Oracle:     oracle,
		Exchange:   exchange,
		Repo:       repo,
		Logger:     logger,
		Sizing:     sizing,
	}
}

// RunCycle executes one full decision cycle. One failing holding, signal or
// execution never aborts the rest of the cycle.
func (a *Advisor) RunCycle(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock()

	a.refreshPricesLocked(ctx)
	a.executeExitsLocked(ctx, now)

	signals := a.Aggregator.Signals(ctx)

	snap := a.Ledger.Snapshot()
	prog := a.Tracker.Measure(snap.TotalValue, now)
	var breaches []string
	if a.Metrics != nil {
		a.Metrics.Observe(snap.TotalValue, now)
		breaches = a.Metrics.CheckLimits(snap.TotalValue, now)
	}
	if len(breaches) > 0 {
		a.Logger.Warn("risk limits breached, skipping new entries",
			zap.Strings("breaches", breaches))
		return nil
	}

	bought := 0
	for _, sig := range signals {
		if err := a.executeBuy(ctx, sig, prog); err != nil {
			continue
		}
		bought++
	}
	a.Logger.Info("cycle complete",
		zap.Int("signals", len(signals)),
		zap.Int("buys", bought),
		zap.String("total_value", snap.TotalValue.StringFixed(2)),
	)
	return nil
}

// GetRecommendedActions builds the combined read view without mutating state
// beyond the aggregator's signal cache.
func (a *Advisor) GetRecommendedActions(ctx context.Context) RecommendedActions {
	now := a.clock()
	snap := a.Ledger.Snapshot()
	prog := a.Tracker.Measure(snap.TotalValue, now)

	sells := a.Exits.Evaluate(snap.Holdings, now)

	var buys []BuyCandidate
	available := a.Ledger.AvailableCapital()
	for _, sig := range a.Aggregator.Signals(ctx) {
		amount, ok := a.sizeSignal(sig, available, prog)
		if !ok {
			continue
		}
		buys = append(buys, BuyCandidate{Signal: sig, SizeUSD: amount})
	}

	return RecommendedActions{
		Portfolio:   snap,
		Sells:       sells,
		Buys:        buys,
		Progress:    prog,
		GeneratedAt: now,
	}
}

// RefreshPrices updates holding valuations from the oracle. Cron entrypoint.
func (a *Advisor) RefreshPrices(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshPricesLocked(ctx)
}

// SnapshotPortfolio persists an hourly portfolio snapshot row.
func (a *Advisor) SnapshotPortfolio(ctx context.Context) error {
	if a.Repo == nil {
		return nil
	}
	snap := a.Ledger.SnapshotModel(a.clock())
	if a.Metrics != nil {
		a.Metrics.Observe(snap.TotalValue, a.clock())
	}
	if err := a.Repo.InsertPortfolioSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (a *Advisor) refreshPricesLocked(ctx context.Context) {
	if a.Oracle == nil {
		return
	}
	a.Ledger.ValueHoldings(ctx, a.Oracle.Price)
}

func (a *Advisor) executeExitsLocked(ctx context.Context, now time.Time) {
	if a.Exchange == nil {
		return
	}
	for _, rec := range a.Exits.Evaluate(a.Ledger.Holdings(), now) {
		h := rec.Holding
		trade, err := a.Exchange.Sell(ctx, h.TokenAddress, h.Quantity)
		if err != nil {
			a.Logger.Warn("exit execution failed",
				zap.String("token", h.TokenAddress),
				zap.String("reason", rec.Reason),
				zap.Error(err))
			continue
		}
		trade.ExitReason = rec.Reason
		if trade.TokenSymbol == "" {
			trade.TokenSymbol = h.TokenSymbol
		}
		if err := a.Ledger.RecordSell(ctx, trade); err != nil {
			a.Logger.Error("sell ledger update failed",
				zap.String("token", h.TokenAddress), zap.Error(err))
		}
	}
}

func (a *Advisor) executeBuy(ctx context.Context, sig models.Signal, prog risk.Progress) error {
	amount, ok := a.sizeSignal(sig, a.Ledger.AvailableCapital(), prog)
	if !ok {
		return fmt.Errorf("signal filtered")
	}
	if err := a.Ledger.Reserve(amount); err != nil {
		a.Logger.Warn("capital reservation failed",
			zap.String("token", sig.TokenAddress),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		return err
	}
	trade, err := a.Exchange.Buy(ctx, sig.TokenAddress, amount)
	if err != nil {
		a.Ledger.Release(amount)
		a.Logger.Warn("buy execution failed",
			zap.String("token", sig.TokenAddress),
			zap.String("source", sig.Source),
			zap.Error(err))
		return err
	}
	if trade.TokenSymbol == "" {
		trade.TokenSymbol = sig.TokenSymbol
	}
	if err := a.Ledger.RecordBuy(ctx, trade); err != nil {
		a.Logger.Error("buy ledger update failed",
			zap.String("token", sig.TokenAddress), zap.Error(err))
		return err
	}
	return nil
}

// sizeSignal applies the entry filters and returns the position size for a
// signal that passes them all.
func (a *Advisor) sizeSignal(sig models.Signal, available decimal.Decimal, prog risk.Progress) (decimal.Decimal, bool) {
	if sig.Direction != models.DirectionBuy {
		return decimal.Zero, false
	}
	if a.Ledger.Has(sig.TokenAddress) {
		return decimal.Zero, false
	}
	if sig.Confidence < a.minConfidence() {
		return decimal.Zero, false
	}
	amount := a.Sizer.Amount(sig, available, prog)
	if amount.LessThan(decimal.NewFromFloat(a.minTradeUSD())) {
		return decimal.Zero, false
	}
	return amount, true
}

func (a *Advisor) minConfidence() float64 {
	if a.Sizing.MinConfidence > 0 {
		return a.Sizing.MinConfidence
	}
	return 0.4
}

func (a *Advisor) minTradeUSD() float64 {
	if a.Sizing.MinTradeUSD > 0 {
		return a.Sizing.MinTradeUSD
	}
	return 10
}

func (a *Advisor) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}
