package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/models"
	"tokenpilot/internal/repository"
)

var (
	ErrInsufficientCapital = errors.New("insufficient available capital")
	ErrUnknownHolding      = errors.New("no holding for token")
)

// PriceLookup resolves a token's current USD price.
type PriceLookup func(ctx context.Context, tokenAddress string) (decimal.Decimal, error)

// Snapshot is a point-in-time view of the portfolio.
type Snapshot struct {
	TotalValue       decimal.Decimal  `json:"total_value"`
	InitialCapital   decimal.Decimal  `json:"initial_capital"`
	AvailableCapital decimal.Decimal  `json:"available_capital"`
	ReservedCapital  decimal.Decimal  `json:"reserved_capital"`
	RealizedPnL      decimal.Decimal  `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal  `json:"unrealized_pnl"`
	TotalPnL         decimal.Decimal  `json:"total_pnl"`
	TotalPnLPct      float64          `json:"total_pnl_pct"`
	Holdings         []models.Holding `json:"holdings"`
	Trades           []models.Trade   `json:"trades"`
	TakenAt          time.Time        `json:"taken_at"`
}

// Ledger owns holdings, weighted-average cost basis, available capital and
// trade history. A single mutex serializes every public operation so the
// cost-basis invariants hold under concurrent callers.
type Ledger struct {
	repo   repository.Repository
	logger *zap.Logger

	mu             sync.Mutex
	initialCapital decimal.Decimal
	available      decimal.Decimal
	reserved       decimal.Decimal
	realized       decimal.Decimal
	holdings       map[string]*models.Holding
	trades         []models.Trade
	updatedAt      time.Time
}

func NewLedger(initialCapital decimal.Decimal, repo repository.Repository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:           repo,
		logger:         logger,
		initialCapital: initialCapital,
		available:      initialCapital,
		holdings:       map[string]*models.Holding{},
		updatedAt:      time.Now().UTC(),
	}
}

// Restore rebuilds in-memory state from persisted holdings and the latest
// snapshot. Intended for startup only.
func (l *Ledger) Restore(snap *models.PortfolioSnapshot, holdings []models.Holding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if snap != nil {
		l.available = snap.AvailableCapital
		l.realized = snap.RealizedPnL
		if snap.InitialCapital.GreaterThan(decimal.Zero) {
			l.initialCapital = snap.InitialCapital
		}
	}
	for i := range holdings {
		h := holdings[i]
		if strings.TrimSpace(h.TokenAddress) == "" || h.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		l.holdings[h.TokenAddress] = &h
	}
	l.updatedAt = time.Now().UTC()
}

// Reserve earmarks capital for a sized trade before execution, so two signals
// sized in the same cycle cannot double-spend.
func (l *Ledger) Reserve(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("reserve amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.GreaterThan(l.available.Sub(l.reserved)) {
		return ErrInsufficientCapital
	}
	l.reserved = l.reserved.Add(amount)
	return nil
}

// Release returns reserved capital after a failed or skipped execution.
func (l *Ledger) Release(amount decimal.Decimal) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved = l.reserved.Sub(amount)
	if l.reserved.LessThan(decimal.Zero) {
		l.reserved = decimal.Zero
	}
}

// RecordBuy applies a filled buy: creates or grows the holding with the
// weighted-average formula and decrements available capital.
func (l *Ledger) RecordBuy(ctx context.Context, trade models.Trade) error {
	addr := strings.TrimSpace(trade.TokenAddress)
	if addr == "" {
		return fmt.Errorf("trade has no token address")
	}
	if trade.Quantity.LessThanOrEqual(decimal.Zero) || trade.AmountUSD.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("buy trade must have positive quantity and amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Consume any matching reservation first.
	if l.reserved.GreaterThan(decimal.Zero) {
		consumed := trade.AmountUSD
		if consumed.GreaterThan(l.reserved) {
			consumed = l.reserved
		}
		l.reserved = l.reserved.Sub(consumed)
	}
	if trade.AmountUSD.GreaterThan(l.available) {
		return ErrInsufficientCapital
	}

	now := time.Now().UTC()
	h, ok := l.holdings[addr]
	if !ok {
		h = &models.Holding{
			TokenAddress: addr,
			TokenSymbol:  trade.TokenSymbol,
			Quantity:     decimal.Zero,
			CostBasis:    decimal.Zero,
			Status:       "open",
			OpenedAt:     trade.ExecutedAt,
			CreatedAt:    now,
		}
		l.holdings[addr] = h
	}

	newQty := h.Quantity.Add(trade.Quantity)
	totalCost := h.CostBasis.Add(trade.Price.Mul(trade.Quantity)).Add(trade.Fee)
	h.Quantity = newQty
	h.CostBasis = totalCost
	h.AvgEntryPrice = totalCost.Div(newQty)
	h.CurrentPrice = trade.Price
	h.UpdatedAt = now
	recomputeUnrealized(h)

	l.available = l.available.Sub(trade.AmountUSD)
	l.appendTrade(ctx, trade)
	l.persistHolding(ctx, h)
	l.updatedAt = now

	if l.logger != nil {
		l.logger.Info("buy recorded",
			zap.String("token", addr),
			zap.String("amount_usd", trade.AmountUSD.StringFixed(2)),
			zap.String("avg_entry", h.AvgEntryPrice.String()),
			zap.String("quantity", h.Quantity.String()),
		)
	}
	return nil
}

// RecordSell applies a filled sell. Selling the full quantity removes the
// holding; a partial sell shrinks cost basis proportionally and leaves the
// average entry price unchanged.
func (l *Ledger) RecordSell(ctx context.Context, trade models.Trade) error {
	addr := strings.TrimSpace(trade.TokenAddress)
	if addr == "" {
		return fmt.Errorf("trade has no token address")
	}
	if trade.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sell trade must have positive quantity")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holdings[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHolding, addr)
	}

	now := time.Now().UTC()
	proceeds := trade.AmountUSD

	var realizedDelta decimal.Decimal
	if trade.Quantity.GreaterThanOrEqual(h.Quantity) {
		// Full exit.
		realizedDelta = proceeds.Sub(h.CostBasis)
		h.Quantity = decimal.Zero
		h.CostBasis = decimal.Zero
		h.UnrealizedPnL = decimal.Zero
		h.UnrealizedPnLPct = decimal.Zero
		h.CurrentPrice = trade.Price
		h.Status = "closed"
		h.ExitReason = trade.ExitReason
		h.ClosedAt = &now
		h.UpdatedAt = now
		l.persistHolding(ctx, h)
		delete(l.holdings, addr)
	} else {
		portion := trade.Quantity.Div(h.Quantity)
		costRemoved := h.CostBasis.Mul(portion)
		realizedDelta = proceeds.Sub(costRemoved)
		h.Quantity = h.Quantity.Sub(trade.Quantity)
		h.CostBasis = h.CostBasis.Sub(costRemoved)
		h.CurrentPrice = trade.Price
		h.UpdatedAt = now
		recomputeUnrealized(h)
		l.persistHolding(ctx, h)
	}

	l.realized = l.realized.Add(realizedDelta)
	l.available = l.available.Add(proceeds)
	l.appendTrade(ctx, trade)
	l.updatedAt = now

	if l.logger != nil {
		l.logger.Info("sell recorded",
			zap.String("token", addr),
			zap.String("proceeds_usd", proceeds.StringFixed(2)),
			zap.String("realized_delta", realizedDelta.StringFixed(2)),
			zap.String("reason", trade.ExitReason),
		)
	}
	return nil
}

// ValueHoldings refreshes each holding's current price and derived unrealized
// P&L. A failing lookup leaves that holding at its last-known price.
func (l *Ledger) ValueHoldings(ctx context.Context, lookup PriceLookup) {
	if lookup == nil {
		return
	}
	for _, addr := range l.holdingAddresses() {
		price, err := lookup(ctx, addr)
		if err != nil {
			if l.logger != nil {
				l.logger.Warn("price lookup failed", zap.String("token", addr), zap.Error(err))
			}
			continue
		}
		l.UpdatePrice(addr, price)
	}
}

// UpdatePrice sets a holding's current price, e.g. from the trade stream.
func (l *Ledger) UpdatePrice(tokenAddress string, price decimal.Decimal) {
	if price.LessThanOrEqual(decimal.Zero) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holdings[strings.TrimSpace(tokenAddress)]
	if !ok {
		return
	}
	now := time.Now().UTC()
	h.CurrentPrice = price
	h.UpdatedAt = now
	recomputeUnrealized(h)
	l.updatedAt = now
}

// Snapshot aggregates total value, capital and P&L with holding and trade copies.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	holdings := make([]models.Holding, 0, len(l.holdings))
	unrealized := decimal.Zero
	holdingsValue := decimal.Zero
	for _, h := range l.holdings {
		holdings = append(holdings, *h)
		unrealized = unrealized.Add(h.UnrealizedPnL)
		holdingsValue = holdingsValue.Add(h.MarketValue())
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].OpenedAt.Before(holdings[j].OpenedAt)
	})

	trades := make([]models.Trade, len(l.trades))
	copy(trades, l.trades)

	total := l.available.Add(holdingsValue)
	totalPnL := l.realized.Add(unrealized)
	pct := 0.0
	if l.initialCapital.GreaterThan(decimal.Zero) {
		pct = totalPnL.Div(l.initialCapital).InexactFloat64()
	}
	return Snapshot{
		TotalValue:       total,
		InitialCapital:   l.initialCapital,
		AvailableCapital: l.available,
		ReservedCapital:  l.reserved,
		RealizedPnL:      l.realized,
		UnrealizedPnL:    unrealized,
		TotalPnL:         totalPnL,
		TotalPnLPct:      pct,
		Holdings:         holdings,
		Trades:           trades,
		TakenAt:          l.updatedAt,
	}
}

// Holdings returns copies of the open holdings.
func (l *Ledger) Holdings() []models.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Holding, 0, len(l.holdings))
	for _, h := range l.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

func (l *Ledger) Has(tokenAddress string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holdings[strings.TrimSpace(tokenAddress)]
	return ok
}

func (l *Ledger) AvailableCapital() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available.Sub(l.reserved)
}

// SnapshotModel converts the current state into a persistable snapshot row.
func (l *Ledger) SnapshotModel(now time.Time) *models.PortfolioSnapshot {
	snap := l.Snapshot()
	return &models.PortfolioSnapshot{
		SnapshotAt:       now.Truncate(time.Hour),
		HoldingsCount:    len(snap.Holdings),
		TotalValue:       snap.TotalValue,
		InitialCapital:   snap.InitialCapital,
		AvailableCapital: snap.AvailableCapital,
		UnrealizedPnL:    snap.UnrealizedPnL,
		RealizedPnL:      snap.RealizedPnL,
		TotalPnLPct:      decimal.NewFromFloat(snap.TotalPnLPct),
	}
}

func (l *Ledger) holdingAddresses() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.holdings))
	for addr := range l.holdings {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) appendTrade(ctx context.Context, trade models.Trade) {
	l.trades = append(l.trades, trade)
	if l.repo != nil {
		t := trade
		if err := l.repo.InsertTrade(ctx, &t); err != nil && l.logger != nil {
			l.logger.Warn("trade persist failed", zap.String("receipt", trade.ReceiptID), zap.Error(err))
		}
	}
}

func (l *Ledger) persistHolding(ctx context.Context, h *models.Holding) {
	if l.repo == nil || h == nil {
		return
	}
	copied := *h
	if err := l.repo.UpsertHolding(ctx, &copied); err != nil && l.logger != nil {
		l.logger.Warn("holding persist failed", zap.String("token", h.TokenAddress), zap.Error(err))
	}
}

func recomputeUnrealized(h *models.Holding) {
	h.UnrealizedPnL = h.CurrentPrice.Mul(h.Quantity).Sub(h.CostBasis)
	if h.CostBasis.GreaterThan(decimal.Zero) {
		h.UnrealizedPnLPct = h.UnrealizedPnL.Div(h.CostBasis)
	} else {
		h.UnrealizedPnLPct = decimal.Zero
	}
}
