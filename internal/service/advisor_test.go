package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/config"
	"tokenpilot/internal/models"
	"tokenpilot/internal/portfolio"
	"tokenpilot/internal/risk"
	"tokenpilot/internal/signal"
)

type fixedSource struct {
	signals []models.Signal
}

func (s *fixedSource) Name() string { return "fixed" }

func (s *fixedSource) Collect(ctx context.Context) ([]models.Signal, error) {
	return s.signals, nil
}

func (s *fixedSource) Health() signal.HealthStatus {
	return signal.HealthStatus{Status: "healthy"}
}

type stubOracle struct {
	prices map[string]decimal.Decimal
}

func (o *stubOracle) Price(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	if p, ok := o.prices[tokenAddress]; ok {
		return p, nil
	}
	return decimal.Zero, errors.New("price unavailable")
}

type stubExchange struct {
	buyErr error
	buys   []models.Trade
	sells  []models.Trade
}

func (e *stubExchange) Buy(ctx context.Context, tokenAddress string, amountUSD decimal.Decimal) (models.Trade, error) {
	if e.buyErr != nil {
		return models.Trade{}, e.buyErr
	}
	trade := models.Trade{
		TokenAddress: tokenAddress,
		Side:         models.TradeSideBuy,
		AmountUSD:    amountUSD,
		Quantity:     amountUSD,
		Price:        decimal.NewFromInt(1),
		ExecutedAt:   time.Now().UTC(),
	}
	e.buys = append(e.buys, trade)
	return trade, nil
}

func (e *stubExchange) Sell(ctx context.Context, tokenAddress string, quantity decimal.Decimal) (models.Trade, error) {
	trade := models.Trade{
		TokenAddress: tokenAddress,
		Side:         models.TradeSideSell,
		AmountUSD:    quantity.Mul(decimal.NewFromFloat(1.4)),
		Quantity:     quantity,
		Price:        decimal.NewFromFloat(1.4),
		ExecutedAt:   time.Now().UTC(),
	}
	e.sells = append(e.sells, trade)
	return trade, nil
}

func buySignal(token string, confidence float64) models.Signal {
	return models.Signal{
		Source:       "fixed",
		TokenAddress: token,
		Direction:    models.DirectionBuy,
		Confidence:   confidence,
		RiskLevel:    models.RiskHigh,
		EmittedAt:    time.Now().UTC(),
	}
}

func newTestAdvisor(signals []models.Signal, capital int64, exchange *stubExchange, oracle *stubOracle) (*Advisor, *portfolio.Ledger) {
	logger := zap.NewNop()
	agg := signal.NewAggregator(nil, logger, time.Minute, false)
	agg.Register(&fixedSource{signals: signals})

	ledger := portfolio.NewLedger(decimal.NewFromInt(capital), nil, logger)
	// Start the horizon in the near future so elapsed time stays clamped at
	// zero and the expected value equals the initial capital exactly.
	tracker := risk.NewTracker(config.PortfolioConfig{
		InitialCapitalUSD: float64(capital),
		TargetValueUSD:    float64(capital) * 10,
		HorizonDays:       30,
	}, time.Now().UTC().Add(time.Hour))

	advisor := NewAdvisor(
		agg,
		ledger,
		&risk.Sizer{Config: config.SizingConfig{}, Logger: logger},
		tracker,
		NewExitEvaluator(config.ExitConfig{}, logger),
		&risk.MetricsTracker{Config: config.RiskConfig{}, Logger: logger},
		oracle,
		exchange,
		nil,
		logger,
		config.SizingConfig{},
	)
	return advisor, ledger
}

func TestRunCycle_ExecutesQualifyingBuy(t *testing.T) {
	exchange := &stubExchange{}
	advisor, ledger := newTestAdvisor(
		[]models.Signal{buySignal("tokA", 0.8)},
		1000, exchange, &stubOracle{},
	)

	if err := advisor.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(exchange.buys) != 1 {
		t.Fatalf("buys=%d want=1", len(exchange.buys))
	}
	// 0.15 * 0.8 * 0.8 * 1.0 * 1.0 of 1000 available.
	if exchange.buys[0].AmountUSD.Cmp(decimal.NewFromInt(96)) != 0 {
		t.Fatalf("amount=%s want=96", exchange.buys[0].AmountUSD.String())
	}
	if !ledger.Has("tokA") {
		t.Fatalf("ledger missing tokA after buy")
	}
	if ledger.AvailableCapital().Cmp(decimal.NewFromInt(904)) != 0 {
		t.Fatalf("available=%s want=904", ledger.AvailableCapital().String())
	}
}

func TestRunCycle_FiltersSignals(t *testing.T) {
	exchange := &stubExchange{}
	held := buySignal("tokHeld", 0.9)
	signals := []models.Signal{
		{Source: "fixed", TokenAddress: "tokSell", Direction: models.DirectionSell, Confidence: 0.9},
		buySignal("tokLowConf", 0.3),
		held,
	}
	advisor, ledger := newTestAdvisor(signals, 1000, exchange, &stubOracle{
		prices: map[string]decimal.Decimal{"tokHeld": decimal.NewFromInt(1)},
	})
	if err := ledger.RecordBuy(context.Background(), models.Trade{
		TokenAddress: "tokHeld",
		Side:         models.TradeSideBuy,
		AmountUSD:    decimal.NewFromInt(50),
		Quantity:     decimal.NewFromInt(50),
		Price:        decimal.NewFromInt(1),
		ExecutedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed holding: %v", err)
	}

	if err := advisor.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(exchange.buys) != 0 {
		t.Fatalf("buys=%d want=0: non-BUY, low-confidence and held tokens must be skipped", len(exchange.buys))
	}
}

func TestRunCycle_SkipsDustSizedTrades(t *testing.T) {
	exchange := &stubExchange{}
	// 50 available * 0.096 = 4.8, below the 10 USD floor.
	advisor, _ := newTestAdvisor([]models.Signal{buySignal("tokA", 0.8)}, 50, exchange, &stubOracle{})

	if err := advisor.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(exchange.buys) != 0 {
		t.Fatalf("buys=%d want=0 for dust-sized trade", len(exchange.buys))
	}
}

func TestRunCycle_BuyFailureReleasesReservation(t *testing.T) {
	exchange := &stubExchange{buyErr: errors.New("swap failed")}
	advisor, ledger := newTestAdvisor([]models.Signal{buySignal("tokA", 0.8)}, 1000, exchange, &stubOracle{})

	if err := advisor.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if ledger.AvailableCapital().Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("available=%s want=1000 after failed buy", ledger.AvailableCapital().String())
	}
	if ledger.Has("tokA") {
		t.Fatalf("failed buy must not create a holding")
	}
}

func TestRunCycle_ExecutesTakeProfitExit(t *testing.T) {
	exchange := &stubExchange{}
	oracle := &stubOracle{prices: map[string]decimal.Decimal{"tokA": decimal.NewFromFloat(1.4)}}
	advisor, ledger := newTestAdvisor(nil, 1000, exchange, oracle)

	if err := ledger.RecordBuy(context.Background(), models.Trade{
		TokenAddress: "tokA",
		Side:         models.TradeSideBuy,
		AmountUSD:    decimal.NewFromInt(100),
		Quantity:     decimal.NewFromInt(100),
		Price:        decimal.NewFromInt(1),
		ExecutedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed holding: %v", err)
	}

	if err := advisor.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(exchange.sells) != 1 {
		t.Fatalf("sells=%d want=1", len(exchange.sells))
	}
	if ledger.Has("tokA") {
		t.Fatalf("holding should be closed after take-profit exit")
	}
	snap := ledger.Snapshot()
	if len(snap.Trades) != 2 {
		t.Fatalf("trades=%d want=2", len(snap.Trades))
	}
	if snap.Trades[1].ExitReason != ExitReasonTakeProfit {
		t.Fatalf("exit_reason=%s want=%s", snap.Trades[1].ExitReason, ExitReasonTakeProfit)
	}
	// 100 spent, 140 recovered.
	if snap.RealizedPnL.Cmp(decimal.NewFromInt(40)) != 0 {
		t.Fatalf("realized=%s want=40", snap.RealizedPnL.String())
	}
}

func TestGetRecommendedActions(t *testing.T) {
	exchange := &stubExchange{}
	oracle := &stubOracle{prices: map[string]decimal.Decimal{"tokHeld": decimal.NewFromFloat(1.4)}}
	advisor, ledger := newTestAdvisor([]models.Signal{buySignal("tokNew", 0.8)}, 1000, exchange, oracle)

	if err := ledger.RecordBuy(context.Background(), models.Trade{
		TokenAddress: "tokHeld",
		Side:         models.TradeSideBuy,
		AmountUSD:    decimal.NewFromInt(100),
		Quantity:     decimal.NewFromInt(100),
		Price:        decimal.NewFromInt(1),
		ExecutedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed holding: %v", err)
	}
	ledger.UpdatePrice("tokHeld", decimal.NewFromFloat(1.4))

	actions := advisor.GetRecommendedActions(context.Background())
	if len(actions.Sells) != 1 || actions.Sells[0].Reason != ExitReasonTakeProfit {
		t.Fatalf("sells=%v want one take_profit recommendation", actions.Sells)
	}
	if len(actions.Buys) != 1 || actions.Buys[0].Signal.TokenAddress != "tokNew" {
		t.Fatalf("buys=%v want one tokNew candidate", actions.Buys)
	}
	if actions.Buys[0].SizeUSD.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("size=%s want positive", actions.Buys[0].SizeUSD.String())
	}
	if len(exchange.buys)+len(exchange.sells) != 0 {
		t.Fatalf("read surface must not execute trades")
	}
	if actions.Portfolio.Holdings[0].TokenAddress != "tokHeld" {
		t.Fatalf("portfolio=%v want tokHeld holding", actions.Portfolio.Holdings)
	}
}
