package jupiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/models"
)

type ExecutorConfig struct {
	// Mode "dry-run" settles fills at the quoted price without touching the chain.
	Mode        string
	SlippageBps int
	FeePct      float64
}

// Executor fills buy/sell orders against Jupiter quotes.
type Executor struct {
	Client *Client
	Config ExecutorConfig
	Logger *zap.Logger
}

func (e *Executor) Buy(ctx context.Context, tokenAddress string, amountUSD decimal.Decimal) (models.Trade, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return models.Trade{}, fmt.Errorf("token address is required")
	}
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return models.Trade{}, fmt.Errorf("buy amount must be positive")
	}
	if e == nil || e.Client == nil {
		return models.Trade{}, fmt.Errorf("executor not configured")
	}

	price, err := e.fillPrice(ctx, USDCMint, tokenAddress, amountUSD)
	if err != nil {
		return models.Trade{}, fmt.Errorf("buy %s: %w", tokenAddress, err)
	}

	fee := amountUSD.Mul(decimal.NewFromFloat(e.Config.FeePct))
	quantity := amountUSD.Sub(fee).Div(price)
	now := time.Now().UTC()
	trade := models.Trade{
		ReceiptID:    newReceiptID(now),
		TokenAddress: tokenAddress,
		Side:         models.TradeSideBuy,
		AmountUSD:    amountUSD,
		Quantity:     quantity,
		Price:        price,
		Fee:          fee,
		Status:       "filled",
		ExecutedAt:   now,
	}
	if e.Logger != nil {
		e.Logger.Info("buy filled",
			zap.String("token", tokenAddress),
			zap.String("amount_usd", amountUSD.StringFixed(2)),
			zap.String("price", price.String()),
			zap.String("receipt", trade.ReceiptID),
		)
	}
	return trade, nil
}

func (e *Executor) Sell(ctx context.Context, tokenAddress string, quantity decimal.Decimal) (models.Trade, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return models.Trade{}, fmt.Errorf("token address is required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return models.Trade{}, fmt.Errorf("sell quantity must be positive")
	}
	if e == nil || e.Client == nil {
		return models.Trade{}, fmt.Errorf("executor not configured")
	}

	price, err := e.Client.GetPrice(ctx, tokenAddress)
	if err != nil {
		return models.Trade{}, fmt.Errorf("sell %s: %w", tokenAddress, err)
	}

	gross := price.Mul(quantity)
	fee := gross.Mul(decimal.NewFromFloat(e.Config.FeePct))
	now := time.Now().UTC()
	trade := models.Trade{
		ReceiptID:    newReceiptID(now),
		TokenAddress: tokenAddress,
		Side:         models.TradeSideSell,
		AmountUSD:    gross.Sub(fee),
		Quantity:     quantity,
		Price:        price,
		Fee:          fee,
		Status:       "filled",
		ExecutedAt:   now,
	}
	if e.Logger != nil {
		e.Logger.Info("sell filled",
			zap.String("token", tokenAddress),
			zap.String("quantity", quantity.String()),
			zap.String("price", price.String()),
			zap.String("receipt", trade.ReceiptID),
		)
	}
	return trade, nil
}

// fillPrice prefers the quote-implied price so slippage shows up in dry-run fills;
// it falls back to the spot price when the quote route is unavailable.
func (e *Executor) fillPrice(ctx context.Context, inputMint, outputMint string, amountUSD decimal.Decimal) (decimal.Decimal, error) {
	spot, err := e.Client.GetPrice(ctx, outputMint)
	if err != nil {
		return decimal.Zero, err
	}

	// USDC has 6 decimals.
	baseUnits := amountUSD.Mul(decimal.NewFromInt(1_000_000)).IntPart()
	if baseUnits <= 0 {
		return spot, nil
	}
	quote, err := e.Client.GetQuote(ctx, inputMint, outputMint, uint64(baseUnits), e.Config.SlippageBps)
	if err != nil || quote == nil {
		return spot, nil
	}
	impact, err := decimal.NewFromString(strings.TrimSpace(quote.PriceImpactPct))
	if err != nil {
		return spot, nil
	}
	return spot.Mul(decimal.NewFromInt(1).Add(impact)), nil
}

func newReceiptID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
