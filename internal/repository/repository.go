package repository

import (
	"context"
	"time"

	"tokenpilot/internal/models"
)

type ListSignalsParams struct {
	Limit  int
	Offset int

	Source  *string
	Token   *string
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListTradesParams struct {
	Limit  int
	Offset int

	Token *string
	Side  *string
	Since *time.Time
}

// Repository persists engine state. Every consumer treats it as optional:
// a nil repository means the engine runs purely in memory.
type Repository interface {
	// Signals.
	InsertSignal(ctx context.Context, item *models.Signal) error
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)

	// Tokens.
	UpsertToken(ctx context.Context, item *models.Token) error
	GetTokenByAddress(ctx context.Context, address string) (*models.Token, error)

	// Holdings.
	UpsertHolding(ctx context.Context, item *models.Holding) error
	ListOpenHoldings(ctx context.Context) ([]models.Holding, error)

	// Trades.
	InsertTrade(ctx context.Context, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)

	// Portfolio snapshots.
	InsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, since time.Time, limit int) ([]models.PortfolioSnapshot, error)

	// Tracked wallets.
	UpsertTrackedWallet(ctx context.Context, item *models.TrackedWallet) error
	ListTrackedWallets(ctx context.Context, enabledOnly bool) ([]models.TrackedWallet, error)
}
