package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	TokenAddress string `gorm:"type:varchar(64);not null;uniqueIndex"`
	TokenSymbol  string `gorm:"type:varchar(32)"`

	Quantity      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgEntryPrice decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	CurrentPrice  decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	CostBasis     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	// Use explicit column names because default GORM naming turns "PnL" into "pn_l".
	UnrealizedPnL    decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(30,10);not null;default:0"`
	UnrealizedPnLPct decimal.Decimal `gorm:"column:unrealized_pnl_pct;type:numeric(20,10);not null;default:0"`

	Status     string     `gorm:"type:varchar(20);not null;default:'open';index"`
	ExitReason string     `gorm:"type:varchar(50)"`
	OpenedAt   time.Time  `gorm:"type:timestamptz;not null"`
	ClosedAt   *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Holding) TableName() string {
	return "holdings"
}

// MarketValue is the holding's value at the last observed price.
func (h Holding) MarketValue() decimal.Decimal {
	return h.CurrentPrice.Mul(h.Quantity)
}
