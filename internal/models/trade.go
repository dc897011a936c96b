package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// Trade is an executed (or simulated) exchange order receipt.
type Trade struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ReceiptID string `gorm:"type:varchar(64);not null;uniqueIndex"`

	TokenAddress string `gorm:"type:varchar(64);not null;index"`
	TokenSymbol  string `gorm:"type:varchar(32)"`

	Side      string          `gorm:"type:varchar(10);not null"`
	AmountUSD decimal.Decimal `gorm:"column:amount_usd;type:numeric(30,10);not null"`
	Quantity  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price     decimal.Decimal `gorm:"type:numeric(30,12);not null"`
	Fee       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Status     string `gorm:"type:varchar(20);not null;default:'filled';index"`
	ExitReason string `gorm:"type:varchar(50)"`

	ExecutedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Trade) TableName() string {
	return "trades"
}
