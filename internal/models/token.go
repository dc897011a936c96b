package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Token struct {
	Address string `gorm:"primaryKey;type:varchar(64)"`
	Symbol  string `gorm:"type:varchar(32);index"`
	Name    string `gorm:"type:varchar(128)"`

	PriceUSD     decimal.Decimal `gorm:"column:price_usd;type:numeric(30,12);not null;default:0"`
	Change24hPct float64         `gorm:"column:change_24h_pct;not null;default:0"`
	Volume24hUSD float64         `gorm:"column:volume_24h_usd;not null;default:0"`
	LiquidityUSD float64         `gorm:"column:liquidity_usd;not null;default:0"`

	PairCreatedAt *time.Time `gorm:"type:timestamptz"`
	LastSeenAt    time.Time  `gorm:"type:timestamptz;not null"`
}

func (Token) TableName() string {
	return "tokens"
}

// Age returns how long the token's primary pair has existed, zero when unknown.
func (t Token) Age(now time.Time) time.Duration {
	if t.PairCreatedAt == nil || t.PairCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(*t.PairCreatedAt)
}
