package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskVeryHigh = "VERY_HIGH"
)

// Signal is a directional trade recommendation produced by a source.
type Signal struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Source string `gorm:"type:varchar(50);not null;index"`

	TokenAddress string `gorm:"type:varchar(64);not null;index"`
	TokenSymbol  string `gorm:"type:varchar(32)"`

	Direction  string  `gorm:"type:varchar(10);not null"`
	Confidence float64 `gorm:"not null"`
	RiskLevel  string  `gorm:"type:varchar(20);not null"`

	EntryPrice  decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	TargetPrice decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`
	StopPrice   decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0"`

	Reasoning string         `gorm:"type:text"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`

	EmittedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Signal) TableName() string {
	return "signals"
}
