package models

import "time"

// TrackedWallet is a wallet whose trades feed the wallet-activity source.
type TrackedWallet struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Address string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Label   string `gorm:"type:varchar(64)"`

	SuccessRate7d float64 `gorm:"column:success_rate_7d;not null;default:0"`
	TxCount7d     int     `gorm:"column:tx_count_7d;not null;default:0"`

	Enabled         bool       `gorm:"not null;default:true"`
	LastEvaluatedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TrackedWallet) TableName() string {
	return "tracked_wallets"
}
