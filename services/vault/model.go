package vault

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a wallet's staked balance in one vault, valued in USD by an
// external indexer. The accrual engine only reads these rows.
type Position struct {
	ID            string          `gorm:"column:id;primaryKey"`
	WalletAddress string          `gorm:"column:wallet_address;index;not null"`
	SeasonID      string          `gorm:"column:season_id;index;not null"`
	VaultAddress  string          `gorm:"column:vault_address;not null"`
	AssetSymbol   string          `gorm:"column:asset_symbol;type:varchar(20);not null"`
	Chain         string          `gorm:"column:chain;type:varchar(50)"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(36,18)"`
	UsdValue      decimal.Decimal `gorm:"column:usd_value;type:decimal(36,18)"`
	LockWeeks     int             `gorm:"column:lock_weeks"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Position) TableName() string {
	return "vault_positions"
}
