package shard

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"shards-controlplane/services/fraud"
)

// DayStart normalizes a timestamp to its UTC day boundary. All history
// rows are keyed on this.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// CategoryAmounts groups the four accrual categories.
type CategoryAmounts struct {
	Staking   decimal.Decimal
	Social    decimal.Decimal
	Developer decimal.Decimal
	Referral  decimal.Decimal
}

func (a CategoryAmounts) Total() decimal.Decimal {
	return a.Staking.Add(a.Social).Add(a.Developer).Add(a.Referral)
}

func (a CategoryAmounts) IsZero() bool {
	return a.Staking.IsZero() && a.Social.IsZero() && a.Developer.IsZero() && a.Referral.IsZero()
}

// ShardBalance is the running cumulative balance, one row per wallet and
// season. TotalShards always equals the sum of the four categories.
type ShardBalance struct {
	ID              string          `gorm:"column:id;primaryKey"`
	WalletAddress   string          `gorm:"column:wallet_address;uniqueIndex:idx_balance_wallet_season;not null"`
	SeasonID        string          `gorm:"column:season_id;uniqueIndex:idx_balance_wallet_season;not null"`
	StakingShards   decimal.Decimal `gorm:"column:staking_shards;type:decimal(36,18)"`
	SocialShards    decimal.Decimal `gorm:"column:social_shards;type:decimal(36,18)"`
	DeveloperShards decimal.Decimal `gorm:"column:developer_shards;type:decimal(36,18)"`
	ReferralShards  decimal.Decimal `gorm:"column:referral_shards;type:decimal(36,18)"`
	TotalShards     decimal.Decimal `gorm:"column:total_shards;type:decimal(36,18)"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShardBalance) TableName() string {
	return "shard_balances"
}

// NewShardBalance seeds a balance with the first day's amounts. The wallet
// address is lower-cased at creation and never touched again.
func NewShardBalance(id, walletAddress, seasonID string, amounts CategoryAmounts) *ShardBalance {
	return &ShardBalance{
		ID:              id,
		WalletAddress:   strings.ToLower(walletAddress),
		SeasonID:        seasonID,
		StakingShards:   amounts.Staking,
		SocialShards:    amounts.Social,
		DeveloperShards: amounts.Developer,
		ReferralShards:  amounts.Referral,
		TotalShards:     amounts.Total(),
	}
}

// AddShards returns a copy with the deltas applied and the total
// recomputed from the category fields.
func (b ShardBalance) AddShards(delta CategoryAmounts) ShardBalance {
	b.StakingShards = b.StakingShards.Add(delta.Staking)
	b.SocialShards = b.SocialShards.Add(delta.Social)
	b.DeveloperShards = b.DeveloperShards.Add(delta.Developer)
	b.ReferralShards = b.ReferralShards.Add(delta.Referral)
	b.TotalShards = b.StakingShards.Add(b.SocialShards).Add(b.DeveloperShards).Add(b.ReferralShards)
	return b
}

// VaultContribution is one vault's share of a day's staking shards,
// serialized into the history breakdown.
type VaultContribution struct {
	VaultAddress string          `json:"vault_address"`
	AssetSymbol  string          `json:"asset_symbol"`
	Chain        string          `json:"chain"`
	Shards       decimal.Decimal `json:"shards"`
	UsdValue     decimal.Decimal `json:"usd_value"`
}

// AccrualMetadata is the free-form blob attached to each history row.
type AccrualMetadata struct {
	RefereeMultiplier decimal.Decimal `json:"referee_multiplier"`
	Fraud             *fraud.Result   `json:"fraud,omitempty"`
	CalculatedAt      time.Time       `json:"calculated_at"`
}

// ShardEarningHistory is one immutable ledger row per wallet, season and
// UTC day. The unique index is the idempotence backstop for concurrent
// accruals of the same key.
type ShardEarningHistory struct {
	ID              string          `gorm:"column:id;primaryKey"`
	WalletAddress   string          `gorm:"column:wallet_address;uniqueIndex:idx_earning_wallet_season_date;not null"`
	SeasonID        string          `gorm:"column:season_id;uniqueIndex:idx_earning_wallet_season_date;not null"`
	Date            time.Time       `gorm:"column:date;uniqueIndex:idx_earning_wallet_season_date;not null"`
	StakingShards   decimal.Decimal `gorm:"column:staking_shards;type:decimal(36,18)"`
	SocialShards    decimal.Decimal `gorm:"column:social_shards;type:decimal(36,18)"`
	DeveloperShards decimal.Decimal `gorm:"column:developer_shards;type:decimal(36,18)"`
	ReferralShards  decimal.Decimal `gorm:"column:referral_shards;type:decimal(36,18)"`
	DailyTotal      decimal.Decimal `gorm:"column:daily_total;type:decimal(36,18)"`
	VaultBreakdown  datatypes.JSON  `gorm:"column:vault_breakdown;type:jsonb"`
	Metadata        datatypes.JSON  `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (ShardEarningHistory) TableName() string {
	return "shard_earning_history"
}

type HistoryParams struct {
	ID            string
	WalletAddress string
	SeasonID      string
	Date          time.Time
	Amounts       CategoryAmounts
	Breakdown     []VaultContribution
	Metadata      AccrualMetadata
}

// NewEarningHistory builds a history row. DailyTotal is derived from the
// category amounts so the additive invariant holds by construction.
func NewEarningHistory(p HistoryParams) (*ShardEarningHistory, error) {
	breakdown, err := json.Marshal(p.Breakdown)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, err
	}

	return &ShardEarningHistory{
		ID:              p.ID,
		WalletAddress:   strings.ToLower(p.WalletAddress),
		SeasonID:        p.SeasonID,
		Date:            DayStart(p.Date),
		StakingShards:   p.Amounts.Staking,
		SocialShards:    p.Amounts.Social,
		DeveloperShards: p.Amounts.Developer,
		ReferralShards:  p.Amounts.Referral,
		DailyTotal:      p.Amounts.Total(),
		VaultBreakdown:  datatypes.JSON(breakdown),
		Metadata:        datatypes.JSON(metadata),
	}, nil
}

// Breakdown decodes the per-vault contribution list.
func (h *ShardEarningHistory) Breakdown() ([]VaultContribution, error) {
	if len(h.VaultBreakdown) == 0 {
		return nil, nil
	}
	var contributions []VaultContribution
	if err := json.Unmarshal(h.VaultBreakdown, &contributions); err != nil {
		return nil, err
	}
	return contributions, nil
}

// AccrualMeta decodes the metadata blob. Rows written before a metadata
// field was introduced decode to zero values.
func (h *ShardEarningHistory) AccrualMeta() (AccrualMetadata, error) {
	var meta AccrualMetadata
	if len(h.Metadata) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(h.Metadata, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

// Amounts returns the stored category breakdown.
func (h *ShardEarningHistory) Amounts() CategoryAmounts {
	return CategoryAmounts{
		Staking:   h.StakingShards,
		Social:    h.SocialShards,
		Developer: h.DeveloperShards,
		Referral:  h.ReferralShards,
	}
}
