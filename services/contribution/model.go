package contribution

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeveloperContribution is a verified ecosystem contribution. Its
// verification and distribution workflow is owned elsewhere; the accrual
// engine only sums ShardsEarned for rows that are verified and
// distributed on the target day.
type DeveloperContribution struct {
	ID            string          `gorm:"column:id;primaryKey"`
	WalletAddress string          `gorm:"column:wallet_address;index;not null"`
	SeasonID      string          `gorm:"column:season_id;index;not null"`
	ActionType    string          `gorm:"column:action_type;type:varchar(50)"`
	ShardsEarned  decimal.Decimal `gorm:"column:shards_earned;type:decimal(36,18)"`
	Verified      bool            `gorm:"column:verified"`
	DistributedAt *time.Time      `gorm:"column:distributed_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DeveloperContribution) TableName() string {
	return "developer_contributions"
}

// CountsToward reports whether this contribution is summable for the given
// UTC day: it must be verified and distributed on that day.
func (c *DeveloperContribution) CountsToward(day time.Time) bool {
	if !c.Verified || c.DistributedAt == nil {
		return false
	}
	distributed := c.DistributedAt.UTC()
	return distributed.Year() == day.Year() &&
		distributed.Month() == day.Month() &&
		distributed.Day() == day.Day()
}
