package season

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"shards-controlplane/pkg/errutil"
)

type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// DefaultRate applies when an asset has no entry in the season rate table.
// The social conversion rate falls back to the same value.
var DefaultRate = decimal.NewFromInt(100)

// Season is a bounded program epoch. Rates express shards awarded per
// $1000 of staked value for a given asset symbol.
type Season struct {
	ID                   string          `gorm:"column:id;primaryKey"`
	Name                 string          `gorm:"column:name;type:varchar(255);not null"`
	Chain                string          `gorm:"column:chain;type:varchar(50)"`
	StartDate            time.Time       `gorm:"column:start_date"`
	EndDate              time.Time       `gorm:"column:end_date"`
	Status               Status          `gorm:"column:status;type:varchar(20);not null;default:'UPCOMING'"`
	RateTable            datatypes.JSON  `gorm:"column:rate_table;type:jsonb"`
	SocialConversionRate decimal.Decimal `gorm:"column:social_conversion_rate;type:decimal(36,18)"`
	LockEnabled          bool            `gorm:"column:lock_enabled"`
	WithdrawalEnabled    bool            `gorm:"column:withdrawal_enabled"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Season) TableName() string {
	return "seasons"
}

type Params struct {
	ID                   string
	Name                 string
	Chain                string
	StartDate            time.Time
	EndDate              time.Time
	Rates                map[string]decimal.Decimal
	SocialConversionRate decimal.Decimal
	LockEnabled          bool
	WithdrawalEnabled    bool
}

func New(p Params) (Season, error) {
	rates, err := marshalRates(p.Rates)
	if err != nil {
		return Season{}, err
	}

	return Season{
		ID:                   p.ID,
		Name:                 p.Name,
		Chain:                p.Chain,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		Status:               StatusUpcoming,
		RateTable:            rates,
		SocialConversionRate: p.SocialConversionRate,
		LockEnabled:          p.LockEnabled,
		WithdrawalEnabled:    p.WithdrawalEnabled,
	}, nil
}

// Activate transitions the season to ACTIVE. Only an upcoming season can
// be activated.
func (s Season) Activate() (Season, error) {
	if s.Status != StatusUpcoming {
		return s, errutil.UnprocessableEntity("season can only be activated from upcoming", nil)
	}
	s.Status = StatusActive
	return s, nil
}

// Complete transitions the season to COMPLETED. Only an active season can
// be completed.
func (s Season) Complete() (Season, error) {
	if s.Status != StatusActive {
		return s, errutil.UnprocessableEntity("season can only be completed from active", nil)
	}
	s.Status = StatusCompleted
	return s, nil
}

// Update describes a generic field mutation. Nil fields are left as-is.
type Update struct {
	Name              *string
	EndDate           *time.Time
	Rates             map[string]decimal.Decimal
	SocialRate        *decimal.Decimal
	LockEnabled       *bool
	WithdrawalEnabled *bool
}

// ApplyUpdate returns a copy with the requested fields changed. A
// completed season is immutable.
func (s Season) ApplyUpdate(u Update) (Season, error) {
	if s.Status == StatusCompleted {
		return s, errutil.UnprocessableEntity("completed season cannot be updated", nil)
	}

	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.EndDate != nil {
		s.EndDate = *u.EndDate
	}
	if u.Rates != nil {
		rates, err := marshalRates(u.Rates)
		if err != nil {
			return s, err
		}
		s.RateTable = rates
	}
	if u.SocialRate != nil {
		s.SocialConversionRate = *u.SocialRate
	}
	if u.LockEnabled != nil {
		s.LockEnabled = *u.LockEnabled
	}
	if u.WithdrawalEnabled != nil {
		s.WithdrawalEnabled = *u.WithdrawalEnabled
	}

	return s, nil
}

func (s *Season) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

func marshalRates(rates map[string]decimal.Decimal) (datatypes.JSON, error) {
	if rates == nil {
		rates = map[string]decimal.Decimal{}
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return nil, errutil.Internal("failed to encode rate table", err)
	}
	return datatypes.JSON(raw), nil
}

// Context is a read-only view over a season used during accrual. It
// decodes the rate table once so per-position lookups stay cheap.
type Context struct {
	season *Season
	rates  map[string]decimal.Decimal
}

func NewContext(s *Season) (*Context, error) {
	rates := map[string]decimal.Decimal{}
	if s != nil && len(s.RateTable) > 0 {
		if err := json.Unmarshal(s.RateTable, &rates); err != nil {
			return nil, errutil.Internal("failed to decode rate table", err)
		}
	}

	normalized := make(map[string]decimal.Decimal, len(rates))
	for asset, rate := range rates {
		normalized[strings.ToLower(asset)] = rate
	}

	return &Context{season: s, rates: normalized}, nil
}

// RateFor returns the shards-per-$1000 rate for an asset, falling back to
// DefaultRate when the asset is not configured.
func (c *Context) RateFor(asset string) decimal.Decimal {
	if rate, ok := c.rates[strings.ToLower(asset)]; ok {
		return rate
	}
	return DefaultRate
}

// SocialConversionRate returns the YAP-points-per-shard divisor, falling
// back to DefaultRate when unset.
func (c *Context) SocialConversionRate() decimal.Decimal {
	if c.season == nil || c.season.SocialConversionRate.IsZero() {
		return DefaultRate
	}
	return c.season.SocialConversionRate
}

func (c *Context) IsActive() bool {
	return c.season.IsActive()
}
