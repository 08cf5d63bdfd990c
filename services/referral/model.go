package referral

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shards-controlplane/pkg/errutil"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// Program constants for the referral bonus scheme.
var (
	// ActivationThreshold is the minimum lifetime shards a referee must
	// earn before the relationship activates.
	ActivationThreshold = decimal.NewFromInt(100)

	// ReferrerBonusRate is the referrer's cut of the referee's daily total.
	ReferrerBonusRate = decimal.NewFromFloat(0.10)

	// RefereeBonusMultiplier applies to the referee's own earnings while
	// the bonus window is open.
	RefereeBonusMultiplier = decimal.NewFromFloat(1.2)
)

// BonusWindow is how long the referee multiplier stays in force after
// activation.
const BonusWindow = 30 * 24 * time.Hour

// Referral is one referrer/referee pair scoped to a season. Status moves
// pending → active → expired and never backwards.
type Referral struct {
	ID                      string          `gorm:"column:id;primaryKey"`
	ReferrerAddress         string          `gorm:"column:referrer_address;index;not null"`
	RefereeAddress          string          `gorm:"column:referee_address;index;not null"`
	SeasonID                string          `gorm:"column:season_id;index;not null"`
	Status                  Status          `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	ActivationDate          *time.Time      `gorm:"column:activation_date"`
	RefereeMultiplierExpires *time.Time     `gorm:"column:referee_multiplier_expires"`
	TotalShardsEarned       decimal.Decimal `gorm:"column:total_shards_earned;type:decimal(36,18)"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Referral) TableName() string {
	return "referrals"
}

type Params struct {
	ID              string
	ReferrerAddress string
	RefereeAddress  string
	SeasonID        string
}

// New creates a pending referral. Self-referrals are rejected regardless
// of address casing.
func New(p Params) (Referral, error) {
	referrer := strings.ToLower(p.ReferrerAddress)
	referee := strings.ToLower(p.RefereeAddress)

	if referrer == referee {
		return Referral{}, errutil.ValidationFailed("referee address must differ from referrer", nil)
	}

	return Referral{
		ID:                p.ID,
		ReferrerAddress:   referrer,
		RefereeAddress:    referee,
		SeasonID:          p.SeasonID,
		Status:            StatusPending,
		TotalShardsEarned: decimal.Zero,
	}, nil
}

// Activate transitions pending → active once the referee has earned at
// least the activation threshold. It stamps the activation date and opens
// the 30-day bonus window.
func (r Referral) Activate(refereeShards decimal.Decimal, now time.Time) (Referral, error) {
	if r.Status != StatusPending {
		return r, errutil.UnprocessableEntity("referral is not pending activation", nil)
	}
	if refereeShards.LessThan(ActivationThreshold) {
		return r, errutil.ValidationFailed("referee has not reached the activation threshold", nil)
	}

	expires := now.Add(BonusWindow)
	r.Status = StatusActive
	r.ActivationDate = &now
	r.RefereeMultiplierExpires = &expires
	return r, nil
}

// Expire is idempotent: expiring an already-expired referral is a no-op.
func (r Referral) Expire() Referral {
	if r.Status == StatusExpired {
		return r
	}
	r.Status = StatusExpired
	return r
}

// AddEarnedShards accumulates referrer-side bonus shards onto the pair.
func (r Referral) AddEarnedShards(amount decimal.Decimal) (Referral, error) {
	if amount.IsNegative() {
		return r, errutil.ValidationFailed("earned shards adjustment cannot be negative", nil)
	}
	r.TotalShardsEarned = r.TotalShardsEarned.Add(amount)
	return r, nil
}

// IsWithinBonusPeriod reports whether the referee multiplier still
// applies.
func (r *Referral) IsWithinBonusPeriod(now time.Time) bool {
	if r == nil || r.Status != StatusActive || r.RefereeMultiplierExpires == nil {
		return false
	}
	return now.Before(*r.RefereeMultiplierExpires)
}

func (r *Referral) IsActive() bool {
	return r != nil && r.Status == StatusActive
}

// ReferrerRate returns the referrer bonus rate while active, zero
// otherwise.
func (r *Referral) ReferrerRate() decimal.Decimal {
	if r.IsActive() {
		return ReferrerBonusRate
	}
	return decimal.Zero
}

// RefereeMultiplier returns the bonus multiplier while within the bonus
// window, 1 otherwise.
func (r *Referral) RefereeMultiplier(now time.Time) decimal.Decimal {
	if r.IsWithinBonusPeriod(now) {
		return RefereeBonusMultiplier
	}
	return decimal.NewFromInt(1)
}
