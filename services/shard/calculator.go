package shard

import (
	"time"

	"github.com/shopspring/decimal"

	"shards-controlplane/pkg/errutil"
	"shards-controlplane/services/referral"
)

// Category labels the four accrual sources.
type Category string

const (
	CategoryStaking   Category = "staking"
	CategorySocial    Category = "social"
	CategoryDeveloper Category = "developer"
	CategoryReferral  Category = "referral"
)

var (
	one      = decimal.NewFromInt(1)
	two      = decimal.NewFromInt(2)
	thousand = decimal.NewFromInt(1000)

	// MaxReferrerBonusPerDay caps the referrer bonus earned from a single
	// referral in one day.
	MaxReferrerBonusPerDay = decimal.NewFromInt(500)

	// developerActionRewards is the fixed per-action reward table used
	// when a contribution carries no explicit amount.
	developerActionRewards = map[string]decimal.Decimal{
		"smart_contract": decimal.NewFromInt(500),
		"dapp":           decimal.NewFromInt(300),
		"tool":           decimal.NewFromInt(200),
		"bug_bounty":     decimal.NewFromInt(400),
		"documentation":  decimal.NewFromInt(100),
	}

	// categoryCeilings are anti-abuse caps enforced before persistence.
	categoryCeilings = map[Category]decimal.Decimal{
		CategoryStaking:   decimal.NewFromInt(100000),
		CategorySocial:    decimal.NewFromInt(10000),
		CategoryDeveloper: decimal.NewFromInt(50000),
		CategoryReferral:  decimal.NewFromInt(10000),
	}
)

// LockMultiplier returns the staking bonus factor for a lock commitment:
// 1 below 4 weeks, 2 above 48, linear in between.
func LockMultiplier(weeks int) decimal.Decimal {
	switch {
	case weeks < 4:
		return one
	case weeks > 48:
		return two
	default:
		return one.Add(decimal.NewFromInt(int64(weeks - 4)).Div(decimal.NewFromInt(44)))
	}
}

// StakingShards converts a position's USD value into shards at the
// season's per-$1000 rate, scaled by the lock multiplier.
func StakingShards(usdValue, rate decimal.Decimal, lockWeeks int) decimal.Decimal {
	if usdValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return usdValue.Div(thousand).Mul(rate).Mul(LockMultiplier(lockWeeks))
}

// SocialShards converts YAP points into shards at the season conversion
// rate.
func SocialShards(yapPoints, conversionRate decimal.Decimal) decimal.Decimal {
	if yapPoints.LessThanOrEqual(decimal.Zero) || conversionRate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return yapPoints.Div(conversionRate)
}

// DeveloperShards resolves the reward for a contribution: an explicit
// non-negative amount wins, otherwise the per-action table applies.
// Unknown action types with no amount yield zero.
func DeveloperShards(actionType string, customAmount *decimal.Decimal) decimal.Decimal {
	if customAmount != nil && !customAmount.IsNegative() {
		return *customAmount
	}
	if reward, ok := developerActionRewards[actionType]; ok {
		return reward
	}
	return decimal.Zero
}

// BonusResult carries both sides of the referral bonus: the referrer's cut
// and the multiplier applied to the referee's own earnings.
type BonusResult struct {
	ReferrerBonus     decimal.Decimal
	RefereeMultiplier decimal.Decimal
}

// ReferralBonus computes the bonus pair for an active referral. Inactive
// referrals earn nothing and leave the multiplier at 1.
func ReferralBonus(refereeShards decimal.Decimal, ref *referral.Referral, now time.Time) BonusResult {
	if !ref.IsActive() {
		return BonusResult{ReferrerBonus: decimal.Zero, RefereeMultiplier: one}
	}

	bonus := refereeShards.Mul(referral.ReferrerBonusRate)
	if bonus.GreaterThan(MaxReferrerBonusPerDay) {
		bonus = MaxReferrerBonusPerDay
	}
	if bonus.IsNegative() {
		bonus = decimal.Zero
	}

	return BonusResult{
		ReferrerBonus:     bonus,
		RefereeMultiplier: ref.RefereeMultiplier(now),
	}
}

// DailyInput is the raw material for one wallet's daily total.
type DailyInput struct {
	Staking           decimal.Decimal
	Social            decimal.Decimal
	Developer         decimal.Decimal
	ReferralBonus     decimal.Decimal
	RefereeMultiplier decimal.Decimal
}

// DailyTotals is the category breakdown after the referee multiplier is
// applied.
type DailyTotals struct {
	Staking    decimal.Decimal
	Social     decimal.Decimal
	Developer  decimal.Decimal
	Referral   decimal.Decimal
	DailyTotal decimal.Decimal
}

// TotalDaily applies the referee multiplier to the staking, social and
// developer categories and sums all four. The referral bonus is
// deliberately excluded from the multiplier; this asymmetry is a program
// rule.
func TotalDaily(in DailyInput) DailyTotals {
	multiplier := in.RefereeMultiplier
	if multiplier.IsZero() {
		multiplier = one
	}

	totals := DailyTotals{
		Staking:   RoundShards(in.Staking.Mul(multiplier)),
		Social:    RoundShards(in.Social.Mul(multiplier)),
		Developer: RoundShards(in.Developer.Mul(multiplier)),
		Referral:  RoundShards(in.ReferralBonus),
	}
	totals.DailyTotal = totals.Staking.Add(totals.Social).Add(totals.Developer).Add(totals.Referral)
	return totals
}

// RoundShards rounds to 2 decimal places, half-up.
func RoundShards(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// ValidateShardAmount guards persistence against negative or absurdly
// large category amounts. It never corrects, only rejects.
func ValidateShardAmount(amount decimal.Decimal, category Category) error {
	if amount.IsNegative() {
		return errutil.ValidationFailed("shard amount cannot be negative", nil)
	}

	ceiling, ok := categoryCeilings[category]
	if !ok {
		return errutil.ValidationFailed("unknown shard category", nil)
	}
	if amount.GreaterThan(ceiling) {
		return errutil.ValidationFailed("shard amount exceeds the category ceiling", nil)
	}
	return nil
}
