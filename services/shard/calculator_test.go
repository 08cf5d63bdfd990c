package shard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shards-controlplane/services/referral"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLockMultiplierBounds(t *testing.T) {
	require.True(t, LockMultiplier(0).Equal(d("1")))
	require.True(t, LockMultiplier(3).Equal(d("1")))
	require.True(t, LockMultiplier(4).Equal(d("1")))
	require.True(t, LockMultiplier(48).Equal(d("2")))
	require.True(t, LockMultiplier(49).Equal(d("2")))
	require.True(t, LockMultiplier(100).Equal(d("2")))
}

func TestLockMultiplierLinearMidpoint(t *testing.T) {
	// 26 weeks sits halfway between 4 and 48.
	mid := LockMultiplier(26)
	require.True(t, mid.Equal(one.Add(decimal.NewFromInt(22).Div(decimal.NewFromInt(44)))))
	require.True(t, mid.Equal(d("1.5")))
}

func TestLockMultiplierMonotonic(t *testing.T) {
	prev := LockMultiplier(0)
	for weeks := 1; weeks <= 60; weeks++ {
		cur := LockMultiplier(weeks)
		require.True(t, cur.GreaterThanOrEqual(prev), "multiplier decreased at %d weeks", weeks)
		prev = cur
	}
}

func TestStakingShards(t *testing.T) {
	// $5000 at rate 100 with no lock: 5000/1000 * 100 = 500.
	got := StakingShards(d("5000"), d("100"), 0)
	require.True(t, got.Equal(d("500")))

	// A 26-week lock applies the 1.5x multiplier.
	locked := StakingShards(d("5000"), d("100"), 26)
	require.True(t, locked.Equal(d("750")))
}

func TestStakingShardsNonPositiveValue(t *testing.T) {
	require.True(t, StakingShards(d("0"), d("100"), 10).IsZero())
	require.True(t, StakingShards(d("-25"), d("100"), 10).IsZero())
}

func TestSocialShards(t *testing.T) {
	// 250 YAP at 100 points per shard.
	got := SocialShards(d("250"), d("100"))
	require.True(t, got.Equal(d("2.5")))

	require.True(t, SocialShards(d("0"), d("100")).IsZero())
	require.True(t, SocialShards(d("-10"), d("100")).IsZero())
	require.True(t, SocialShards(d("250"), d("0")).IsZero())
}

func TestDeveloperShards(t *testing.T) {
	require.True(t, DeveloperShards("smart_contract", nil).Equal(d("500")))
	require.True(t, DeveloperShards("dapp", nil).Equal(d("300")))
	require.True(t, DeveloperShards("tool", nil).Equal(d("200")))
	require.True(t, DeveloperShards("bug_bounty", nil).Equal(d("400")))
	require.True(t, DeveloperShards("documentation", nil).Equal(d("100")))
	require.True(t, DeveloperShards("unknown", nil).IsZero())
}

func TestDeveloperShardsCustomAmount(t *testing.T) {
	custom := d("750")
	require.True(t, DeveloperShards("dapp", &custom).Equal(custom))

	// Negative custom amounts fall back to the action table.
	negative := d("-50")
	require.True(t, DeveloperShards("dapp", &negative).Equal(d("300")))

	zero := decimal.Zero
	require.True(t, DeveloperShards("dapp", &zero).IsZero())
}

func activeReferral(now time.Time) *referral.Referral {
	activation := now.Add(-24 * time.Hour)
	expires := activation.Add(referral.BonusWindow)
	return &referral.Referral{
		ID:                       "ref-1",
		ReferrerAddress:          "0xaaa",
		RefereeAddress:           "0xbbb",
		SeasonID:                 "season-1",
		Status:                   referral.StatusActive,
		ActivationDate:           &activation,
		RefereeMultiplierExpires: &expires,
	}
}

func TestReferralBonusActive(t *testing.T) {
	now := time.Now().UTC()
	ref := activeReferral(now)

	result := ReferralBonus(d("400"), ref, now)
	require.True(t, result.ReferrerBonus.Equal(d("40")))
	require.True(t, result.RefereeMultiplier.Equal(referral.RefereeBonusMultiplier))
}

func TestReferralBonusCapped(t *testing.T) {
	now := time.Now().UTC()
	ref := activeReferral(now)

	// 10% of 10000 exceeds the per-day cap.
	result := ReferralBonus(d("10000"), ref, now)
	require.True(t, result.ReferrerBonus.Equal(MaxReferrerBonusPerDay))
}

func TestReferralBonusInactive(t *testing.T) {
	now := time.Now().UTC()
	ref := activeReferral(now)
	ref.Status = referral.StatusPending

	result := ReferralBonus(d("400"), ref, now)
	require.True(t, result.ReferrerBonus.IsZero())
	require.True(t, result.RefereeMultiplier.Equal(d("1")))
}

func TestReferralBonusMultiplierExpired(t *testing.T) {
	now := time.Now().UTC()
	ref := activeReferral(now)
	expired := now.Add(-time.Hour)
	ref.RefereeMultiplierExpires = &expired

	result := ReferralBonus(d("400"), ref, now)
	require.True(t, result.ReferrerBonus.Equal(d("40")))
	require.True(t, result.RefereeMultiplier.Equal(d("1")))
}

func TestTotalDailyAppliesMultiplierAsymmetrically(t *testing.T) {
	totals := TotalDaily(DailyInput{
		Staking:           d("100"),
		Social:            d("10"),
		Developer:         d("50"),
		ReferralBonus:     d("40"),
		RefereeMultiplier: d("1.2"),
	})

	require.True(t, totals.Staking.Equal(d("120")))
	require.True(t, totals.Social.Equal(d("12")))
	require.True(t, totals.Developer.Equal(d("60")))
	// The referral bonus never gets the referee multiplier.
	require.True(t, totals.Referral.Equal(d("40")))
	require.True(t, totals.DailyTotal.Equal(d("232")))
}

func TestTotalDailyZeroMultiplierDefaultsToOne(t *testing.T) {
	totals := TotalDaily(DailyInput{Staking: d("100")})
	require.True(t, totals.Staking.Equal(d("100")))
	require.True(t, totals.DailyTotal.Equal(d("100")))
}

func TestTotalDailySumsRoundedCategories(t *testing.T) {
	totals := TotalDaily(DailyInput{
		Staking:           d("0.005"),
		Social:            d("0.004"),
		RefereeMultiplier: d("1"),
	})

	require.True(t, totals.Staking.Equal(d("0.01")))
	require.True(t, totals.Social.IsZero())
	require.True(t, totals.DailyTotal.Equal(d("0.01")))
}

func TestRoundShards(t *testing.T) {
	require.True(t, RoundShards(d("590.909090")).Equal(d("590.91")))
	require.True(t, RoundShards(d("2.505")).Equal(d("2.51")))
	require.True(t, RoundShards(d("2.504")).Equal(d("2.5")))
}

func TestValidateShardAmount(t *testing.T) {
	require.NoError(t, ValidateShardAmount(d("100"), CategoryStaking))
	require.NoError(t, ValidateShardAmount(d("100000"), CategoryStaking))

	require.Error(t, ValidateShardAmount(d("-1"), CategoryStaking))
	require.Error(t, ValidateShardAmount(d("100000.01"), CategoryStaking))
	require.Error(t, ValidateShardAmount(d("10000.01"), CategorySocial))
	require.Error(t, ValidateShardAmount(d("50000.01"), CategoryDeveloper))
	require.Error(t, ValidateShardAmount(d("10000.01"), CategoryReferral))
	require.Error(t, ValidateShardAmount(d("1"), Category("unknown")))
}
