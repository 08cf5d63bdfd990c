package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shards-controlplane/services/fraud"
)

func TestDayStart(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 New York on Jan 1 is already Jan 2 in UTC.
	local := time.Date(2025, 1, 1, 23, 30, 0, 0, loc)
	require.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), DayStart(local))

	utc := time.Date(2025, 1, 2, 15, 45, 12, 999, time.UTC)
	require.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), DayStart(utc))
}

func TestCategoryAmounts(t *testing.T) {
	amounts := CategoryAmounts{
		Staking:   d("500"),
		Social:    d("2.5"),
		Developer: d("300"),
		Referral:  d("40"),
	}
	require.True(t, amounts.Total().Equal(d("842.5")))
	require.False(t, amounts.IsZero())
	require.True(t, CategoryAmounts{}.IsZero())
}

func TestNewShardBalanceLowercasesWallet(t *testing.T) {
	balance := NewShardBalance("bal-1", "0xABCdef", "season-1", CategoryAmounts{Staking: d("100")})
	require.Equal(t, "0xabcdef", balance.WalletAddress)
	require.True(t, balance.TotalShards.Equal(d("100")))
}

func TestAddShardsKeepsSumInvariant(t *testing.T) {
	balance := NewShardBalance("bal-1", "0xabc", "season-1", CategoryAmounts{
		Staking: d("100"),
		Social:  d("10"),
	})

	updated := balance.AddShards(CategoryAmounts{
		Staking:  d("50"),
		Referral: d("5"),
	})

	require.True(t, updated.StakingShards.Equal(d("150")))
	require.True(t, updated.SocialShards.Equal(d("10")))
	require.True(t, updated.ReferralShards.Equal(d("5")))

	sum := updated.StakingShards.
		Add(updated.SocialShards).
		Add(updated.DeveloperShards).
		Add(updated.ReferralShards)
	require.True(t, updated.TotalShards.Equal(sum))

	// The original is untouched.
	require.True(t, balance.TotalShards.Equal(d("110")))
}

func TestNewEarningHistoryDerivesDailyTotal(t *testing.T) {
	date := time.Date(2025, 3, 10, 18, 22, 0, 0, time.UTC)
	row, err := NewEarningHistory(HistoryParams{
		ID:            "hist-1",
		WalletAddress: "0xABC",
		SeasonID:      "season-1",
		Date:          date,
		Amounts: CategoryAmounts{
			Staking:   d("590.91"),
			Social:    d("2.5"),
			Developer: d("300"),
			Referral:  d("40"),
		},
		Breakdown: []VaultContribution{
			{VaultAddress: "0xvault", AssetSymbol: "eth", Chain: "ethereum", Shards: d("590.91"), UsdValue: d("5000")},
		},
		Metadata: AccrualMetadata{
			RefereeMultiplier: d("1.2"),
			Fraud:             &fraud.Result{Score: 15, Reasons: []string{"daily earnings exceed the expected variance band"}},
			CalculatedAt:      date,
		},
	})
	require.NoError(t, err)

	require.Equal(t, "0xabc", row.WalletAddress)
	require.Equal(t, DayStart(date), row.Date)
	require.True(t, row.DailyTotal.Equal(d("933.41")))

	breakdown, err := row.Breakdown()
	require.NoError(t, err)
	require.Len(t, breakdown, 1)
	require.Equal(t, "0xvault", breakdown[0].VaultAddress)
	require.True(t, breakdown[0].Shards.Equal(d("590.91")))

	meta, err := row.AccrualMeta()
	require.NoError(t, err)
	require.True(t, meta.RefereeMultiplier.Equal(d("1.2")))
	require.NotNil(t, meta.Fraud)
	require.Equal(t, 15, meta.Fraud.Score)

	amounts := row.Amounts()
	require.True(t, amounts.Total().Equal(row.DailyTotal))
}

func TestAccrualMetaEmpty(t *testing.T) {
	row := &ShardEarningHistory{}
	meta, err := row.AccrualMeta()
	require.NoError(t, err)
	require.Nil(t, meta.Fraud)

	breakdown, err := row.Breakdown()
	require.NoError(t, err)
	require.Nil(t, breakdown)
}
