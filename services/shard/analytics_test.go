package shard

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type historyMock struct {
	findByWalletAndDateFn func(ctx context.Context, walletAddress, seasonID string, date time.Time) (*ShardEarningHistory, error)
	createFn              func(ctx context.Context, row *ShardEarningHistory) error
	findByWalletFn        func(ctx context.Context, query HistoryQuery) ([]*ShardEarningHistory, int64, error)
	averageFn             func(ctx context.Context, walletAddress, seasonID string, days int) (decimal.Decimal, error)
	summaryFn             func(ctx context.Context, walletAddress, seasonID string, startDate, endDate *time.Time) (*EarningSummary, error)
}

func (m *historyMock) FindByWalletAndDate(ctx context.Context, walletAddress, seasonID string, date time.Time) (*ShardEarningHistory, error) {
	if m.findByWalletAndDateFn != nil {
		return m.findByWalletAndDateFn(ctx, walletAddress, seasonID, date)
	}
	return nil, nil
}

func (m *historyMock) Create(ctx context.Context, row *ShardEarningHistory) error {
	if m.createFn != nil {
		return m.createFn(ctx, row)
	}
	return nil
}

func (m *historyMock) FindByWallet(ctx context.Context, query HistoryQuery) ([]*ShardEarningHistory, int64, error) {
	if m.findByWalletFn != nil {
		return m.findByWalletFn(ctx, query)
	}
	return nil, 0, nil
}

func (m *historyMock) GetAverageDailyShards(ctx context.Context, walletAddress, seasonID string, days int) (decimal.Decimal, error) {
	if m.averageFn != nil {
		return m.averageFn(ctx, walletAddress, seasonID, days)
	}
	return decimal.Zero, nil
}

func (m *historyMock) GetSummaryByWallet(ctx context.Context, walletAddress, seasonID string, startDate, endDate *time.Time) (*EarningSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, walletAddress, seasonID, startDate, endDate)
	}
	return &EarningSummary{}, nil
}

func historyRows(days ...time.Time) []*ShardEarningHistory {
	rows := make([]*ShardEarningHistory, 0, len(days))
	for _, day := range days {
		rows = append(rows, &ShardEarningHistory{
			WalletAddress: "0xabc",
			SeasonID:      "season-1",
			Date:          DayStart(day),
			DailyTotal:    d("100"),
		})
	}
	return rows
}

func newAnalytics(history HistoryRepository, now time.Time) *Analytics {
	return NewAnalytics(AnalyticsParams{
		History: history,
		Clock:   clockwork.NewFakeClockAt(now),
	})
}

func TestEarningTrendUp(t *testing.T) {
	averages := map[int]decimal.Decimal{
		7:  d("150"),
		14: d("100"),
	}
	analytics := newAnalytics(&historyMock{
		averageFn: func(_ context.Context, _, _ string, days int) (decimal.Decimal, error) {
			return averages[days], nil
		},
	}, time.Now())

	trend, err := analytics.EarningTrend(context.Background(), "0xabc", "season-1", 7)
	require.NoError(t, err)
	require.Equal(t, TrendUp, trend.Direction)
	require.True(t, trend.Percentage.Equal(d("50")))
}

func TestEarningTrendDown(t *testing.T) {
	averages := map[int]decimal.Decimal{
		7:  d("60"),
		14: d("100"),
	}
	analytics := newAnalytics(&historyMock{
		averageFn: func(_ context.Context, _, _ string, days int) (decimal.Decimal, error) {
			return averages[days], nil
		},
	}, time.Now())

	trend, err := analytics.EarningTrend(context.Background(), "0xabc", "season-1", 7)
	require.NoError(t, err)
	require.Equal(t, TrendDown, trend.Direction)
	require.True(t, trend.Percentage.Equal(d("-40")))
}

func TestEarningTrendStableWithinBand(t *testing.T) {
	averages := map[int]decimal.Decimal{
		7:  d("103"),
		14: d("100"),
	}
	analytics := newAnalytics(&historyMock{
		averageFn: func(_ context.Context, _, _ string, days int) (decimal.Decimal, error) {
			return averages[days], nil
		},
	}, time.Now())

	trend, err := analytics.EarningTrend(context.Background(), "0xabc", "season-1", 7)
	require.NoError(t, err)
	require.Equal(t, TrendStable, trend.Direction)
	require.True(t, trend.Percentage.Equal(d("3")))
}

func TestEarningTrendZeroPreviousIsStable(t *testing.T) {
	analytics := newAnalytics(&historyMock{
		averageFn: func(_ context.Context, _, _ string, days int) (decimal.Decimal, error) {
			if days == 7 {
				return d("500"), nil
			}
			return decimal.Zero, nil
		},
	}, time.Now())

	trend, err := analytics.EarningTrend(context.Background(), "0xabc", "season-1", 7)
	require.NoError(t, err)
	require.Equal(t, TrendStable, trend.Direction)
	require.True(t, trend.Percentage.IsZero())
}

func TestTopEarningDays(t *testing.T) {
	rows := []*ShardEarningHistory{
		{ID: "a", DailyTotal: d("100")},
		{ID: "b", DailyTotal: d("900")},
		{ID: "c", DailyTotal: d("500")},
		{ID: "d", DailyTotal: d("700")},
	}
	analytics := newAnalytics(&historyMock{
		findByWalletFn: func(_ context.Context, _ HistoryQuery) ([]*ShardEarningHistory, int64, error) {
			return rows, int64(len(rows)), nil
		},
	}, time.Now())

	top, err := analytics.TopEarningDays(context.Background(), "0xabc", "season-1", 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "b", top[0].ID)
	require.Equal(t, "d", top[1].ID)
	require.Equal(t, "c", top[2].ID)
}

func TestStreaks(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Active on the 10th, 11th, 12th, then the 15th and 16th.
	rows := historyRows(
		base.AddDate(0, 0, 9),
		base.AddDate(0, 0, 10),
		base.AddDate(0, 0, 11),
		base.AddDate(0, 0, 14),
		base.AddDate(0, 0, 15),
	)
	analytics := newAnalytics(&historyMock{
		findByWalletFn: func(_ context.Context, _ HistoryQuery) ([]*ShardEarningHistory, int64, error) {
			return rows, int64(len(rows)), nil
		},
	}, now)

	streaks, err := analytics.Streaks(context.Background(), "0xabc", "season-1")
	require.NoError(t, err)
	require.Equal(t, 3, streaks.LongestStreak)
	require.Equal(t, 2, streaks.CurrentStreak)
	require.Equal(t, 5, streaks.TotalActiveDays)
	require.NotNil(t, streaks.LastActiveDate)
	require.Equal(t, base.AddDate(0, 0, 15), *streaks.LastActiveDate)
}

func TestStreaksStaleHistoryHasNoCurrentStreak(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := historyRows(
		base.AddDate(0, 0, 9),
		base.AddDate(0, 0, 10),
		base.AddDate(0, 0, 11),
	)
	analytics := newAnalytics(&historyMock{
		findByWalletFn: func(_ context.Context, _ HistoryQuery) ([]*ShardEarningHistory, int64, error) {
			return rows, int64(len(rows)), nil
		},
	}, now)

	streaks, err := analytics.Streaks(context.Background(), "0xabc", "season-1")
	require.NoError(t, err)
	require.Equal(t, 3, streaks.LongestStreak)
	require.Zero(t, streaks.CurrentStreak)
	require.Equal(t, 3, streaks.TotalActiveDays)
}

func TestStreaksEmptyHistory(t *testing.T) {
	analytics := newAnalytics(&historyMock{}, time.Now())

	streaks, err := analytics.Streaks(context.Background(), "0xabc", "season-1")
	require.NoError(t, err)
	require.Zero(t, streaks.LongestStreak)
	require.Zero(t, streaks.CurrentStreak)
	require.Zero(t, streaks.TotalActiveDays)
	require.Nil(t, streaks.LastActiveDate)
}
