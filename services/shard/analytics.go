package shard

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// topEarningWindow bounds how much history the top-days query scans.
const (
	topEarningWindowDays = 365
	topEarningWindowRows = 1000
)

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// EarningTrend compares the recent rolling average against the preceding
// period.
type EarningTrend struct {
	CurrentAvg  decimal.Decimal `json:"current_avg"`
	PreviousAvg decimal.Decimal `json:"previous_avg"`
	Percentage  decimal.Decimal `json:"percentage"`
	Direction   TrendDirection  `json:"direction"`
}

// StreakSummary reports consecutive-day activity runs.
type StreakSummary struct {
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
	TotalActiveDays int        `json:"total_active_days"`
	LastActiveDate  *time.Time `json:"last_active_date,omitempty"`
}

// Analytics is the read side over the earning ledger.
type Analytics struct {
	history HistoryRepository
	clock   clockwork.Clock
}

type AnalyticsParams struct {
	fx.In
	History HistoryRepository
	Clock   clockwork.Clock
}

func NewAnalytics(p AnalyticsParams) *Analytics {
	return &Analytics{history: p.History, clock: p.Clock}
}

var trendBand = decimal.NewFromInt(5)

// EarningTrend compares the average over the last N days against the
// average over the last 2N days. A zero previous average always reads as
// stable.
func (a *Analytics) EarningTrend(ctx context.Context, walletAddress, seasonID string, days int) (*EarningTrend, error) {
	current, err := a.history.GetAverageDailyShards(ctx, walletAddress, seasonID, days)
	if err != nil {
		return nil, err
	}
	previous, err := a.history.GetAverageDailyShards(ctx, walletAddress, seasonID, days*2)
	if err != nil {
		return nil, err
	}

	trend := &EarningTrend{
		CurrentAvg:  current,
		PreviousAvg: previous,
		Percentage:  decimal.Zero,
		Direction:   TrendStable,
	}

	if previous.IsZero() {
		return trend, nil
	}

	trend.Percentage = current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
	switch {
	case trend.Percentage.GreaterThan(trendBand):
		trend.Direction = TrendUp
	case trend.Percentage.LessThan(trendBand.Neg()):
		trend.Direction = TrendDown
	}

	return trend, nil
}

// TopEarningDays returns the highest-earning days, best first. Fewer rows
// come back when the wallet has less history.
func (a *Analytics) TopEarningDays(ctx context.Context, walletAddress, seasonID string, limit int) ([]*ShardEarningHistory, error) {
	start := DayStart(a.clock.Now()).AddDate(0, 0, -topEarningWindowDays)
	rows, _, err := a.history.FindByWallet(ctx, HistoryQuery{
		WalletAddress: walletAddress,
		SeasonID:      seasonID,
		StartDate:     &start,
		Limit:         topEarningWindowRows,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DailyTotal.GreaterThan(rows[j].DailyTotal)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Streaks computes the longest run of consecutive active days and the run
// ending at the most recent entry. The current streak only counts when the
// last entry is today or yesterday; a single missing day breaks a run.
func (a *Analytics) Streaks(ctx context.Context, walletAddress, seasonID string) (*StreakSummary, error) {
	rows, _, err := a.history.FindByWallet(ctx, HistoryQuery{
		WalletAddress: walletAddress,
		SeasonID:      seasonID,
		Limit:         topEarningWindowRows,
	})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return &StreakSummary{}, nil
	}

	days := make([]time.Time, len(rows))
	for i, row := range rows {
		days[i] = DayStart(row.Date)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	last := days[len(days)-1]
	current := 0
	today := DayStart(a.clock.Now())
	if last.Equal(today) || last.Equal(today.AddDate(0, 0, -1)) {
		current = run
	}

	return &StreakSummary{
		CurrentStreak:   current,
		LongestStreak:   longest,
		TotalActiveDays: len(days),
		LastActiveDate:  &last,
	}, nil
}

// Summary proxies the ledger aggregate query for a wallet and period.
func (a *Analytics) Summary(ctx context.Context, walletAddress, seasonID string, startDate, endDate *time.Time) (*EarningSummary, error) {
	return a.history.GetSummaryByWallet(ctx, walletAddress, seasonID, startDate, endDate)
}

// History exposes the paginated ledger scan.
func (a *Analytics) History(ctx context.Context, query HistoryQuery) ([]*ShardEarningHistory, int64, error) {
	return a.history.FindByWallet(ctx, query)
}
