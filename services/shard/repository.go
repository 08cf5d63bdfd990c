package shard

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"shards-controlplane/pkg/db/option"
	"shards-controlplane/pkg/repository"
)

// HistoryQuery filters a paginated wallet history scan.
type HistoryQuery struct {
	WalletAddress string
	SeasonID      string
	StartDate     *time.Time
	EndDate       *time.Time
	Limit         int
	Offset        int
}

// EarningSummary aggregates a wallet's history over a period.
type EarningSummary struct {
	TotalDays       int64           `json:"total_days"`
	TotalShards     decimal.Decimal `json:"total_shards"`
	AvgDailyShards  decimal.Decimal `json:"avg_daily_shards"`
	StakingShards   decimal.Decimal `json:"staking_shards"`
	SocialShards    decimal.Decimal `json:"social_shards"`
	DeveloperShards decimal.Decimal `json:"developer_shards"`
	ReferralShards  decimal.Decimal `json:"referral_shards"`
}

// HistoryRepository is the read/write contract over the earning ledger.
type HistoryRepository interface {
	FindByWalletAndDate(ctx context.Context, walletAddress, seasonID string, date time.Time) (*ShardEarningHistory, error)
	Create(ctx context.Context, row *ShardEarningHistory) error
	FindByWallet(ctx context.Context, query HistoryQuery) ([]*ShardEarningHistory, int64, error)
	GetAverageDailyShards(ctx context.Context, walletAddress, seasonID string, days int) (decimal.Decimal, error)
	GetSummaryByWallet(ctx context.Context, walletAddress, seasonID string, startDate, endDate *time.Time) (*EarningSummary, error)
}

type historyRepository struct {
	db    *gorm.DB
	repo  repository.Repository[ShardEarningHistory]
	clock clockwork.Clock
}

type HistoryRepositoryParams struct {
	fx.In

	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewHistoryRepository(p HistoryRepositoryParams) HistoryRepository {
	return &historyRepository{
		db:    p.DB,
		repo:  repository.ProvideStore[ShardEarningHistory](p.DB),
		clock: p.Clock,
	}
}

func (r *historyRepository) FindByWalletAndDate(ctx context.Context, walletAddress, seasonID string, date time.Time) (*ShardEarningHistory, error) {
	return r.repo.FindOne(ctx, &ShardEarningHistory{
		WalletAddress: strings.ToLower(walletAddress),
		SeasonID:      seasonID,
		Date:          DayStart(date),
	})
}

func (r *historyRepository) Create(ctx context.Context, row *ShardEarningHistory) error {
	return r.repo.Create(ctx, row)
}

func (r *historyRepository) FindByWallet(ctx context.Context, query HistoryQuery) ([]*ShardEarningHistory, int64, error) {
	filter := &ShardEarningHistory{
		WalletAddress: strings.ToLower(query.WalletAddress),
		SeasonID:      query.SeasonID,
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "date",
			OrderBy: "desc",
			Allow:   map[string]bool{"date": true},
		}),
		option.WithLimit(query.Limit),
		option.WithOffset(query.Offset),
	}
	countOpts := []option.QueryOption{}

	if query.StartDate != nil {
		cond := option.ApplyOperator(option.Condition{Field: "date", Operator: option.GTE, Value: DayStart(*query.StartDate)})
		opts = append(opts, cond)
		countOpts = append(countOpts, cond)
	}
	if query.EndDate != nil {
		cond := option.ApplyOperator(option.Condition{Field: "date", Operator: option.LTE, Value: DayStart(*query.EndDate)})
		opts = append(opts, cond)
		countOpts = append(countOpts, cond)
	}

	rows, err := r.repo.Find(ctx, filter, opts...)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	countTx := option.Apply(r.db.WithContext(ctx).Model(&ShardEarningHistory{}).Where(filter), countOpts...)
	if err := countTx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// GetAverageDailyShards averages the daily totals present in the trailing
// window. Days without a row do not drag the average down.
func (r *historyRepository) GetAverageDailyShards(ctx context.Context, walletAddress, seasonID string, days int) (decimal.Decimal, error) {
	since := DayStart(r.clock.Now()).AddDate(0, 0, -days)

	var average decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&ShardEarningHistory{}).
		Select("AVG(daily_total)").
		Where("wallet_address = ? AND season_id = ? AND date >= ?", strings.ToLower(walletAddress), seasonID, since).
		Scan(&average).Error
	if err != nil {
		return decimal.Zero, err
	}

	if !average.Valid {
		return decimal.Zero, nil
	}
	return average.Decimal, nil
}

func (r *historyRepository) GetSummaryByWallet(ctx context.Context, walletAddress, seasonID string, startDate, endDate *time.Time) (*EarningSummary, error) {
	tx := r.db.WithContext(ctx).
		Model(&ShardEarningHistory{}).
		Where("wallet_address = ? AND season_id = ?", strings.ToLower(walletAddress), seasonID)

	if startDate != nil {
		tx = tx.Where("date >= ?", DayStart(*startDate))
	}
	if endDate != nil {
		tx = tx.Where("date <= ?", DayStart(*endDate))
	}

	var row struct {
		TotalDays       int64
		TotalShards     decimal.NullDecimal
		AvgDailyShards  decimal.NullDecimal
		StakingShards   decimal.NullDecimal
		SocialShards    decimal.NullDecimal
		DeveloperShards decimal.NullDecimal
		ReferralShards  decimal.NullDecimal
	}

	err := tx.Select(
		"COUNT(*) AS total_days, " +
			"SUM(daily_total) AS total_shards, " +
			"AVG(daily_total) AS avg_daily_shards, " +
			"SUM(staking_shards) AS staking_shards, " +
			"SUM(social_shards) AS social_shards, " +
			"SUM(developer_shards) AS developer_shards, " +
			"SUM(referral_shards) AS referral_shards",
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	summary := &EarningSummary{
		TotalDays:       row.TotalDays,
		TotalShards:     row.TotalShards.Decimal,
		AvgDailyShards:  row.AvgDailyShards.Decimal,
		StakingShards:   row.StakingShards.Decimal,
		SocialShards:    row.SocialShards.Decimal,
		DeveloperShards: row.DeveloperShards.Decimal,
		ReferralShards:  row.ReferralShards.Decimal,
	}
	return summary, nil
}
