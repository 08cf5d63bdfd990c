package shard

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shards-controlplane/pkg/config"
	"shards-controlplane/pkg/db/option"
	"shards-controlplane/pkg/errutil"
	"shards-controlplane/pkg/repository"
	"shards-controlplane/services/contribution"
	"shards-controlplane/services/fraud"
	"shards-controlplane/services/referral"
	"shards-controlplane/services/season"
	"shards-controlplane/services/vault"
)

// SocialSource supplies a wallet's YAP points for a day. The real feed is
// not wired yet; NoopSocialSource stands in until it is.
type SocialSource interface {
	ComputeSocialShards(ctx context.Context, walletAddress string, date time.Time) (decimal.Decimal, error)
}

type NoopSocialSource struct{}

func (NoopSocialSource) ComputeSocialShards(ctx context.Context, walletAddress string, date time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// DailyAccrualResult is what callers get back from one accrual: either a
// fresh computation or a replay of the existing ledger row.
type DailyAccrualResult struct {
	WalletAddress     string
	SeasonID          string
	Date              time.Time
	Staking           decimal.Decimal
	Social            decimal.Decimal
	Developer         decimal.Decimal
	Referral          decimal.Decimal
	DailyTotal        decimal.Decimal
	Breakdown         []VaultContribution
	RefereeMultiplier decimal.Decimal
	Fraud             *fraud.Result
	Replayed          bool
}

// Service is the daily accrual orchestrator. For one (wallet, season, day)
// it gathers contributions, runs the calculator and the fraud scorer, and
// writes the ledger row plus the balance upsert in a single transaction.
type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clockwork.Clock

	seasons       repository.Repository[season.Season]
	balances      repository.Repository[ShardBalance]
	positions     repository.Repository[vault.Position]
	contributions repository.Repository[contribution.DeveloperContribution]
	referrals     repository.Repository[referral.Referral]
	history       HistoryRepository

	social SocialSource
	scorer *fraud.Scorer
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Clock  clockwork.Clock
	Config *config.Config

	Social SocialSource `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	history := NewHistoryRepository(HistoryRepositoryParams{DB: p.DB, Clock: p.Clock})

	social := p.Social
	if social == nil {
		social = NoopSocialSource{}
	}

	return &Service{
		db:    p.DB,
		node:  p.Node,
		clock: p.Clock,

		seasons:       repository.ProvideStore[season.Season](p.DB),
		balances:      repository.ProvideStore[ShardBalance](p.DB),
		positions:     repository.ProvideStore[vault.Position](p.DB),
		contributions: repository.ProvideStore[contribution.DeveloperContribution](p.DB),
		referrals:     repository.ProvideStore[referral.Referral](p.DB),
		history:       history,

		social: social,
		scorer: fraud.NewScorer(history, fraudConfig(p.Config)),
	}
}

func fraudConfig(cfg *config.Config) fraud.Config {
	fc := fraud.DefaultConfig()
	if cfg == nil {
		return fc
	}
	if cfg.Accrual.MinTxCount > 0 {
		fc.MinTransactionCount = cfg.Accrual.MinTxCount
	}
	if cfg.Accrual.FraudThreshold > 0 {
		fc.FraudThreshold = decimal.NewFromFloat(cfg.Accrual.FraudThreshold)
	}
	if cfg.Accrual.MaxDailyVariance > 0 {
		fc.MaxDailyVariance = decimal.NewFromFloat(cfg.Accrual.MaxDailyVariance)
	}
	return fc
}

// ProcessDailyAccrual computes and persists one wallet's daily shards.
// Replays are returned unchanged with no further writes.
func (s *Service) ProcessDailyAccrual(ctx context.Context, walletAddress, seasonID string, date time.Time) (*DailyAccrualResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	wallet := strings.ToLower(walletAddress)
	day := DayStart(date)
	now := s.clock.Now()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("wallet_address", wallet),
		zap.String("season_id", seasonID),
		zap.Time("accrual_date", day),
	)

	current, err := s.seasons.FindOne(ctx, &season.Season{ID: seasonID})
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return nil, errutil.UnprocessableEntity("season is not active", nil)
	}

	seasonCtx, err := season.NewContext(current)
	if err != nil {
		return nil, err
	}

	existing, err := s.history.FindByWalletAndDate(ctx, wallet, seasonID, day)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		zapLog.Info("accrual already recorded, replaying ledger row")
		return s.toResult(existing, true)
	}

	staking, breakdown, err := s.computeStaking(ctx, wallet, seasonID, seasonCtx)
	if err != nil {
		return nil, err
	}

	social, err := s.computeSocial(ctx, wallet, day, seasonCtx)
	if err != nil {
		return nil, err
	}

	developer, err := s.computeDeveloper(ctx, wallet, day)
	if err != nil {
		return nil, err
	}

	refereeMultiplier, err := s.refereeMultiplier(ctx, wallet, seasonID, staking.Add(social).Add(developer), now)
	if err != nil {
		return nil, err
	}

	referralBonus, earned, err := s.referrerBonuses(ctx, wallet, seasonID, day, now)
	if err != nil {
		return nil, err
	}

	totals := TotalDaily(DailyInput{
		Staking:           staking,
		Social:            social,
		Developer:         developer,
		ReferralBonus:     referralBonus,
		RefereeMultiplier: refereeMultiplier,
	})

	amounts := CategoryAmounts{
		Staking:   totals.Staking,
		Social:    totals.Social,
		Developer: totals.Developer,
		Referral:  totals.Referral,
	}
	if err := validateAmounts(amounts); err != nil {
		zapLog.Error("computed amounts failed validation", zap.Error(err))
		return nil, err
	}

	fraudResult, err := s.scorer.CheckDailyEarning(ctx, wallet, totals.DailyTotal, seasonID, nil)
	if err != nil {
		return nil, err
	}

	row, err := NewEarningHistory(HistoryParams{
		ID:            s.node.Generate().String(),
		WalletAddress: wallet,
		SeasonID:      seasonID,
		Date:          day,
		Amounts:       amounts,
		Breakdown:     breakdown,
		Metadata: AccrualMetadata{
			RefereeMultiplier: refereeMultiplier,
			Fraud:             fraudResult,
			CalculatedAt:      now,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, row, amounts, earned); err != nil {
		zapLog.Error("failed to persist daily accrual", zap.Error(err))
		return nil, err
	}

	zapLog.Info("daily accrual recorded",
		zap.String("daily_total", totals.DailyTotal.String()),
		zap.Bool("suspicious", fraudResult.IsSuspicious),
	)

	return &DailyAccrualResult{
		WalletAddress:     wallet,
		SeasonID:          seasonID,
		Date:              day,
		Staking:           totals.Staking,
		Social:            totals.Social,
		Developer:         totals.Developer,
		Referral:          totals.Referral,
		DailyTotal:        totals.DailyTotal,
		Breakdown:         breakdown,
		RefereeMultiplier: refereeMultiplier,
		Fraud:             fraudResult,
	}, nil
}

func (s *Service) computeStaking(ctx context.Context, wallet, seasonID string, seasonCtx *season.Context) (decimal.Decimal, []VaultContribution, error) {
	positions, err := s.positions.Find(ctx, &vault.Position{WalletAddress: wallet, SeasonID: seasonID})
	if err != nil {
		return decimal.Zero, nil, err
	}

	total := decimal.Zero
	breakdown := make([]VaultContribution, 0, len(positions))
	for _, position := range positions {
		rate := seasonCtx.RateFor(position.AssetSymbol)
		shards := StakingShards(position.UsdValue, rate, position.LockWeeks)
		total = total.Add(shards)
		breakdown = append(breakdown, VaultContribution{
			VaultAddress: position.VaultAddress,
			AssetSymbol:  position.AssetSymbol,
			Chain:        position.Chain,
			Shards:       RoundShards(shards),
			UsdValue:     position.UsdValue,
		})
	}

	return total, breakdown, nil
}

func (s *Service) computeSocial(ctx context.Context, wallet string, day time.Time, seasonCtx *season.Context) (decimal.Decimal, error) {
	yapPoints, err := s.social.ComputeSocialShards(ctx, wallet, day)
	if err != nil {
		return decimal.Zero, err
	}
	return SocialShards(yapPoints, seasonCtx.SocialConversionRate()), nil
}

func (s *Service) computeDeveloper(ctx context.Context, wallet string, day time.Time) (decimal.Decimal, error) {
	contributions, err := s.contributions.Find(ctx,
		&contribution.DeveloperContribution{WalletAddress: wallet, Verified: true},
		option.ApplyOperator(option.Condition{Field: "distributed_at", Operator: option.GTE, Value: day}),
		option.ApplyOperator(option.Condition{Field: "distributed_at", Operator: option.LT, Value: day.AddDate(0, 0, 1)}),
	)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, c := range contributions {
		if !c.CountsToward(day) {
			continue
		}
		// A zero stored amount means "use the action table".
		var custom *decimal.Decimal
		if !c.ShardsEarned.IsZero() {
			custom = &c.ShardsEarned
		}
		total = total.Add(DeveloperShards(c.ActionType, custom))
	}
	return total, nil
}

// refereeMultiplier checks this wallet's own referral (as referee). The
// other three category totals serve as the referee-shards base; only the
// multiplier side of the bonus applies here.
func (s *Service) refereeMultiplier(ctx context.Context, wallet, seasonID string, base decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	own, err := s.referrals.FindOne(ctx, &referral.Referral{RefereeAddress: wallet, SeasonID: seasonID})
	if err != nil {
		return decimal.Zero, err
	}
	if own == nil || !own.IsActive() {
		return decimal.NewFromInt(1), nil
	}
	return ReferralBonus(base, own, now).RefereeMultiplier, nil
}

type earnedBonus struct {
	referralID string
	amount     decimal.Decimal
}

// referrerBonuses walks the referrals where this wallet is the referrer.
// A referee without a ledger row for the day contributes zero this run;
// the bonus is not deferred or retried.
func (s *Service) referrerBonuses(ctx context.Context, wallet, seasonID string, day time.Time, now time.Time) (decimal.Decimal, []earnedBonus, error) {
	refs, err := s.referrals.Find(ctx, &referral.Referral{ReferrerAddress: wallet, SeasonID: seasonID})
	if err != nil {
		return decimal.Zero, nil, err
	}

	total := decimal.Zero
	var earned []earnedBonus
	for _, r := range refs {
		if !r.IsActive() {
			continue
		}

		refereeRow, err := s.history.FindByWalletAndDate(ctx, r.RefereeAddress, seasonID, day)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if refereeRow == nil {
			continue
		}

		bonus := ReferralBonus(refereeRow.DailyTotal, r, now).ReferrerBonus
		if bonus.IsZero() {
			continue
		}

		total = total.Add(bonus)
		earned = append(earned, earnedBonus{referralID: r.ID, amount: bonus})
	}

	return total, earned, nil
}

func validateAmounts(amounts CategoryAmounts) error {
	if err := ValidateShardAmount(amounts.Staking, CategoryStaking); err != nil {
		return err
	}
	if err := ValidateShardAmount(amounts.Social, CategorySocial); err != nil {
		return err
	}
	if err := ValidateShardAmount(amounts.Developer, CategoryDeveloper); err != nil {
		return err
	}
	return ValidateShardAmount(amounts.Referral, CategoryReferral)
}

// persist writes the ledger row, the balance upsert and any referral
// earned-shards bumps atomically. The ledger row's unique index is the
// backstop against two racers computing the same key.
func (s *Service) persist(ctx context.Context, row *ShardEarningHistory, amounts CategoryAmounts, earned []earnedBonus) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		balanceTx := s.balances.WithTrx(tx)
		referralTx := s.referrals.WithTrx(tx)

		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}

		balance, err := balanceTx.FindOne(ctx, &ShardBalance{WalletAddress: row.WalletAddress, SeasonID: row.SeasonID})
		if err != nil {
			return err
		}

		if balance == nil {
			created := NewShardBalance(s.node.Generate().String(), row.WalletAddress, row.SeasonID, amounts)
			if err := balanceTx.Create(ctx, created); err != nil {
				return err
			}
		} else if !amounts.IsZero() {
			updates := map[string]any{
				"total_shards": gorm.Expr("total_shards + ?", amounts.Total()),
				"updated_at":   s.clock.Now(),
			}
			// Zero category deltas are skipped on purpose.
			if !amounts.Staking.IsZero() {
				updates["staking_shards"] = gorm.Expr("staking_shards + ?", amounts.Staking)
			}
			if !amounts.Social.IsZero() {
				updates["social_shards"] = gorm.Expr("social_shards + ?", amounts.Social)
			}
			if !amounts.Developer.IsZero() {
				updates["developer_shards"] = gorm.Expr("developer_shards + ?", amounts.Developer)
			}
			if !amounts.Referral.IsZero() {
				updates["referral_shards"] = gorm.Expr("referral_shards + ?", amounts.Referral)
			}
			if err := balanceTx.Update(ctx, balance.ID, updates); err != nil {
				return err
			}
		}

		for _, e := range earned {
			updates := map[string]any{
				"total_shards_earned": gorm.Expr("total_shards_earned + ?", e.amount),
				"updated_at":          s.clock.Now(),
			}
			if err := referralTx.Update(ctx, e.referralID, updates); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Service) toResult(row *ShardEarningHistory, replayed bool) (*DailyAccrualResult, error) {
	breakdown, err := row.Breakdown()
	if err != nil {
		return nil, err
	}
	meta, err := row.AccrualMeta()
	if err != nil {
		return nil, err
	}

	multiplier := meta.RefereeMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}

	return &DailyAccrualResult{
		WalletAddress:     row.WalletAddress,
		SeasonID:          row.SeasonID,
		Date:              row.Date,
		Staking:           row.StakingShards,
		Social:            row.SocialShards,
		Developer:         row.DeveloperShards,
		Referral:          row.ReferralShards,
		DailyTotal:        row.DailyTotal,
		Breakdown:         breakdown,
		RefereeMultiplier: multiplier,
		Fraud:             meta.Fraud,
		Replayed:          replayed,
	}, nil
}
