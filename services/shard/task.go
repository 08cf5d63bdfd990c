package shard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"shards-controlplane/pkg/config"
	"shards-controlplane/services/season"
)

const (
	TaskDailyAccrual = "shards:daily_accrual"

	defaultBatchSize = 10
)

// DailyAccrualPayload drives one batch run. An empty SeasonID means
// "resolve the active season at run time".
type DailyAccrualPayload struct {
	SeasonID string    `json:"season_id,omitempty"`
	Date     time.Time `json:"date"`
	TraceID  string    `json:"trace_id,omitempty"`
}

func NewDailyAccrualTask(p DailyAccrualPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyAccrual, payload), nil
}

type Task struct {
	db      *gorm.DB
	cfg     *config.Config
	seasons *season.Service
	svc     *Service
}

type TaskParams struct {
	fx.In

	DB      *gorm.DB
	Config  *config.Config
	Seasons *season.Service
	Service *Service
}

func NewTask(p TaskParams) *Task {
	return &Task{
		db:      p.DB,
		cfg:     p.Config,
		seasons: p.Seasons,
		svc:     p.Service,
	}
}

// HandleDailyAccrualTask is the asynq worker entrypoint for a full daily
// batch run.
func (t *Task) HandleDailyAccrualTask(ctx context.Context, task *asynq.Task) error {
	var payload DailyAccrualPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	_, err := t.RunDailyBatch(ctx, payload)
	return err
}

// BatchResult summarizes one daily batch run.
type BatchResult struct {
	SeasonID  string `json:"season_id"`
	Date      string `json:"date"`
	Wallets   int    `json:"wallets"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// RunDailyBatch accrues the given day for every wallet that had any
// activity in the season. Per-wallet failures are logged and skipped so
// one bad wallet never blocks the rest of the batch.
func (t *Task) RunDailyBatch(ctx context.Context, payload DailyAccrualPayload) (*BatchResult, error) {
	zapLog := zap.L().With(
		zap.String("task_type", TaskDailyAccrual),
		zap.Time("date", payload.Date),
		zap.String("trace_id", payload.TraceID),
	)

	seasonID := payload.SeasonID
	if seasonID == "" {
		active, err := t.seasons.FindActive(ctx)
		if err != nil {
			return nil, err
		}
		if active == nil {
			zapLog.Warn("no active season, skipping daily accrual batch")
			return &BatchResult{Date: DayStart(payload.Date).Format(time.DateOnly)}, nil
		}
		seasonID = active.ID
	}

	day := DayStart(payload.Date)
	zapLog = zapLog.With(zap.String("season_id", seasonID))
	zapLog.Info("start daily accrual batch")

	wallets, err := t.collectWallets(ctx, seasonID, day)
	if err != nil {
		return nil, err
	}

	batchSize := t.cfg.Accrual.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	result := &BatchResult{
		SeasonID: seasonID,
		Date:     day.Format(time.DateOnly),
		Wallets:  len(wallets),
	}

	for start := 0; start < len(wallets); start += batchSize {
		end := start + batchSize
		if end > len(wallets) {
			end = len(wallets)
		}

		processed := make([]bool, end-start)
		wg, gctx := errgroup.WithContext(ctx)
		for i, wallet := range wallets[start:end] {
			i, wallet := i, wallet
			wg.Go(func() error {
				if _, err := t.svc.ProcessDailyAccrual(gctx, wallet, seasonID, day); err != nil {
					zapLog.Error("daily accrual failed for wallet",
						zap.String("wallet_address", wallet),
						zap.Error(err),
					)
					return nil
				}
				processed[i] = true
				return nil
			})
		}
		_ = wg.Wait()

		for _, ok := range processed {
			if ok {
				result.Processed++
			} else {
				result.Failed++
			}
		}
	}

	zapLog.Info("finished daily accrual batch",
		zap.Int("wallets", result.Wallets),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// collectWallets gathers every distinct wallet with activity relevant to
// the day: open vault positions, contributions distributed that day, and
// both sides of every referral in the season.
func (t *Task) collectWallets(ctx context.Context, seasonID string, day time.Time) ([]string, error) {
	seen := make(map[string]struct{})

	var positionWallets []string
	if err := t.db.WithContext(ctx).
		Table("vault_positions").
		Where("season_id = ?", seasonID).
		Distinct("wallet_address").
		Pluck("wallet_address", &positionWallets).Error; err != nil {
		return nil, err
	}

	var contributionWallets []string
	if err := t.db.WithContext(ctx).
		Table("developer_contributions").
		Where("season_id = ? AND verified = ? AND distributed_at >= ? AND distributed_at < ?",
			seasonID, true, day, day.AddDate(0, 0, 1)).
		Distinct("wallet_address").
		Pluck("wallet_address", &contributionWallets).Error; err != nil {
		return nil, err
	}

	var referrerWallets []string
	if err := t.db.WithContext(ctx).
		Table("referrals").
		Where("season_id = ?", seasonID).
		Distinct("referrer_address").
		Pluck("referrer_address", &referrerWallets).Error; err != nil {
		return nil, err
	}

	var refereeWallets []string
	if err := t.db.WithContext(ctx).
		Table("referrals").
		Where("season_id = ?", seasonID).
		Distinct("referee_address").
		Pluck("referee_address", &refereeWallets).Error; err != nil {
		return nil, err
	}

	wallets := make([]string, 0, len(positionWallets)+len(contributionWallets))
	for _, group := range [][]string{positionWallets, contributionWallets, refereeWallets, referrerWallets} {
		for _, wallet := range group {
			if _, ok := seen[wallet]; ok {
				continue
			}
			seen[wallet] = struct{}{}
			wallets = append(wallets, wallet)
		}
	}
	return wallets, nil
}
