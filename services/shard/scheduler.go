package shard

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"shards-controlplane/pkg/config"
	"shards-controlplane/pkg/task"
)

// defaultScheduleMinute keeps the run clear of the midnight boundary so a
// slow clock never enqueues the wrong day.
const defaultScheduleMinute = 30

type Scheduler struct {
	cfg      *config.Config
	clock    clockwork.Clock
	enqueuer task.Enqueuer
}

type SchedulerParams struct {
	fx.In

	Config   *config.Config
	Clock    clockwork.Clock
	Enqueuer task.Enqueuer
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{cfg: p.Config, clock: p.Clock, enqueuer: p.Enqueuer}
}

// StartScheduler runs the daily loop for the lifetime of the app.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started daily accrual scheduler")

	hour := s.cfg.Accrual.ScheduleHour
	minute := s.cfg.Accrual.ScheduleMinute
	if hour == 0 && minute == 0 {
		minute = defaultScheduleMinute
	}

	for {
		now := s.clock.Now().UTC()
		next := nextRunTime(now, hour, minute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-s.clock.After(sleepDuration):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

// runDaily enqueues the previous UTC day, which is complete by the time
// the scheduler fires.
func (s *Scheduler) runDaily(ctx context.Context) {
	day := DayStart(s.clock.Now().UTC()).AddDate(0, 0, -1)

	taskMsg, err := NewDailyAccrualTask(DailyAccrualPayload{Date: day})
	if err != nil {
		zap.L().Error("[Scheduler] failed to build daily accrual task", zap.Error(err))
		return
	}

	if _, err := s.enqueuer.Enqueue(taskMsg); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue daily accrual", zap.Time("date", day), zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] enqueued daily accrual", zap.Time("date", day))
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
