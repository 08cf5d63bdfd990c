package shard

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("shard.service",
	fx.Provide(
		NewHistoryRepository,
		NewService,
		NewAnalytics,
		NewTask,
	),
)

// Worker wires the asynq handlers and the daily scheduler on top of the
// base module.
var Worker = fx.Module("shard.worker",
	fx.Provide(NewScheduler),
	fx.Invoke(registerTaskHandlers),
	fx.Invoke(StartScheduler),
)

func registerTaskHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(TaskDailyAccrual, t.HandleDailyAccrualTask)
}
