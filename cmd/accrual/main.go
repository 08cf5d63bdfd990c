package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"shards-controlplane/pkg/config"
	"shards-controlplane/pkg/db"
	"shards-controlplane/pkg/logger"
	"shards-controlplane/pkg/redis"
	"shards-controlplane/pkg/task"
	"shards-controlplane/services/referral"
	"shards-controlplane/services/season"
	"shards-controlplane/services/shard"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			provideClock,
		),
		season.Module,
		referral.Module,
		shard.Module,
		shard.Worker,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}
