package main

import (
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shards-controlplane/pkg/config"
	"shards-controlplane/pkg/db"
	"shards-controlplane/pkg/logger"
	"shards-controlplane/services/contribution"
	"shards-controlplane/services/referral"
	"shards-controlplane/services/season"
	"shards-controlplane/services/shard"
	"shards-controlplane/services/vault"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(migrate, seedSeason),
		fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
			return fxevent.NopLogger
		}),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&season.Season{},
		&referral.Referral{},
		&vault.Position{},
		&contribution.DeveloperContribution{},
		&shard.ShardBalance{},
		&shard.ShardEarningHistory{},
	)
}

func seedSeason(gdb *gorm.DB, node *snowflake.Node, shutdowner fx.Shutdowner) error {
	var count int64
	if err := gdb.Model(&season.Season{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		zap.L().Info("seasons already seeded, skipping")
		return shutdowner.Shutdown()
	}

	start := time.Now().UTC()
	s, err := season.New(season.Params{
		ID:        node.Generate().String(),
		Name:      "Season 1",
		Chain:     "ethereum",
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		Rates: map[string]decimal.Decimal{
			"eth":  decimal.NewFromInt(100),
			"usdc": decimal.NewFromInt(80),
		},
		SocialConversionRate: decimal.NewFromInt(100),
		LockEnabled:          true,
	})
	if err != nil {
		return err
	}

	active, err := s.Activate()
	if err != nil {
		return err
	}

	if err := gdb.Create(&active).Error; err != nil {
		return err
	}

	zap.L().Info("seeded active season", zap.String("season_id", active.ID))
	return shutdowner.Shutdown()
}
