package season

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shards-controlplane/pkg/errutil"
	"shards-controlplane/pkg/repository"
)

// Service owns season lifecycle transitions. Accrual code only reads
// seasons; every mutation goes through here.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	seasons repository.Repository[Season]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		seasons: repository.ProvideStore[Season](p.DB),
	}
}

func (s *Service) CreateSeason(ctx context.Context, p Params) (*Season, error) {
	if p.ID == "" {
		p.ID = s.node.Generate().String()
	}

	created, err := New(p)
	if err != nil {
		return nil, err
	}

	if err := s.seasons.Create(ctx, &created); err != nil {
		zap.L().Error("failed to create season", zap.String("season_id", created.ID), zap.Error(err))
		return nil, err
	}

	return &created, nil
}

func (s *Service) GetSeason(ctx context.Context, seasonID string) (*Season, error) {
	found, err := s.seasons.FindOne(ctx, &Season{ID: seasonID})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errutil.NotFound("season not found", nil)
	}
	return found, nil
}

// FindActive returns the current active season, or nil when no season is
// active.
func (s *Service) FindActive(ctx context.Context) (*Season, error) {
	return s.seasons.FindOne(ctx, &Season{Status: StatusActive})
}

func (s *Service) ActivateSeason(ctx context.Context, seasonID string) (*Season, error) {
	return s.transition(ctx, seasonID, Season.Activate)
}

func (s *Service) CompleteSeason(ctx context.Context, seasonID string) (*Season, error) {
	return s.transition(ctx, seasonID, Season.Complete)
}

func (s *Service) UpdateSeason(ctx context.Context, seasonID string, u Update) (*Season, error) {
	return s.transition(ctx, seasonID, func(current Season) (Season, error) {
		return current.ApplyUpdate(u)
	})
}

func (s *Service) transition(ctx context.Context, seasonID string, apply func(Season) (Season, error)) (*Season, error) {
	current, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	next, err := apply(*current)
	if err != nil {
		zap.L().Warn("season transition rejected",
			zap.String("season_id", seasonID),
			zap.String("status", string(current.Status)),
			zap.Error(err),
		)
		return nil, err
	}

	next.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&next).Error; err != nil {
		zap.L().Error("failed to persist season transition", zap.String("season_id", seasonID), zap.Error(err))
		return nil, err
	}

	return &next, nil
}
