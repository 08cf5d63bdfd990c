package referral

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shards-controlplane/pkg/errutil"
	"shards-controlplane/pkg/repository"
)

// Service owns referral creation and the activation/expiry workflow. The
// accrual engine only reads referrals and appends earned shards.
type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     clockwork.Clock
	referrals repository.Repository[Referral]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock clockwork.Clock
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		clock:     p.Clock,
		referrals: repository.ProvideStore[Referral](p.DB),
	}
}

// CreateReferral registers a pending pair. A referee can only be referred
// once per season.
func (s *Service) CreateReferral(ctx context.Context, referrer, referee, seasonID string) (*Referral, error) {
	existing, err := s.referrals.FindOne(ctx, &Referral{
		RefereeAddress: strings.ToLower(referee),
		SeasonID:       seasonID,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errutil.Conflict("referee already has a referral for this season", nil)
	}

	created, err := New(Params{
		ID:              s.node.Generate().String(),
		ReferrerAddress: referrer,
		RefereeAddress:  referee,
		SeasonID:        seasonID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.referrals.Create(ctx, &created); err != nil {
		zap.L().Error("failed to create referral",
			zap.String("referrer_address", created.ReferrerAddress),
			zap.String("referee_address", created.RefereeAddress),
			zap.Error(err),
		)
		return nil, err
	}

	return &created, nil
}

// ActivateReferral runs the pending → active transition using the
// referee's lifetime shard total.
func (s *Service) ActivateReferral(ctx context.Context, referralID string, refereeShards decimal.Decimal) (*Referral, error) {
	current, err := s.get(ctx, referralID)
	if err != nil {
		return nil, err
	}

	next, err := current.Activate(refereeShards, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(&next).Error; err != nil {
		return nil, err
	}

	zap.L().Info("referral activated",
		zap.String("referral_id", next.ID),
		zap.String("referee_address", next.RefereeAddress),
		zap.Time("bonus_expires", *next.RefereeMultiplierExpires),
	)

	return &next, nil
}

// ExpireReferral marks the pair expired. Safe to call repeatedly.
func (s *Service) ExpireReferral(ctx context.Context, referralID string) (*Referral, error) {
	current, err := s.get(ctx, referralID)
	if err != nil {
		return nil, err
	}

	next := current.Expire()
	if next.Status == current.Status {
		return current, nil
	}

	if err := s.db.WithContext(ctx).Save(&next).Error; err != nil {
		return nil, err
	}

	return &next, nil
}

func (s *Service) get(ctx context.Context, referralID string) (*Referral, error) {
	found, err := s.referrals.FindOne(ctx, &Referral{ID: referralID})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errutil.NotFound("referral not found", nil)
	}
	return found, nil
}
