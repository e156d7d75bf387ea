package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/parleylabs/parley/internal/account/domain"
	"github.com/parleylabs/parley/internal/clock"
	"github.com/parleylabs/parley/internal/config"
	pkgdb "github.com/parleylabs/parley/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Plans *config.PlanHolder
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	plans *config.PlanHolder
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		plans: p.Plans,
		repo:  p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, externalID string) (domain.Account, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.Account{}, domain.ErrInvalidExternalID
	}

	existing, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.Account{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		Tier:       domain.TierFree,
		UsageCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		// A concurrent request may have created the row first; the unique
		// index on external_id decides the winner.
		if pkgdb.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByExternalID(ctx, s.db, externalID)
			if findErr != nil {
				return domain.Account{}, findErr
			}
			if winner != nil {
				return *winner, nil
			}
		}
		return domain.Account{}, err
	}

	s.log.Info("account created",
		zap.String("external_id", externalID),
		zap.String("account_id", account.ID.String()),
	)
	return account, nil
}

func (s *Service) Lookup(ctx context.Context, externalID string) (domain.Account, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.Account{}, domain.ErrInvalidExternalID
	}

	account, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) RecordUserTurn(ctx context.Context, accountID snowflake.ID) error {
	quota := s.plans.Get().FreeQuota

	updated, err := s.repo.IncrementUsage(ctx, s.db, accountID, quota, s.clock.Now())
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	// No row matched: the account is pro (no-op), missing, or at quota.
	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrNotFound
	}
	if account.Tier == domain.TierPro {
		return nil
	}
	return domain.ErrQuotaExceeded
}

func (s *Service) Upgrade(ctx context.Context, accountID snowflake.ID) error {
	updated, err := s.repo.Upgrade(ctx, s.db, accountID, s.clock.Now())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}
