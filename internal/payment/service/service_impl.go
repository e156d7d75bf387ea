package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	"github.com/parleylabs/parley/internal/clock"
	obsmetrics "github.com/parleylabs/parley/internal/observability/metrics"
	"github.com/parleylabs/parley/internal/payment/domain"
	providerdomain "github.com/parleylabs/parley/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	AccountRepo accountdomain.Repository
	Repo        domain.Repository
	Provider    providerdomain.Client
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	accountRepo accountdomain.Repository
	repo        domain.Repository
	provider    providerdomain.Client
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		accountRepo: p.AccountRepo,
		repo:        p.Repo,
		provider:    p.Provider,
		metrics:     p.Metrics,
	}
}

func (s *Service) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	req.ProviderOrderID = strings.TrimSpace(req.ProviderOrderID)
	req.ProviderPaymentID = strings.TrimSpace(req.ProviderPaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if req.ProviderOrderID == "" || req.ProviderPaymentID == "" || req.Signature == "" || req.ExternalID == "" {
		return domain.VerifyResult{}, domain.ErrMissingFields
	}

	if !domain.VerifySignature(s.provider.Secret(), req.ProviderOrderID, req.ProviderPaymentID, req.Signature) {
		s.log.Warn("payment signature rejected",
			zap.String("provider_order_id", req.ProviderOrderID),
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.String("external_id", req.ExternalID),
		)
		s.metrics.RecordVerification(ctx, "rejected_signature")
		return domain.VerifyResult{}, domain.ErrInvalidSignature
	}

	// The order fetched from the provider is the source of truth for amount,
	// currency and the account identity stamped at creation time. Nothing
	// from the callback body beyond the ids is trusted.
	order, err := s.provider.FetchOrder(ctx, req.ProviderOrderID)
	if err != nil {
		if errors.Is(err, providerdomain.ErrOrderNotFound) {
			s.metrics.RecordVerification(ctx, "order_not_found")
			return domain.VerifyResult{}, err
		}
		s.metrics.RecordVerification(ctx, "provider_error")
		return domain.VerifyResult{}, fmt.Errorf("fetch order %s: %w", req.ProviderOrderID, err)
	}

	if order.Tags[providerdomain.TagExternalID] != req.ExternalID {
		s.log.Warn("payment identity mismatch",
			zap.String("provider_order_id", req.ProviderOrderID),
			zap.String("external_id", req.ExternalID),
		)
		s.metrics.RecordVerification(ctx, "identity_mismatch")
		return domain.VerifyResult{}, domain.ErrIdentityMismatch
	}

	existing, err := s.repo.FindByTransactionID(ctx, s.db, req.ProviderPaymentID)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	if existing != nil {
		s.log.Info("payment already processed",
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.String("account_id", existing.AccountID.String()),
		)
		s.metrics.RecordVerification(ctx, "duplicate")
		return domain.VerifyResult{Success: true, AlreadyProcessed: true}, nil
	}

	account, err := s.accountRepo.FindByExternalID(ctx, s.db, req.ExternalID)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	if account == nil {
		s.log.Error("verified payment for unknown account",
			zap.String("external_id", req.ExternalID),
			zap.String("provider_order_id", req.ProviderOrderID),
			zap.String("provider_payment_id", req.ProviderPaymentID),
		)
		s.metrics.RecordVerification(ctx, "account_not_found")
		return domain.VerifyResult{}, domain.ErrAccountNotFound
	}

	now := s.clock.Now()
	record := domain.PaymentRecord{
		ID:                s.genID.Generate(),
		AccountID:         account.ID,
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		AmountMinorUnits:  order.AmountMinorUnits,
		Currency:          order.Currency,
		Status:            domain.StatusCompleted,
		CreatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.Upgrade(ctx, tx, account.ID, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &record)
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		// A concurrent delivery of the same payment won the insert; its
		// transaction performed the upgrade, so this one rolls back as a no-op.
		s.log.Info("payment already processed",
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.String("account_id", account.ID.String()),
		)
		s.metrics.RecordVerification(ctx, "duplicate")
		return domain.VerifyResult{Success: true, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return domain.VerifyResult{}, err
	}

	s.log.Info("payment verified, account upgraded",
		zap.String("account_id", account.ID.String()),
		zap.String("external_id", req.ExternalID),
		zap.String("provider_order_id", order.ProviderOrderID),
		zap.String("provider_payment_id", req.ProviderPaymentID),
		zap.Int64("amount_minor_units", order.AmountMinorUnits),
		zap.String("currency", order.Currency),
	)
	s.metrics.RecordVerification(ctx, "verified")
	return domain.VerifyResult{Success: true}, nil
}

func (s *Service) ListByAccount(ctx context.Context, externalID string) ([]domain.PaymentRecord, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, accountdomain.ErrInvalidExternalID
	}

	account, err := s.accountRepo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}

	records, err := s.repo.ListByAccount(ctx, s.db, account.ID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.PaymentRecord{}
	}
	return records, nil
}

func (s *Service) OrphanUpgrades(ctx context.Context) ([]accountdomain.Account, error) {
	accounts, err := s.repo.OrphanUpgrades(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []accountdomain.Account{}
	}
	return accounts, nil
}
