package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	"github.com/parleylabs/parley/internal/clock"
	"github.com/parleylabs/parley/internal/config"
	obsmetrics "github.com/parleylabs/parley/internal/observability/metrics"
	"github.com/parleylabs/parley/internal/order/domain"
	providerdomain "github.com/parleylabs/parley/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Plans    *config.PlanHolder
	Accounts accountdomain.Service
	Provider providerdomain.Client
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	plans    *config.PlanHolder
	accounts accountdomain.Service
	provider providerdomain.Client
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("order.service"),
		clock:    p.Clock,
		plans:    p.Plans,
		accounts: p.Accounts,
		provider: p.Provider,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (providerdomain.Order, error) {
	if req.AmountMinorUnits <= 0 {
		return providerdomain.Order{}, domain.ErrInvalidAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.plans.Get().ProDefaultCurrency
	}

	account, err := s.accounts.Resolve(ctx, req.ExternalID)
	if err != nil {
		return providerdomain.Order{}, err
	}

	// Receipt is unique per (account, timestamp) so the provider side can
	// reconcile retried creations.
	receipt := fmt.Sprintf("rcpt_%s_%d_%s",
		account.ID.String(),
		s.clock.Now().Unix(),
		strings.Split(uuid.NewString(), "-")[0],
	)

	order, err := s.provider.CreateOrder(ctx, providerdomain.CreateOrderRequest{
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         currency,
		Receipt:          receipt,
		Tags: map[string]string{
			providerdomain.TagExternalID: account.ExternalID,
			providerdomain.TagAccountID:  account.ID.String(),
		},
	})
	if err != nil {
		s.log.Warn("order creation failed",
			zap.String("external_id", account.ExternalID),
			zap.Error(err),
		)
		return providerdomain.Order{}, err
	}

	s.metrics.RecordOrderCreated(ctx, currency)
	s.log.Info("order created",
		zap.String("provider_order_id", order.ProviderOrderID),
		zap.String("external_id", account.ExternalID),
		zap.Int64("amount_minor_units", order.AmountMinorUnits),
		zap.String("currency", order.Currency),
	)
	return order, nil
}
