package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleylabs/parley/internal/providers/payment/domain"
)

// Fake is an in-memory provider for tests: deterministic order ids and a
// known shared secret.
type Fake struct {
	mu     sync.Mutex
	seq    int
	orders map[string]domain.Order

	secret string

	// CreateErr and FetchErr force failures when set.
	CreateErr error
	FetchErr  error
}

func NewFake(secret string) *Fake {
	return &Fake{
		orders: make(map[string]domain.Order),
		secret: secret,
	}
}

func (f *Fake) Secret() string {
	return f.secret
}

func (f *Fake) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return domain.Order{}, f.CreateErr
	}

	f.seq++
	tags := make(map[string]string, len(req.Tags))
	for k, v := range req.Tags {
		tags[k] = v
	}
	order := domain.Order{
		ProviderOrderID:  fmt.Sprintf("order_%06d", f.seq),
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Receipt:          req.Receipt,
		Status:           "created",
		Tags:             tags,
		CreatedAt:        time.Now().UTC(),
	}
	f.orders[order.ProviderOrderID] = order
	return order, nil
}

func (f *Fake) FetchOrder(ctx context.Context, providerOrderID string) (domain.Order, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FetchErr != nil {
		return domain.Order{}, f.FetchErr
	}

	order, ok := f.orders[providerOrderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}
