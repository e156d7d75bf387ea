package payment

import (
	"github.com/parleylabs/parley/internal/providers/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.payment",
	fx.Provide(func(c *Client) domain.Client { return c }),
	fx.Provide(NewClient),
)
