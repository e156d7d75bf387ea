package order

import (
	"github.com/parleylabs/parley/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(service.New),
)
