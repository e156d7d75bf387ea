package payment

import (
	"github.com/parleylabs/parley/internal/payment/repository"
	"github.com/parleylabs/parley/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
