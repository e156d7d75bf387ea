package account

import (
	"github.com/parleylabs/parley/internal/account/repository"
	"github.com/parleylabs/parley/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
