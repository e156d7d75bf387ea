package chat

import (
	"github.com/parleylabs/parley/internal/chat/repository"
	"github.com/parleylabs/parley/internal/chat/service"
	"go.uber.org/fx"
)

var Module = fx.Module("chat.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
