package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/parleylabs/parley/internal/account"
	"github.com/parleylabs/parley/internal/chat"
	"github.com/parleylabs/parley/internal/clock"
	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/migration"
	"github.com/parleylabs/parley/internal/observability"
	"github.com/parleylabs/parley/internal/order"
	"github.com/parleylabs/parley/internal/payment"
	"github.com/parleylabs/parley/internal/providers/completion"
	"github.com/parleylabs/parley/internal/providers/imagegen"
	paymentprovider "github.com/parleylabs/parley/internal/providers/payment"
	"github.com/parleylabs/parley/internal/ratelimit"
	"github.com/parleylabs/parley/internal/server"
	"github.com/parleylabs/parley/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Providers
		paymentprovider.Module,
		completion.Module,
		imagegen.Module,

		// Domains
		account.Module,
		chat.Module,
		order.Module,
		payment.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
