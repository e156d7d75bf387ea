package migration

import (
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	chatdomain "github.com/parleylabs/parley/internal/chat/domain"
	"github.com/parleylabs/parley/internal/config"
	paymentdomain "github.com/parleylabs/parley/internal/payment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql deployments are single-node dev setups; schema
		// sync through the ORM is sufficient there.
		return conn.AutoMigrate(
			&accountdomain.Account{},
			&chatdomain.ChatTurn{},
			&paymentdomain.PaymentRecord{},
		)
	}),
)
