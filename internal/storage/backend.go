// Package storage opens the order store selected by STORE_DRIVER.
package storage

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/config"
	"github.com/ariefcatur/go-storefront.git/internal/mysql"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/postgres"
)

type Backend struct {
	Driver string
	Stores orders.Stores
	Tx     orders.TxManager
	Ping   func(ctx context.Context) error
	Close  func()
}

// Open connects to the configured database and, with AUTO_MIGRATE, brings the
// schema up to date first. Driver "memory" is for local development only.
func Open(ctx context.Context, cfg config.Config, logger log.FieldLogger) (*Backend, error) {
	l := logger.WithField("driver", cfg.StoreDriver)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
				return nil, err
			}
			l.Info("migrations applied")
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{})
		if err != nil {
			return nil, err
		}
		st := &postgres.Store{DB: pool}
		return &Backend{Driver: cfg.StoreDriver, Stores: st.Stores(), Tx: st, Ping: pool.Ping, Close: pool.Close}, nil

	case config.DriverMySQL:
		if cfg.AutoMigrate {
			if err := mysql.Migrate(cfg.MySQLDSN); err != nil {
				return nil, err
			}
			l.Info("migrations applied")
		}
		db, err := mysql.Connect(ctx, cfg.MySQLDSN, mysql.PoolOptions{})
		if err != nil {
			return nil, err
		}
		st := &mysql.Store{DB: db}
		return &Backend{
			Driver: cfg.StoreDriver,
			Stores: st.Stores(),
			Tx:     st,
			Ping:   db.PingContext,
			Close: func() {
				if err := db.Close(); err != nil {
					l.WithError(err).Warn("close mysql")
				}
			},
		}, nil

	case config.DriverMemory:
		l.Warn("using in-memory store, data is lost on restart")
		m := orders.NewMemoryStore()
		return &Backend{
			Driver: cfg.StoreDriver,
			Stores: m.Stores(),
			Tx:     m,
			Ping:   func(context.Context) error { return nil },
			Close:  func() {},
		}, nil
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Migrate runs the schema migrations for the configured driver.
func Migrate(cfg config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Migrate(cfg.PostgresDSN)
	case config.DriverMySQL:
		return mysql.Migrate(cfg.MySQLDSN)
	case config.DriverMemory:
		return nil
	}
	return errors.Errorf("unknown store driver %q", cfg.StoreDriver)
}
