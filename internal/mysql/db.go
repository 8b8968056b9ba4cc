package mysql

import (
	"context"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Connect opens a sqlx handle on the go-sql-driver. parseTime dan
// clientFoundRows selalu dinyalakan: created_at di-scan ke time.Time dan
// RowsAffected dihitung dari baris yang match, bukan yang berubah.
func Connect(ctx context.Context, dsn string, opt PoolOptions) (*sqlx.DB, error) {
	cfg, err := drv.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}
