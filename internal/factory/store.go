// Package factory builds the configured adapters for the journal service.
package factory

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/config"
	"github.com/echovault/echovault/internal/store"
	"github.com/echovault/echovault/internal/store/memstore"
	"github.com/echovault/echovault/internal/store/postgres"
	"github.com/echovault/echovault/internal/store/sqlite"
)

// NewStore opens the store selected by DB_DRIVER and applies its schema. The returned close
// func releases the connection pool.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open postgres")
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "postgres schema")
		}
		log.Info().Msg("postgres store ready")
		return postgres.NewWithDB(db), db.Close, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open sqlite %s", cfg.SQLitePath)
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "sqlite schema")
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return sqlite.NewWithDB(db), db.Close, nil
	case "memory":
		log.Warn().Msg("in-memory store: entries are lost on restart")
		return memstore.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
