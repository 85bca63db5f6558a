package db

import (
	"context"
	"fmt"

	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
)

// OpenStore opens the message store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (core.MessageStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLiteStore(cfg.Path, opts...)
	case "postgres":
		return OpenPostgresStore(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
