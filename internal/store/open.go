package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosconsole/internal/crypto"
)

// Source names where the settings record lives. The first non-empty of
// PostgresURL, SQLitePath and File wins.
type Source struct {
	File        string
	SQLitePath  string
	PostgresURL string
}

// Open builds a SettingsStore over the backend src selects. The returned
// close func releases the backend.
func Open(ctx context.Context, src Source) (*SettingsStore, func(), error) {
	codec := crypto.NewCodec()

	switch {
	case src.PostgresURL != "":
		pool, err := pgxpool.New(ctx, src.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("store: ping: %w", err)
		}
		slog.Info("store: using postgres settings table")
		return NewSettingsStore(NewPostgresBackend(pool), codec), pool.Close, nil

	case src.SQLitePath != "":
		b, err := OpenSQLite(ctx, src.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("store: using sqlite settings table", "path", src.SQLitePath)
		return NewSettingsStore(b, codec), func() { _ = b.Close() }, nil

	default:
		slog.Info("store: using settings file", "path", src.File)
		return NewSettingsStore(NewFileBackend(src.File), codec), func() {}, nil
	}
}
