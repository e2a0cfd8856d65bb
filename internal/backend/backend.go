// Package backend opens the configured record store and builds the
// importer both binaries run on.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/core"
	_ "github.com/JonMunkholm/clodoo/internal/core/tables" // Register entity providers
	"github.com/JonMunkholm/clodoo/internal/crypt"
	"github.com/JonMunkholm/clodoo/internal/store"
	"github.com/JonMunkholm/clodoo/internal/store/jsonrpc"
	"github.com/JonMunkholm/clodoo/internal/store/pgstore"
)

// Backend is an open store with the importer over it.
type Backend struct {
	Store    store.Store
	Importer *core.Importer
	Catalog  *config.Catalog

	close func()
}

// Open connects to the store selected by cfg.Store.Protocol and loads the
// catalogue and crypt key. The caller must Close the backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	cat, err := config.LoadCatalog(cfg.Import.CatalogPath)
	if err != nil {
		return nil, err
	}
	cipher, err := crypt.New(cfg.Import.CryptKey)
	if err != nil {
		return nil, err
	}

	st, closeFn, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Store:    st,
		Importer: core.NewImporter(st, cfg.Import, cat, core.WithCipher(cipher)),
		Catalog:  cat,
		close:    closeFn,
	}, nil
}

// Close releases the store connection.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenStore connects to the configured store. The returned function
// releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Protocol {
	case config.ProtocolJSONRPC:
		c, err := jsonrpc.Dial(ctx, jsonrpc.Options{
			URL:       cfg.Store.URL,
			Database:  cfg.Store.Database,
			Users:     cfg.Store.Users,
			Passwords: cfg.Store.Passwords,
			Retries:   cfg.Store.LoginRetries,
			Timeout:   cfg.Store.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil

	case config.ProtocolPostgres:
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil

	case config.ProtocolMemory:
		slog.Warn("using the in-memory store, nothing will be persisted")
		return store.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store protocol %q", cfg.Store.Protocol)
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
