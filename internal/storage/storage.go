// Package storage selects and opens the order Store backend.
package storage

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/orderlog/internal/domain/order"
	"github.com/xenking/orderlog/internal/storage/file"
	"github.com/xenking/orderlog/internal/storage/postgres"
)

// Supported drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config selects the backend.
type Config struct {
	Driver      string `default:"file" usage:"Order store backend: file or postgres"`
	Path        string `default:"customer-orders.json" usage:"Order log file for the file backend"`
	DatabaseURL string `usage:"PostgreSQL connection URL for the postgres backend (ORDERS_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverFile, "":
		return nil
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres store")
		}
		return nil
	default:
		return errors.Errorf("unknown store driver %q", c.Driver)
	}
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is an opened store together with its lifecycle hooks.
type Backend struct {
	Store  order.Store
	Pinger Pinger
	Name   string

	close func() error
}

// Close releases backend resources.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the backend selected by cfg. It does not create the
// store; call EnsureInitialized for that.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s := postgres.NewStore(pool)
		return &Backend{Store: s, Pinger: s, Name: DriverPostgres, close: s.Close}, nil
	default:
		s := file.NewStore(cfg.Path)
		return &Backend{Store: s, Pinger: s, Name: DriverFile}, nil
	}
}
