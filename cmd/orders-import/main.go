// Command orders-import copies legacy customer-orders.json logs into the
// configured order store, or exports the store to a snapshot file.
//
// Run it while the server is stopped: the store assumes a single writer.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/orderlog/internal/legacy"
	"github.com/xenking/orderlog/internal/storage"
)

func main() {
	var (
		cfg    storage.Config
		export string
	)

	flag.StringVar(&cfg.Driver, "store-driver", storage.DriverFile, "order store backend: file or postgres")
	flag.StringVar(&cfg.Path, "store-path", "customer-orders.json", "order log file for the file backend")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&export, "export", "", "write the store to this file instead of importing (.gz to compress)")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if export == "" && flag.NArg() == 0 {
		slog.Error("nothing to do: pass legacy log files to import or --export")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, export, flag.Args()); err != nil {
		slog.Error("orders import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg storage.Config, export string, paths []string) error {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = backend.Close() }()

	if export != "" {
		n, err := legacy.Export(ctx, backend.Store, export)
		if err != nil {
			return errors.Wrap(err, "export")
		}
		slog.Info("export completed", slog.String("path", export), slog.Int("orders", n))
		return nil
	}

	slog.Info("importing legacy order logs", slog.Int("files", len(paths)), slog.String("store", backend.Name))
	stats, err := legacy.Import(ctx, backend.Store, paths)
	if err != nil {
		return errors.Wrap(err, "import")
	}
	slog.Info("import completed",
		slog.Int("imported", stats.Imported),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("renamed", stats.Renamed),
	)
	return nil
}
