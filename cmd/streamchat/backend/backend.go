// Package backend opens the exchange archive and event publisher selected by
// configuration.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/streamchat/pkg/config"
	"github.com/papercomputeco/streamchat/pkg/dotdir"
	"github.com/papercomputeco/streamchat/pkg/eventstream"
	"github.com/papercomputeco/streamchat/pkg/eventstream/kafka"
	"github.com/papercomputeco/streamchat/pkg/eventstream/nop"
	"github.com/papercomputeco/streamchat/pkg/storage"
	"github.com/papercomputeco/streamchat/pkg/storage/inmemory"
	"github.com/papercomputeco/streamchat/pkg/storage/postgres"
	"github.com/papercomputeco/streamchat/pkg/storage/sqlite"
)

// DefaultDBName is the archive file created in the .streamchat/ directory
// when no SQLite path is configured.
const DefaultDBName = "streamchat.db"

// ResolveSQLitePath picks the SQLite archive path. Order of precedence:
//  1. Provided override (flag or config value)
//  2. STREAMCHAT_SQLITE environment variable
//  3. streamchat.db inside the resolved .streamchat/ directory
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("STREAMCHAT_SQLITE")); envPath != "" {
		return envPath, nil
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving streamchat directory: %w", err)
	}
	return filepath.Join(dir, DefaultDBName), nil
}

// OpenDriver opens the archive described by cfg. A Postgres DSN wins over a
// SQLite path. With ephemeral set, exchanges are only kept in memory.
func OpenDriver(ctx context.Context, cfg config.StorageConfig, configDir string, ephemeral bool) (storage.Driver, error) {
	if ephemeral {
		return inmemory.NewDriver(), nil
	}

	if dsn := strings.TrimSpace(cfg.PostgresDSN); dsn != "" {
		d, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres archive: %w", err)
		}
		return d, nil
	}

	path, err := ResolveSQLitePath(cfg.SQLitePath, configDir)
	if err != nil {
		return nil, err
	}

	d, err := sqlite.NewDriver(path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite archive %s: %w", path, err)
	}
	return d, nil
}

// OpenPublisher creates the exchange event publisher described by cfg.
func OpenPublisher(cfg config.EventsConfig) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", config.EventsProviderNop:
		return nop.NewPublisher(), nil
	case config.EventsProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %q", cfg.Provider)
	}
}
