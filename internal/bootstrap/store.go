package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewLogger builds the process logger. Format "text" selects the text
// handler; anything else logs JSON.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// OpenStore opens the booking repository selected by cfg.Store.Driver. The
// returned func releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.BookingRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := repository.NewBookingRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate bookings: %w", err)
		}
		return repo, pool.Close, nil
	default:
		repo, err := repository.NewFileBookingRepository(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Store.Path, err)
		}
		return repo, func() {}, nil
	}
}
