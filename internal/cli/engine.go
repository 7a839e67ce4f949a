package cli

import (
	"log/slog"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/config"
	"github.com/aretw0/arbor/pkg/domain"
)

// NewLogger builds the application logger described by cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return logging.NewJSON(level), nil
	}
	return logging.New(level), nil
}

// NewEngine creates an engine over b with the commit and lock settings of cfg.
func NewEngine(cfg *config.Config, b *Backend, logger *slog.Logger, hooks domain.LifecycleHooks) *arbor.Engine {
	opts := []arbor.Option{
		arbor.WithStore(b.Store),
		arbor.WithLogger(logger),
		arbor.WithLifecycleHooks(hooks),
		arbor.WithCommitTries(cfg.Commit.Tries),
		arbor.WithRetryInterval(cfg.Commit.RetryInterval.Std()),
		arbor.WithLockTTL(cfg.Commit.LockTTL.Std()),
	}
	if b.Locker != nil {
		opts = append(opts, arbor.WithLocker(b.Locker))
	}
	return arbor.New(opts...)
}
