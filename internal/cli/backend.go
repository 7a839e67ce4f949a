package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor/pkg/adapters/badger"
	"github.com/aretw0/arbor/pkg/adapters/bolt"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/config"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
)

// Backend is an opened store plus the resources behind it.
type Backend struct {
	Store  ports.AnchorStore
	Locker ports.DistributedLocker
	closer func() error
}

// Close releases the underlying database or connection.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// OpenBackend opens the store named by cfg.Store and wraps it with the
// configured PII masking and encryption.
func OpenBackend(cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.PII.Fields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PII.Fields))
	}
	if cfg.Encryption.Enabled() {
		active, fallback, err := cfg.Encryption.Keys()
		if err != nil {
			return nil, errors.Join(err, b.Close())
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	b.Store = middleware.Chain(b.Store, mws...)

	logger.Debug("store opened", "driver", cfg.Store.Driver, "pii_fields", len(cfg.PII.Fields), "encrypted", cfg.Encryption.Enabled())
	return b, nil
}

func openStore(cfg config.StoreConfig) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &Backend{Store: memory.NewStore()}, nil
	case config.DriverFile:
		return &Backend{Store: file.NewStore(cfg.Path)}, nil
	case config.DriverBolt:
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, closer: s.Close}, nil
	case config.DriverBadger:
		s, err := badger.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, closer: s.Close}, nil
	case config.DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := redis.NewFromClient(client, redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL.Std()))
		return &Backend{
			Store:  s,
			Locker: redis.NewLocker(client, cfg.Redis.Prefix),
			closer: s.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
