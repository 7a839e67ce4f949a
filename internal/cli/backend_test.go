package cli_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/config"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name   string
		store  config.StoreConfig
		locker bool
	}{
		{"Memory", config.StoreConfig{Driver: config.DriverMemory}, false},
		{"File", config.StoreConfig{Driver: config.DriverFile, Path: filepath.Join(dir, "anchors")}, false},
		{"Bolt", config.StoreConfig{Driver: config.DriverBolt, Path: filepath.Join(dir, "arbor.db")}, false},
		{"Badger", config.StoreConfig{Driver: config.DriverBadger}, false},
		{"Redis", config.StoreConfig{Driver: config.DriverRedis, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "t:"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store = tt.store
			b, err := cli.OpenBackend(cfg, logging.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, b.Close()) })

			assert.Equal(t, tt.locker, b.Locker != nil)
			ports.RunAnchorStoreContract(t, b.Store)
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Driver = "mongo"
		_, err := cli.OpenBackend(cfg, logging.NewNop())
		assert.ErrorContains(t, err, "unknown store driver")
	})
}

func TestOpenBackend_Middleware(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: config.DriverFile, Path: t.TempDir()}
	cfg.PII.Fields = []string{"email"}
	cfg.Encryption.Key = strings.Repeat("0f", 32)

	b, err := cli.OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)

	rec := &domain.Record{
		ID:     domain.NewID(),
		Kind:   domain.KindObject,
		Type:   "Contact",
		Fields: map[string]any{"email": "a@b.c", "name": "Ada"},
	}
	require.NoError(t, b.Store.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	got, err := b.Store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, got.Fields["email"])
	assert.Equal(t, "Ada", got.Fields["name"])

	// The same directory without the key only sees ciphertext.
	cfg.Encryption.Key = ""
	cfg.PII.Fields = nil
	raw, err := cli.OpenBackend(cfg, logging.NewNop())
	require.NoError(t, err)
	sealed, err := raw.Store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, sealed.Fields, middleware.EncryptedField)
	assert.NotContains(t, sealed.Fields, "name")
}
