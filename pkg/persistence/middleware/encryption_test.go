package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func personRecord(fields map[string]any) *domain.Record {
	return &domain.Record{
		ID:     domain.NewID(),
		Kind:   domain.KindNode,
		Type:   "Person",
		RootID: domain.SystemRootID,
		Edges:  []domain.ID{domain.NewID()},
		Fields: fields,
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunAnchorStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	rec := personRecord(map[string]any{"secret": "my-secret-sauce"})
	require.NoError(t, secure.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	stored, err := underlying.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Fields, "secret")
	assert.Contains(t, stored.Fields, middleware.EncryptedField)
	// Structure stays in the clear.
	assert.Equal(t, "Person", stored.Type)
	assert.Equal(t, rec.Edges, stored.Edges)

	loaded, err := secure.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Fields["secret"])

	// The caller's record is untouched.
	assert.Equal(t, "my-secret-sauce", rec.Fields["secret"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	withOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	rec := personRecord(map[string]any{"data": "encrypted-with-old-key"})
	require.NoError(t, withOld.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	withNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := withNew.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Fields["data"])

	loaded.Fields["data"] = "encrypted-with-new-key"
	require.NoError(t, withNew.Commit(ctx, ports.Batch{Set: []*domain.Record{loaded}}))

	_, err = withOld.Get(ctx, rec.ID)
	assert.Error(t, err, "old key alone must not read data sealed with the new key")
}

func TestEncryptionMiddleware_PlainRecordRejected(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	rec := personRecord(map[string]any{"name": "plain"})
	require.NoError(t, underlying.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Get(ctx, rec.ID)
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
