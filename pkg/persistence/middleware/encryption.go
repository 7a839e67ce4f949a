package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// EncryptedField is the single field an encrypted record carries.
const EncryptedField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.AnchorStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals the user fields of every record with AES-GCM.
// Graph structure (kind, type, root, permission, adjacency) stays readable so
// the store remains listable and inspectable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.AnchorStore) ports.AnchorStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Commit(ctx context.Context, batch ports.Batch) error {
	sealed := ports.Batch{Remove: batch.Remove, Set: make([]*domain.Record, 0, len(batch.Set))}
	for _, rec := range batch.Set {
		plainText, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields of %s: %w", rec.ID, err)
		}
		ciphertext, err := encrypt(plainText, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt anchor %s: %w", rec.ID, err)
		}
		envelope := *rec
		envelope.Fields = map[string]any{
			EncryptedField: base64.StdEncoding.EncodeToString(ciphertext),
		}
		sealed.Set = append(sealed.Set, &envelope)
	}
	return m.next.Commit(ctx, sealed)
}

func (m *encryptionMiddleware) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	envelope, err := m.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Fields[EncryptedField].(string)
	if !ok {
		return nil, errors.New("record is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt anchor %s: %w", id, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(plainText, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted fields: %w", err)
	}
	rec := *envelope
	rec.Fields = fields
	return &rec, nil
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]domain.ID, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
