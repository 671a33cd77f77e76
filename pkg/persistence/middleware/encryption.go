package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ports"
)

// ErrNotEncrypted is returned when a loaded record carries no envelope.
var ErrNotEncrypted = errors.New("roll is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// envelope replaces the roll payload in the underlying store.
type envelope struct {
	Ciphertext []byte `json:"ciphertext"`
}

// sealed is what gets encrypted: everything a store does not need to index.
type sealed struct {
	Formula  string            `json:"formula"`
	Mode     string            `json:"mode"`
	Total    *float64          `json:"total"`
	Roll     json.RawMessage   `json:"roll"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.RollStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts rolls using AES-GCM.
// ID, channel, trace ID and creation time stay in clear so stores can index them.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.RollStore) ports.RollStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, record *domain.RollRecord) error {
	plainText, err := json.Marshal(sealed{
		Formula:  record.Formula,
		Mode:     record.Mode,
		Total:    record.Total,
		Roll:     record.Roll,
		Metadata: record.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal roll: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt roll: %w", err)
	}
	payload, err := json.Marshal(envelope{Ciphertext: ciphertext})
	if err != nil {
		return err
	}

	return m.next.Save(ctx, &domain.RollRecord{
		ID:        record.ID,
		Channel:   record.Channel,
		Roll:      payload,
		TraceID:   record.TraceID,
		CreatedAt: record.CreatedAt,
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.RollRecord, error) {
	stored, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.open(stored)
}

func (m *encryptionMiddleware) open(stored *domain.RollRecord) (*domain.RollRecord, error) {
	var env envelope
	if err := json.Unmarshal(stored.Roll, &env); err != nil || len(env.Ciphertext) == 0 {
		return nil, fmt.Errorf("roll %s: %w", stored.ID, ErrNotEncrypted)
	}

	plainText, err := decryptWithRotation(env.Ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt roll %s: %w", stored.ID, err)
	}

	var s sealed
	if err := json.Unmarshal(plainText, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted roll: %w", err)
	}

	return &domain.RollRecord{
		ID:        stored.ID,
		Channel:   stored.Channel,
		Formula:   s.Formula,
		Mode:      s.Mode,
		Total:     s.Total,
		Roll:      s.Roll,
		Metadata:  s.Metadata,
		TraceID:   stored.TraceID,
		CreatedAt: stored.CreatedAt,
	}, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	stored, err := m.next.List(ctx, channel)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RollRecord, 0, len(stored))
	for _, s := range stored {
		rec, err := m.open(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
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
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
