package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// EncryptedKey holds the sealed payload inside an envelope's metadata.
const EncryptedKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new records. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when the active key cannot decrypt,
	// so keys can be rotated without rewriting old history.
	FallbackKeys [][]byte
}

type sealed struct {
	Comments []string       `json:"comments,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEncryptionMiddleware seals record comments and metadata with AES-GCM.
// The stored record keeps an envelope in Metadata[EncryptedKey].
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.StatusStore) ports.StatusStore {
		return &rewriter{
			next: next,
			onWrite: func(rec *domain.Record) error {
				return seal(rec, config.ActiveKey)
			},
			onRead: func(rec *domain.Record) error {
				return open(rec, config)
			},
		}
	}
}

func seal(rec *domain.Record, key []byte) error {
	if len(rec.Comments) == 0 && len(rec.Metadata) == 0 {
		return nil
	}
	plain, err := json.Marshal(sealed{Comments: rec.Comments, Metadata: rec.Metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal record payload: %w", err)
	}
	ciphertext, err := encrypt(plain, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt record payload: %w", err)
	}
	rec.Comments = nil
	rec.Metadata = map[string]any{EncryptedKey: base64.StdEncoding.EncodeToString(ciphertext)}
	return nil
}

func open(rec *domain.Record, config EncryptionConfig) error {
	if len(rec.Comments) == 0 && len(rec.Metadata) == 0 {
		return nil
	}
	encoded, ok := rec.Metadata[EncryptedKey].(string)
	if !ok {
		return errors.New("record is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plain, err := decryptWithRotation(ciphertext, config.ActiveKey, config.FallbackKeys)
	if err != nil {
		return fmt.Errorf("failed to decrypt record payload: %w", err)
	}
	var payload sealed
	if err := json.Unmarshal(plain, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal record payload: %w", err)
	}
	rec.Comments, rec.Metadata = payload.Comments, payload.Metadata
	return nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
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

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
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
