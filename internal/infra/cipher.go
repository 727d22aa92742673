package infra

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"golang.org/x/crypto/hkdf"
)

// ── Audit field cipher ────────────────────────────────────────────────────────
// Stored format: "enc:v1:" + base64url(nonce ‖ ciphertext ‖ tag).
// The AES-256 key is derived from AUDIT_ENCRYPTION_KEY with HKDF-SHA256 so an
// operator-supplied passphrase of any length yields a full-strength key.

const (
	encryptedPrefix = "enc:"
	aesGCMPrefix    = "enc:v1:"
	// plainPrefix marks a NoopCipher value that would otherwise look
	// encrypted (or already carries the marker).
	plainPrefix = "plain:"
	hkdfSalt        = "taxcollector/cash-audit"
	hkdfInfo        = "audit-field-encryption v1"
)

var (
	ErrNotEncrypted      = errors.New("cipher: value is not an encrypted field")
	ErrEncryptedNoCipher = errors.New("cipher: value is encrypted but no cipher is configured")
)

// NewFieldCipher builds the cipher selected by AUDIT_CIPHER.
func NewFieldCipher(cfg *config.Config) (service.FieldCipher, error) {
	switch cfg.AuditCipher {
	case config.CipherAESGCM:
		return NewAESGCMCipher(cfg.AuditEncryptionKey)
	case config.CipherNone:
		return NoopCipher{}, nil
	default:
		return nil, fmt.Errorf("cipher: unknown mode %q", cfg.AuditCipher)
	}
}

// AESGCMCipher encrypts with AES-256-GCM and a random 96-bit nonce per value.
type AESGCMCipher struct {
	aead cipher.AEAD
}

func NewAESGCMCipher(secret string) (*AESGCMCipher, error) {
	if secret == "" {
		return nil, errors.New("cipher: empty encryption key")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("cipher: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMCipher{aead: aead}, nil
}

func (c *AESGCMCipher) Name() string { return config.CipherAESGCM }

func (c *AESGCMCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return aesGCMPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AESGCMCipher) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, aesGCMPrefix) {
		return "", ErrNotEncrypted
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, aesGCMPrefix))
	if err != nil {
		return "", fmt.Errorf("cipher: decode: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", errors.New("cipher: ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("cipher: open: %w", err)
	}
	return string(plain), nil
}

// NoopCipher stores values as given. Plaintext that starts with "enc:" or
// "plain:" is stored behind a "plain:" marker so every value round-trips.
// It refuses to "decrypt" values written by a real cipher so a misconfigured
// reader never returns ciphertext as if it were plaintext.
type NoopCipher struct{}

func (NoopCipher) Name() string { return config.CipherNone }

func (NoopCipher) Encrypt(plaintext string) (string, error) {
	if strings.HasPrefix(plaintext, encryptedPrefix) || strings.HasPrefix(plaintext, plainPrefix) {
		return plainPrefix + plaintext, nil
	}
	return plaintext, nil
}

func (NoopCipher) Decrypt(stored string) (string, error) {
	switch {
	case strings.HasPrefix(stored, plainPrefix):
		return strings.TrimPrefix(stored, plainPrefix), nil
	case strings.HasPrefix(stored, encryptedPrefix):
		return "", ErrEncryptedNoCipher
	}
	return stored, nil
}
