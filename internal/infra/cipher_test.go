package infra

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCMCipher_RoundTrip(t *testing.T) {
	c, err := NewAESGCMCipher("correct horse battery staple")
	require.NoError(t, err)

	enc, err := c.Encrypt("Rasoa Rabe")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "enc:v1:"))
	assert.NotContains(t, enc, "Rasoa")

	again, err := c.Encrypt("Rasoa Rabe")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonce is random per value")

	plain, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "Rasoa Rabe", plain)
}

func TestAESGCMCipher_RejectsForeignValues(t *testing.T) {
	c, err := NewAESGCMCipher("key-one")
	require.NoError(t, err)
	other, err := NewAESGCMCipher("key-two")
	require.NoError(t, err)

	enc, err := other.Encrypt("secret")
	require.NoError(t, err)

	_, err = c.Decrypt(enc)
	assert.Error(t, err, "wrong key")

	_, err = c.Decrypt("plain text")
	assert.ErrorIs(t, err, ErrNotEncrypted)

	_, err = c.Decrypt("enc:v1:AAAA")
	assert.Error(t, err, "truncated")

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(enc, aesGCMPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = other.Decrypt(aesGCMPrefix + base64.RawURLEncoding.EncodeToString(raw))
	assert.Error(t, err, "tag mismatch")
}

func TestNoopCipher(t *testing.T) {
	var c NoopCipher
	v, err := c.Encrypt("0340000000")
	require.NoError(t, err)
	assert.Equal(t, "0340000000", v)

	v, err = c.Decrypt("0340000000")
	require.NoError(t, err)
	assert.Equal(t, "0340000000", v)

	_, err = c.Decrypt("enc:v1:whatever")
	assert.ErrorIs(t, err, ErrEncryptedNoCipher)
}

func TestNoopCipher_PrefixLookalikesRoundTrip(t *testing.T) {
	var c NoopCipher
	for _, plain := range []string{"enc: see drawer", "enc:v1:typed by hand", "plain:", "plain: x", "", "Rasoa Rabé"} {
		stored, err := c.Encrypt(plain)
		require.NoError(t, err)
		got, err := c.Decrypt(stored)
		require.NoError(t, err, plain)
		assert.Equal(t, plain, got)
	}

	stored, err := c.Encrypt("enc: see drawer")
	require.NoError(t, err)
	assert.Equal(t, "plain:enc: see drawer", stored)
}

func TestNewFieldCipher(t *testing.T) {
	c, err := NewFieldCipher(&config.Config{AuditCipher: config.CipherAESGCM, AuditEncryptionKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, config.CipherAESGCM, c.Name())

	c, err = NewFieldCipher(&config.Config{AuditCipher: config.CipherNone})
	require.NoError(t, err)
	assert.Equal(t, config.CipherNone, c.Name())

	_, err = NewFieldCipher(&config.Config{AuditCipher: config.CipherAESGCM})
	assert.Error(t, err, "empty key is refused")

	_, err = NewFieldCipher(&config.Config{AuditCipher: "rot13"})
	assert.Error(t, err)
}
