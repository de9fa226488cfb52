package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "k3y-for-mailbox-token-tests-0032"

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)
	return enc
}

func TestNewEncryptor_KeyLength(t *testing.T) {
	for _, key := range []string{"", "short", testKey + "x"} {
		_, err := NewEncryptor(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key of length %d", len(key))
	}
}

func TestEncryptor_SealsMailboxTokens(t *testing.T) {
	enc := newTestEncryptor(t)

	tokens := map[string]string{
		"google refresh token": "1//0gLxRefreshTokenValue-abc123",
		"unicode":              "Credit alert: ₦5,000.00 from Adébáyọ̀ Ọlá",
		"long":                 strings.Repeat("ya29.token-segment ", 1000),
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			sealed, err := enc.Encrypt(token)
			require.NoError(t, err)
			assert.NotContains(t, sealed, token)

			opened, err := enc.Decrypt(sealed)
			require.NoError(t, err)
			assert.Equal(t, token, opened)
		})
	}
}

func TestEncryptor_EmptyStaysEmpty(t *testing.T) {
	enc := newTestEncryptor(t)

	sealed, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestEncryptor_FreshNoncePerCall(t *testing.T) {
	enc := newTestEncryptor(t)

	a, err := enc.Encrypt("same token")
	require.NoError(t, err)
	b, err := enc.Encrypt("same token")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptor_RejectsBadCiphertext(t *testing.T) {
	enc := newTestEncryptor(t)
	sealed, err := enc.Encrypt("refresh-token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	flipped := base64.StdEncoding.EncodeToString(raw)

	other, err := NewEncryptor(strings.Repeat("z", 32))
	require.NoError(t, err)

	tests := []struct {
		name       string
		enc        *Encryptor
		ciphertext string
		wantErr    error
	}{
		{"not base64", enc, "not-valid-base64!!!", ErrMalformedCipher},
		{"shorter than nonce", enc, "YQ==", ErrMalformedCipher},
		{"tampered tag", enc, flipped, ErrDecryptionFailure},
		{"wrong key", other, sealed, ErrDecryptionFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enc.Decrypt(tt.ciphertext)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
