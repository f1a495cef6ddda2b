package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	c := NewCipher("master-passphrase", salt)

	cases := []string{
		"",
		"plain ascii",
		"кириллица",
		"日本語のテキスト",
		"emoji 🎉🚀 and combining é (é)",
	}

	for _, plaintext := range cases {
		sealed, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := c.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestCipher_NonDeterministicNonce(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	c := NewCipher("master-passphrase", salt)

	first, err := c.Encrypt("same input")
	require.NoError(t, err)
	second, err := c.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCipher_WrongPassphrase(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	sealed, err := NewCipher("right", salt).Encrypt("secret")
	require.NoError(t, err)

	_, err = NewCipher("wrong", salt).Decrypt(sealed)
	require.Error(t, err)
}

func TestCipher_CorruptedBlob(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	c := NewCipher("master-passphrase", salt)

	_, err = c.Decrypt("not base64 at all !!!")
	require.Error(t, err)

	_, err = c.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	require.Error(t, err)
}

func TestGenerateSalt_Unique(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	require.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
