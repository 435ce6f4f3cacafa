package types

import (
	"crypto/sha256"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecoverableSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("card serial"))
	raw, err := crypto.Sign(msg[:], key)
	require.NoError(t, err)

	sig, err := ParseRecoverableSignature(msg[:], raw)
	require.NoError(t, err)

	assert.Equal(t, crypto.FromECDSAPub(&key.PublicKey), sig.PubKey())
	assert.Equal(t, raw, sig.Raw())
	assert.Len(t, sig.R(), 32)
	assert.Len(t, sig.S(), 32)
}

func TestParseRecoverableSignatureBadLength(t *testing.T) {
	_, err := ParseRecoverableSignature(make([]byte, 32), make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRecoverable(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := sha256.Sum256([]byte("challenge"))
	raw, err := crypto.Sign(msg[:], key)
	require.NoError(t, err)

	pub := crypto.FromECDSAPub(&key.PublicKey)
	assert.True(t, VerifyRecoverable(pub, msg[:], raw))

	other := sha256.Sum256([]byte("other"))
	assert.False(t, VerifyRecoverable(pub, other[:], raw))
}
