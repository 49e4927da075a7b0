package subscribe

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

func keyPair(t *testing.T) (priv, pub []byte) {
	t.Helper()
	priv = make([]byte, curve25519.ScalarSize)
	_, err := rand.Read(priv)
	require.NoError(t, err)
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	require.NoError(t, err)
	return priv, pub
}

func encryptECB(t *testing.T, key []byte, plaintext string) string {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	bs := block.BlockSize()
	n := bs - len(plaintext)%bs
	pt := append([]byte(plaintext), bytes.Repeat([]byte{byte(n)}, n)...)
	ct := make([]byte, len(pt))
	for i := 0; i < len(pt); i += bs {
		block.Encrypt(ct[i:i+bs], pt[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(ct)
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestAnswerDecryptsRegistryChallenge(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	regPriv, regPub := keyPair(t)

	registryShared, err := curve25519.X25519(regPriv, ourPub)
	require.NoError(t, err)
	challenge := encryptECB(t, registryShared, "ondc-challenge-string-1234")

	a, err := NewAnswerer(b64(ourPriv), b64(regPub))
	require.NoError(t, err)
	answer, err := a.Answer(challenge)
	require.NoError(t, err)
	assert.Equal(t, "ondc-challenge-string-1234", answer)
}

func TestDERWrappedKeys(t *testing.T) {
	ourPriv, ourPub := keyPair(t)
	regPriv, regPub := keyPair(t)

	pkcs8 := append(make([]byte, 16), ourPriv...)
	spki := append(make([]byte, 12), regPub...)
	a, err := NewAnswerer(b64(pkcs8), b64(spki))
	require.NoError(t, err)

	shared, err := curve25519.X25519(regPriv, ourPub)
	require.NoError(t, err)
	answer, err := a.Answer(encryptECB(t, shared, "exactly sixteen!"))
	require.NoError(t, err)
	assert.Equal(t, "exactly sixteen!", answer)
}

func TestAnswerRejectsBadInput(t *testing.T) {
	ourPriv, _ := keyPair(t)
	_, regPub := keyPair(t)
	a, err := NewAnswerer(b64(ourPriv), b64(regPub))
	require.NoError(t, err)

	_, err = a.Answer("not base64!!")
	assert.Error(t, err)
	_, err = a.Answer(b64([]byte("short")))
	assert.Error(t, err)

	_, err = NewAnswerer(b64([]byte("too short")), b64(regPub))
	assert.Error(t, err)
}
