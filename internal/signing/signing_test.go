package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	key   string
	calls int
}

func (r *staticResolver) ResolvePublicKey(_ context.Context, _, _ string) (string, error) {
	r.calls++
	if r.key == "" {
		return "", errors.New("not found")
	}
	return r.key, nil
}

func newTestSigner(t *testing.T) (*Signer, *staticResolver) {
	t.Helper()
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	s, err := NewSigner("seller.example.com", "uk-1", priv)
	require.NoError(t, err)
	assert.Equal(t, pub, s.PublicKey())
	return s, &staticResolver{key: pub}
}

func TestBuildSigningString(t *testing.T) {
	got := BuildSigningString(1700000000, 1700000300, "abc=")
	assert.Equal(t, "(created): 1700000000\n(expires): 1700000300\ndigest: BLAKE-512=abc=", got)
}

func TestComputeDigestDeterministic(t *testing.T) {
	a, err := ComputeDigest(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := ComputeDigest(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	raw, err := ComputeDigest([]byte("{\n  \"a\": \"x\",\n  \"b\": 1\n}"))
	require.NoError(t, err)
	assert.Equal(t, a, raw, "whitespace must not change the digest")

	decoded, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, decoded, 64)
}

func TestCanonicalJSONPreservesNonASCII(t *testing.T) {
	out, err := CanonicalJSON(map[string]string{"name": "चाय <tea> & co"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"चाय <tea> & co"}`, string(out))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s, resolver := newTestSigner(t)
	body := []byte(`{"context":{"action":"on_search"},"message":{"catalog":{}}}`)

	header, err := s.Sign(body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(header, `Signature keyId="seller.example.com|uk-1|ed25519"`))
	assert.Contains(t, header, `headers="(created) (expires) digest"`)

	kid, err := Verify(context.Background(), header, body, resolver)
	require.NoError(t, err)
	assert.Equal(t, "seller.example.com", kid.SubscriberID)
	assert.Equal(t, "uk-1", kid.UniqueKeyID)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s, resolver := newTestSigner(t)
	body := []byte(`{"message":{"order":{"id":"O1"}}}`)
	header, err := s.Sign(body)
	require.NoError(t, err)

	t.Run("body byte flipped", func(t *testing.T) {
		tampered := []byte(`{"message":{"order":{"id":"O2"}}}`)
		_, err := Verify(context.Background(), header, tampered, resolver)
		require.Error(t, err)
		assert.Equal(t, "Signature verification failed", err.Error())
	})

	t.Run("signature byte flipped", func(t *testing.T) {
		params, ok := ParseHeader(header)
		require.True(t, ok)
		sig, err := base64.StdEncoding.DecodeString(params["signature"])
		require.NoError(t, err)
		sig[0] ^= 0xFF
		bad := strings.Replace(header, params["signature"], base64.StdEncoding.EncodeToString(sig), 1)

		_, err = Verify(context.Background(), bad, body, resolver)
		require.Error(t, err)
		assert.Equal(t, "Signature verification failed", err.Error())
	})
}

func TestVerifyRejections(t *testing.T) {
	s, resolver := newTestSigner(t)
	body := []byte(`{}`)
	now := time.Unix(1700000000, 0)
	valid, err := s.SignAt(body, now)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		at         time.Time
		wantReason string
		wantLookup bool
	}{
		{"missing header", "", now, "Missing Authorization header", false},
		{"garbage header", "Signature nothing-here", now, "Invalid Authorization header format", false},
		{"rsa algorithm", strings.Replace(valid, `algorithm="ed25519"`, `algorithm="rsa"`, 1), now, "Unsupported algorithm: rsa", false},
		{"two part keyId", strings.Replace(valid, `seller.example.com|uk-1|ed25519`, `seller.example.com|uk-1`, 1), now, "Invalid keyId format: seller.example.com|uk-1", false},
		{"key algorithm mismatch", strings.Replace(valid, `uk-1|ed25519`, `uk-1|x25519`, 1), now, "Key algorithm mismatch: x25519", false},
		{"expired", valid, now.Add(10 * time.Minute), "Request has expired", false},
		{"valid", valid, now.Add(time.Minute), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver.calls = 0
			_, err := VerifyAt(context.Background(), tt.header, body, resolver, tt.at)
			if tt.wantReason == "" {
				require.NoError(t, err)
			} else {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantReason, authErr.Reason)
			}
			assert.Equal(t, tt.wantLookup, resolver.calls > 0)
		})
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	s, _ := newTestSigner(t)
	body := []byte(`{}`)
	header, err := s.Sign(body)
	require.NoError(t, err)

	_, err = Verify(context.Background(), header, body, &staticResolver{})
	require.Error(t, err)
	assert.Equal(t, "Public key not found for seller.example.com|uk-1", err.Error())
}

func TestDecodePrivateKeyAcceptsSeedAndFullKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromSeed, err := DecodePrivateKey(base64.StdEncoding.EncodeToString(priv.Seed()))
	require.NoError(t, err)
	fromFull, err := DecodePrivateKey(base64.StdEncoding.EncodeToString(priv))
	require.NoError(t, err)

	assert.Equal(t, priv, fromSeed)
	assert.Equal(t, fromSeed, fromFull)
	assert.Equal(t, pub, fromFull.Public())

	_, err = DecodePrivateKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestDecodePublicKeyDER(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	der := append([]byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}, pub...)

	got, err := DecodePublicKey(base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	assert.Equal(t, pub, got)
}
