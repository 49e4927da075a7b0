// Package subscribe answers the registry's /on_subscribe challenge during
// network onboarding.
package subscribe

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// Request is the /on_subscribe body.
type Request struct {
	SubscriberID string `json:"subscriber_id"`
	Challenge    string `json:"challenge"`
}

// Response is the /on_subscribe answer.
type Response struct {
	Answer string `json:"answer"`
}

// Answerer decrypts challenges with the X25519 secret shared between our
// encryption key and the registry's.
type Answerer struct {
	shared []byte
}

// NewAnswerer derives the shared secret. Keys are base64 of either the raw
// 32-byte key or its DER (PKCS#8 private, SPKI public) encoding.
func NewAnswerer(privateKeyB64, registryPublicKeyB64 string) (*Answerer, error) {
	priv, err := decodeX25519(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("encryption private key: %w", err)
	}
	pub, err := decodeX25519(registryPublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("registry encryption public key: %w", err)
	}
	shared, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret: %w", err)
	}
	return &Answerer{shared: shared}, nil
}

// decodeX25519 accepts the raw key or a DER wrapper whose last 32 bytes are
// the key (48-byte PKCS#8, 44-byte SPKI).
func decodeX25519(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case curve25519.ScalarSize:
		return raw, nil
	case 44, 48:
		return raw[len(raw)-curve25519.ScalarSize:], nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(raw))
	}
}

// Answer decrypts a base64 AES-256-ECB challenge and strips its PKCS#7
// padding.
func (a *Answerer) Answer(challengeB64 string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(challengeB64)
	if err != nil {
		return "", fmt.Errorf("decode challenge: %w", err)
	}
	block, err := aes.NewCipher(a.shared)
	if err != nil {
		return "", err
	}
	bs := block.BlockSize()
	if len(ct) == 0 || len(ct)%bs != 0 {
		return "", errors.New("challenge is not a whole number of blocks")
	}
	pt := make([]byte, len(ct))
	for i := 0; i < len(ct); i += bs {
		block.Decrypt(pt[i:i+bs], ct[i:i+bs])
	}
	return unpad(pt, bs)
}

func unpad(b []byte, bs int) (string, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return "", errors.New("invalid padding")
	}
	if !bytes.Equal(b[len(b)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return "", errors.New("invalid padding")
	}
	return string(b[:len(b)-n]), nil
}
