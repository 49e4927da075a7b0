// Package signing implements the ONDC Authorization header: BLAKE-512 body
// digests signed with Ed25519 by the sender and verified by the receiver
// against the sender's key from the registry.
package signing

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Algorithm is the only signing algorithm the network accepts.
const Algorithm = "ed25519"

// SignatureTTL is how long a generated header stays valid.
const SignatureTTL = 5 * time.Minute

// KeyResolver returns the base64 Ed25519 public key registered for a
// subscriber's unique key id.
type KeyResolver interface {
	ResolvePublicKey(ctx context.Context, subscriberID, uniqueKeyID string) (string, error)
}

// AuthError is returned for every verification failure. Reason is the
// human-readable cause logged in the audit trail.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authErr(format string, args ...any) *AuthError {
	return &AuthError{Reason: fmt.Sprintf(format, args...)}
}

// CanonicalJSON returns the compact serialisation that is digested.
// Raw JSON bytes are compacted without reordering keys, so an inbound body
// digests exactly as its sender serialised it. Other values are marshalled
// with HTML escaping off so non-ASCII and <>& survive unchanged.
func CanonicalJSON(v any) ([]byte, error) {
	var raw []byte
	switch b := v.(type) {
	case []byte:
		raw = b
	case json.RawMessage:
		raw = b
	case string:
		raw = []byte(b)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		raw = buf.Bytes()
	}

	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, fmt.Errorf("compact body: %w", err)
	}
	return out.Bytes(), nil
}

// ComputeDigest returns base64(BLAKE2b-512(CanonicalJSON(body))).
func ComputeDigest(body any) (string, error) {
	data, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum512(data)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// BuildSigningString lays out the three signed lines.
func BuildSigningString(created, expires int64, digest string) string {
	return fmt.Sprintf("(created): %d\n(expires): %d\ndigest: BLAKE-512=%s", created, expires, digest)
}

// DecodePrivateKey accepts a base64 32-byte seed or 64-byte seed||public
// blob and returns the full key derived from the seed.
func DecodePrivateKey(b64 string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize, ed25519.PrivateKeySize:
		return ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// derPrefixLen is the SubjectPublicKeyInfo header in front of a DER encoded
// Ed25519 key; some participants register keys in that form.
const derPrefixLen = 12

// DecodePublicKey accepts a raw 32-byte key or its DER encoding, base64.
func DecodePublicKey(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	switch len(raw) {
	case ed25519.PublicKeySize:
		return ed25519.PublicKey(raw), nil
	case ed25519.PublicKeySize + derPrefixLen:
		return ed25519.PublicKey(raw[derPrefixLen:]), nil
	default:
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
}

// GenerateKeyPair creates a signing key pair as base64 seed and public key.
func GenerateKeyPair() (privateB64, publicB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(priv.Seed()), base64.StdEncoding.EncodeToString(pub), nil
}

// Signer produces Authorization headers for outbound calls.
type Signer struct {
	subscriberID string
	uniqueKeyID  string
	key          ed25519.PrivateKey
	now          func() time.Time
}

// NewSigner decodes privateKeyB64 and binds it to this participant's ids.
func NewSigner(subscriberID, uniqueKeyID, privateKeyB64 string) (*Signer, error) {
	key, err := DecodePrivateKey(privateKeyB64)
	if err != nil {
		return nil, err
	}
	return &Signer{
		subscriberID: subscriberID,
		uniqueKeyID:  uniqueKeyID,
		key:          key,
		now:          time.Now,
	}, nil
}

// PublicKey returns the base64 public half of the signing key.
func (s *Signer) PublicKey() string {
	return base64.StdEncoding.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// Sign returns the Authorization header for body.
func (s *Signer) Sign(body any) (string, error) {
	return s.SignAt(body, s.now())
}

// SignAt is Sign with an explicit creation time.
func (s *Signer) SignAt(body any, now time.Time) (string, error) {
	digest, err := ComputeDigest(body)
	if err != nil {
		return "", err
	}
	created := now.Unix()
	expires := now.Add(SignatureTTL).Unix()
	sig := ed25519.Sign(s.key, []byte(BuildSigningString(created, expires, digest)))

	// keyId is subscriber first, then unique key id.
	return fmt.Sprintf(`Signature keyId="%s|%s|%s",algorithm="%s",created="%d",expires="%d",headers="(created) (expires) digest",signature="%s"`,
		s.subscriberID, s.uniqueKeyID, Algorithm, Algorithm, created, expires,
		base64.StdEncoding.EncodeToString(sig)), nil
}

var headerParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseHeader extracts the key="value" pairs of an Authorization header.
// It returns false when no pair is found.
func ParseHeader(header string) (map[string]string, bool) {
	header = strings.TrimPrefix(strings.TrimSpace(header), "Signature ")
	matches := headerParam.FindAllStringSubmatch(header, -1)
	if len(matches) == 0 {
		return nil, false
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		out[m[1]] = m[2]
	}
	return out, true
}

// KeyID is the parsed keyId parameter.
type KeyID struct {
	SubscriberID string
	UniqueKeyID  string
	Algorithm    string
}

// Verify checks header against body, resolving the sender key through
// resolver. body should be the raw request bytes.
func Verify(ctx context.Context, header string, body []byte, resolver KeyResolver) (KeyID, error) {
	return VerifyAt(ctx, header, body, resolver, time.Now())
}

// VerifyAt is Verify evaluated at now.
func VerifyAt(ctx context.Context, header string, body []byte, resolver KeyResolver, now time.Time) (KeyID, error) {
	var kid KeyID
	if strings.TrimSpace(header) == "" {
		return kid, authErr("Missing Authorization header")
	}
	params, ok := ParseHeader(header)
	if !ok {
		return kid, authErr("Invalid Authorization header format")
	}

	if alg := params["algorithm"]; alg != Algorithm {
		return kid, authErr("Unsupported algorithm: %s", alg)
	}

	parts := strings.Split(params["keyId"], "|")
	if len(parts) != 3 {
		return kid, authErr("Invalid keyId format: %s", params["keyId"])
	}
	kid = KeyID{SubscriberID: parts[0], UniqueKeyID: parts[1], Algorithm: parts[2]}
	if kid.Algorithm != Algorithm {
		return kid, authErr("Key algorithm mismatch: %s", kid.Algorithm)
	}

	created, err := strconv.ParseInt(params["created"], 10, 64)
	if err != nil {
		return kid, authErr("Invalid created timestamp")
	}
	expires, err := strconv.ParseInt(params["expires"], 10, 64)
	if err != nil {
		return kid, authErr("Invalid expires timestamp")
	}
	if now.Unix() > expires {
		return kid, authErr("Request has expired")
	}

	pubB64, err := resolver.ResolvePublicKey(ctx, kid.SubscriberID, kid.UniqueKeyID)
	if err != nil || pubB64 == "" {
		return kid, &AuthError{Reason: fmt.Sprintf("Public key not found for %s|%s", kid.SubscriberID, kid.UniqueKeyID), Err: err}
	}
	pub, err := DecodePublicKey(pubB64)
	if err != nil {
		return kid, &AuthError{Reason: "Signature verification error: " + err.Error(), Err: err}
	}

	digest, err := ComputeDigest(body)
	if err != nil {
		return kid, &AuthError{Reason: "Signature verification error: " + err.Error(), Err: err}
	}
	sig, err := base64.StdEncoding.DecodeString(params["signature"])
	if err != nil {
		return kid, authErr("Signature verification error: invalid base64 signature")
	}
	if !ed25519.Verify(pub, []byte(BuildSigningString(created, expires, digest)), sig) {
		return kid, authErr("Signature verification failed")
	}
	return kid, nil
}
