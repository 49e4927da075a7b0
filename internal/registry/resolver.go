// Package registry resolves counterparty signing keys from the ONDC
// registry, caching them with a TTL.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrKeyNotFound is returned when neither the registry nor the cache knows
// the key.
var ErrKeyNotFound = errors.New("public key not found")

// Resolver implements signing.KeyResolver.
type Resolver struct {
	url        string
	domain     string
	ttl        time.Duration
	cache      Cache
	httpClient *http.Client
}

// NewResolver creates a Resolver posting lookups to url.
func NewResolver(url, domain string, timeout, ttl time.Duration, cache Cache) *Resolver {
	return &Resolver{
		url:    url,
		domain: domain,
		ttl:    ttl,
		cache:  cache,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type lookupRequest struct {
	SubscriberID string `json:"subscriber_id"`
	UkID         string `json:"ukId"`
	Domain       string `json:"domain"`
	Type         string `json:"type"`
}

type lookupEntry struct {
	UkID             string `json:"ukId"`
	UniqueKeyID      string `json:"unique_key_id"`
	SigningPublicKey string `json:"signing_public_key"`
}

// ResolvePublicKey returns the cached key when present, otherwise looks it
// up and caches it. A failed lookup falls back to the cache once more so a
// key cached by another replica in the meantime is still honoured.
func (r *Resolver) ResolvePublicKey(ctx context.Context, subscriberID, uniqueKeyID string) (string, error) {
	key := CacheKey(subscriberID, uniqueKeyID)
	if v, ok, err := r.cache.Get(ctx, key); err != nil {
		log.Printf("Registry: cache read %s: %v", key, err)
	} else if ok {
		return v, nil
	}

	pub, err := r.lookup(ctx, subscriberID, uniqueKeyID)
	if err == nil && pub != "" {
		if cerr := r.cache.Set(ctx, key, pub, r.ttl); cerr != nil {
			log.Printf("Registry: cache write %s: %v", key, cerr)
		}
		return pub, nil
	}
	if err != nil {
		log.Printf("Registry: lookup failed for %s: %v", subscriberID, err)
	}

	if v, ok, cerr := r.cache.Get(ctx, key); cerr == nil && ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s|%s", ErrKeyNotFound, subscriberID, uniqueKeyID)
}

func (r *Resolver) lookup(ctx context.Context, subscriberID, uniqueKeyID string) (string, error) {
	payload, err := json.Marshal(lookupRequest{
		SubscriberID: subscriberID,
		UkID:         uniqueKeyID,
		Domain:       r.domain,
		Type:         "BAP",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read registry response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned %d: %s", resp.StatusCode, string(body))
	}
	return extractKey(body, uniqueKeyID)
}

// extractKey accepts either a list of registry entries or a single entry.
func extractKey(body []byte, uniqueKeyID string) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errors.New("empty registry response")
	}

	if trimmed[0] == '[' {
		var entries []lookupEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return "", fmt.Errorf("decode registry list: %w", err)
		}
		if len(entries) == 0 {
			return "", nil
		}
		for _, e := range entries {
			if e.UkID == uniqueKeyID || e.UniqueKeyID == uniqueKeyID {
				return e.SigningPublicKey, nil
			}
		}
		return entries[0].SigningPublicKey, nil
	}

	var entry lookupEntry
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return "", fmt.Errorf("decode registry entry: %w", err)
	}
	return entry.SigningPublicKey, nil
}
