// Package policy answers whether a buyer app may transact with this seller
// in a domain and city.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PolicyStatus represents the authorization status for a buyer×seller×domain×city combination.
type PolicyStatus string

const (
	PolicyUnknown PolicyStatus = "unknown"
	PolicyAllowed PolicyStatus = "allowed"
	PolicyDenied  PolicyStatus = "denied"
)

// Wildcard matches any city in a stored policy key.
const Wildcard = "*"

// Service provides buyer/seller authorization checks backed by Redis.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func policyKey(buyerID, sellerID, domain, city string) string {
	return fmt.Sprintf("policy:%s:%s:%s:%s", buyerID, sellerID, domain, city)
}

// CheckPolicy returns the policy status for {buyer, seller, domain, city}.
// An exact city entry wins over a wildcard entry.
func (s *Service) CheckPolicy(ctx context.Context, buyerID, sellerID, domain, city string) (PolicyStatus, error) {
	for _, c := range []string{city, Wildcard} {
		// redis/go-redis/v9: redis.Nil indicates the key doesn't exist.
		val, err := s.rdb.Get(ctx, policyKey(buyerID, sellerID, domain, c)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return PolicyUnknown, err
		}
		return parseStatus(val), nil
	}
	return PolicyUnknown, nil
}

func parseStatus(val string) PolicyStatus {
	switch val {
	case "allowed":
		return PolicyAllowed
	case "denied":
		return PolicyDenied
	default:
		return PolicyUnknown
	}
}

// SetPolicy sets the policy status for {buyer, seller, domain, city}.
func (s *Service) SetPolicy(ctx context.Context, buyerID, sellerID, domain, city string, status PolicyStatus) error {
	return s.rdb.Set(ctx, policyKey(buyerID, sellerID, domain, city), string(status), 0).Err()
}

// Denied reports whether the buyer is explicitly denied. Unknown
// combinations are allowed; only an explicit deny blocks a buyer.
func (s *Service) Denied(ctx context.Context, buyerID, sellerID, domain, city string) (bool, error) {
	st, err := s.CheckPolicy(ctx, buyerID, sellerID, domain, city)
	if err != nil {
		return false, err
	}
	return st == PolicyDenied, nil
}
