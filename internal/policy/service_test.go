package policy

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, PolicyAllowed, parseStatus("allowed"))
	assert.Equal(t, PolicyDenied, parseStatus("denied"))
	assert.Equal(t, PolicyUnknown, parseStatus("maybe"))
}

func TestPolicyKey(t *testing.T) {
	assert.Equal(t, "policy:buyer:seller:ONDC:RET10:std:080", policyKey("buyer", "seller", "ONDC:RET10", "std:080"))
}

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestServiceAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())
	s := NewService(rdb)

	st, err := s.CheckPolicy(ctx, "b", "s", "ONDC:RET10", "std:080")
	require.NoError(t, err)
	assert.Equal(t, PolicyUnknown, st)

	require.NoError(t, s.SetPolicy(ctx, "b", "s", "ONDC:RET10", Wildcard, PolicyDenied))
	denied, err := s.Denied(ctx, "b", "s", "ONDC:RET10", "std:080")
	require.NoError(t, err)
	assert.True(t, denied)

	require.NoError(t, s.SetPolicy(ctx, "b", "s", "ONDC:RET10", "std:080", PolicyAllowed))
	denied, err = s.Denied(ctx, "b", "s", "ONDC:RET10", "std:080")
	require.NoError(t, err)
	assert.False(t, denied)
}
