package bloom

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSeenFromReply(t *testing.T) {
	tests := []struct {
		name  string
		reply any
		want  bool
	}{
		{"int new", int64(1), false},
		{"int seen", int64(0), true},
		{"bool new", true, false},
		{"bool seen", false, true},
		{"unexpected", "OK", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := redis.NewCmd(context.Background())
			cmd.SetVal(tt.reply)
			assert.Equal(t, tt.want, seenFromReply(cmd))
		})
	}
}

func TestNilFilter(t *testing.T) {
	var f *ReplayFilter
	assert.False(t, f.Seen(context.Background(), "msg"))
}

// Runs against redis-stack when REDIS_BLOOM_TEST_ADDR is set.
func TestReplayFilterAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_BLOOM_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_BLOOM_TEST_ADDR not set")
	}
	ctx := context.Background()
	f := NewReplayFilter(ctx, redis.NewClient(&redis.Options{Addr: addr}))
	id := uuid.NewString()
	assert.False(t, f.Seen(ctx, id))
	assert.True(t, f.Seen(ctx, id))
}
