// Package bloom flags probable message_id replays with a RedisBloom filter.
package bloom

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// messageKey is the RedisBloom filter key for inbound message ids.
const messageKey = "ondc:message_ids"

// ReplayFilter remembers message ids it has been shown.
type ReplayFilter struct {
	client *redis.Client
	key    string
}

// NewReplayFilter reserves the filter if it does not exist yet.
func NewReplayFilter(ctx context.Context, client *redis.Client) *ReplayFilter {
	// RedisBloom: BF.RESERVE with error rate 0.001 and capacity 10M. This
	// errors harmlessly when the filter already exists.
	if err := client.Do(ctx, "BF.RESERVE", messageKey, 0.001, 10_000_000).Err(); err != nil {
		log.Printf("bloom: reserve message ids (may already exist): %v", err)
	}
	return &ReplayFilter{client: client, key: messageKey}
}

// Seen returns true if key was probably added before, and adds it.
// Filter errors are logged and treated as not seen.
func (f *ReplayFilter) Seen(ctx context.Context, key string) bool {
	if f == nil || f.client == nil {
		return false
	}
	res := f.client.Do(ctx, "BF.ADD", f.key, key)
	if res.Err() != nil {
		log.Printf("bloom: BF.ADD error: %v", res.Err())
		return false
	}
	return seenFromReply(res)
}

// seenFromReply interprets BF.ADD's reply, which is an integer on older
// RedisBloom versions and a boolean on newer ones. 1/true means new.
func seenFromReply(res *redis.Cmd) bool {
	val, err := res.Int()
	if err == nil {
		return val == 0
	}
	boolVal, boolErr := res.Bool()
	if boolErr != nil {
		log.Printf("bloom: BF.ADD type error (not int or bool): %v", err)
		return false
	}
	return !boolVal
}
