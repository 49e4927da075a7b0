package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"ondc-bpp/internal/model"
)

const (
	productKeyPrefix = "ondc:product:"
	productSetKey    = "ondc:products"
	orderKeyPrefix   = "ondc:order:"
	orderSetKey      = "ondc:orders"
	logKeyPrefix     = "ondc:log:"
	logIndexKey      = "ondc:logs:by_created"

	// updateRetries bounds optimistic retries when a watched order changes
	// between read and write.
	updateRetries = 100
)

// Redis is a Store keeping JSON documents in Redis strings. Set members index
// products and orders; a sorted set scored by creation time indexes logs.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) getJSON(ctx context.Context, key string, v any) (bool, error) {
	// redis/go-redis/v9: redis.Nil means the key does not exist.
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) putJSON(ctx context.Context, key, setKey, member string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	if setKey != "" {
		pipe.SAdd(ctx, setKey, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) ListActiveProducts(ctx context.Context) ([]model.Product, error) {
	ids, err := r.rdb.SMembers(ctx, productSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	sort.Strings(ids)
	out := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		p, ok, err := r.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Redis) GetProduct(ctx context.Context, id string) (model.Product, bool, error) {
	var p model.Product
	ok, err := r.getJSON(ctx, productKeyPrefix+id, &p)
	return p, ok, err
}

func (r *Redis) SaveProduct(ctx context.Context, p model.Product) error {
	if p.ID == "" {
		return fmt.Errorf("save product: empty id")
	}
	return r.putJSON(ctx, productKeyPrefix+p.ID, productSetKey, p.ID, p)
}

func (r *Redis) GetOrder(ctx context.Context, id string) (model.OrderRecord, bool, error) {
	var o model.OrderRecord
	ok, err := r.getJSON(ctx, orderKeyPrefix+id, &o)
	return o, ok, err
}

func (r *Redis) SaveOrder(ctx context.Context, o model.OrderRecord) error {
	if o.OndcOrderID == "" {
		return fmt.Errorf("save order: empty ondc_order_id")
	}
	o.RecalculateTotals()
	return r.putJSON(ctx, orderKeyPrefix+o.OndcOrderID, orderSetKey, o.OndcOrderID, o)
}

// UpdateOrder runs fn inside WATCH/MULTI on the order key and retries when
// another writer commits first.
func (r *Redis) UpdateOrder(ctx context.Context, id string, fn func(o *model.OrderRecord) error) (model.OrderRecord, bool, error) {
	key := orderKeyPrefix + id
	var (
		out   model.OrderRecord
		found bool
	)
	var fnErr error
	txf := func(tx *redis.Tx) error {
		found, fnErr = false, nil
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		var cur model.OrderRecord
		if err := json.Unmarshal(data, &cur); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		found = true
		next := cloneOrder(cur)
		if err := fn(&next); err != nil {
			out, fnErr = cur, err
			return nil
		}
		next.OndcOrderID = id
		next.RecalculateTotals()
		enc, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			pipe.SAdd(ctx, orderSetKey, id)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}
	for i := 0; i < updateRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.OrderRecord{}, false, fmt.Errorf("update order %s: %w", id, err)
		}
		if !found {
			return model.OrderRecord{}, false, nil
		}
		return out, true, fnErr
	}
	return model.OrderRecord{}, true, fmt.Errorf("update order %s: too much contention", id)
}

func (r *Redis) ListOrders(ctx context.Context) ([]model.OrderRecord, error) {
	ids, err := r.rdb.SMembers(ctx, orderSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sort.Strings(ids)
	out := make([]model.OrderRecord, 0, len(ids))
	for _, id := range ids {
		o, ok, err := r.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *Redis) CreateLog(ctx context.Context, l model.WebhookLog) error {
	if err := r.putJSON(ctx, logKeyPrefix+l.ID, "", "", l); err != nil {
		return err
	}
	return r.rdb.ZAdd(ctx, logIndexKey, redis.Z{Score: float64(l.CreatedAt.Unix()), Member: l.ID}).Err()
}

func (r *Redis) FinishLog(ctx context.Context, id, status string, response json.RawMessage, errMsg string) error {
	l, ok, err := r.GetLog(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("finish log %s: not found", id)
	}
	l.Status = status
	l.ResponseBody = response
	l.ErrorMessage = errMsg
	l.UpdatedAt = time.Now().UTC()
	return r.putJSON(ctx, logKeyPrefix+id, "", "", l)
}

func (r *Redis) GetLog(ctx context.Context, id string) (model.WebhookLog, bool, error) {
	var l model.WebhookLog
	ok, err := r.getJSON(ctx, logKeyPrefix+id, &l)
	return l, ok, err
}

func (r *Redis) PruneLogs(ctx context.Context, before time.Time) (int, error) {
	max := fmt.Sprintf("(%d", before.Unix())
	ids, err := r.rdb.ZRangeByScore(ctx, logIndexKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = logKeyPrefix + id
		members[i] = id
	}
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, logIndexKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return len(ids), nil
}
