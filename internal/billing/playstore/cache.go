package playstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"subsBridge/internal/models"
)

// RedisStore keeps purchase records in a Redis hash keyed by purchase token.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a store for the given package.
func NewRedisStore(rdb *redis.Client, packageName string) *RedisStore {
	return &RedisStore{rdb: rdb, key: "billing:purchases:" + packageName}
}

// Save upserts a record.
func (s *RedisStore) Save(ctx context.Context, rec models.RawPurchaseRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key, rec.PurchaseToken, data).Err()
}

// Get loads a record by purchase token.
func (s *RedisStore) Get(ctx context.Context, purchaseToken string) (models.RawPurchaseRecord, bool, error) {
	data, err := s.rdb.HGet(ctx, s.key, purchaseToken).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RawPurchaseRecord{}, false, nil
	}
	if err != nil {
		return models.RawPurchaseRecord{}, false, err
	}
	var rec models.RawPurchaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.RawPurchaseRecord{}, false, fmt.Errorf("decode purchase %s: %w", purchaseToken, err)
	}
	return rec, true, nil
}

// List returns all records, oldest purchase first.
func (s *RedisStore) List(ctx context.Context) ([]models.RawPurchaseRecord, error) {
	entries, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.RawPurchaseRecord, 0, len(entries))
	for token, data := range entries {
		var rec models.RawPurchaseRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode purchase %s: %w", token, err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchaseTimeMillis == out[j].PurchaseTimeMillis {
			return out[i].PurchaseToken < out[j].PurchaseToken
		}
		return out[i].PurchaseTimeMillis < out[j].PurchaseTimeMillis
	})
	return out, nil
}
