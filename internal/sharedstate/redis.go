package sharedstate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "dispatch:state:"

// RedisMedium publishes each instance's snapshot under its own key with a
// short TTL, so snapshots from dead instances age out on their own.
type RedisMedium struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMedium(client *redis.Client, ttl time.Duration) *RedisMedium {
	return &RedisMedium{client: client, ttl: ttl}
}

func (r *RedisMedium) Save(ctx context.Context, instanceID string, data []byte) error {
	return r.client.Set(ctx, snapshotKeyPrefix+instanceID, data, r.ttl).Err()
}

func (r *RedisMedium) LoadPeers(ctx context.Context, instanceID string) ([][]byte, error) {
	selfKey := snapshotKeyPrefix + instanceID

	var peerKeys []string
	iter := r.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 64).Iterator()
	for iter.Next(ctx) {
		if key := iter.Val(); key != selfKey {
			peerKeys = append(peerKeys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(peerKeys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, peerKeys...).Result()
	if err != nil {
		return nil, err
	}

	var out [][]byte
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, []byte(s))
		}
	}
	return out, nil
}
