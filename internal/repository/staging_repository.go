package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

const stagingKeyPrefix = "conversion:pending:"

// compareAndDelete removes the slot only if it still holds the given token, so a
// conversion staged after submit began is not dropped.
var compareAndDelete = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StagingRepository keeps one pending conversion per console user in a Redis hash.
type StagingRepository struct {
	client *redis.Client
}

// NewStagingRepository constructs the repository.
func NewStagingRepository(client *redis.Client) *StagingRepository {
	return &StagingRepository{client: client}
}

// StagingKey returns the Redis key of ownerID's slot.
func StagingKey(ownerID string) string {
	return stagingKeyPrefix + ownerID
}

// Save overwrites ownerID's slot and sets its TTL.
func (r *StagingRepository) Save(ctx context.Context, pending models.PendingConversion, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending conversion: %w", err)
	}
	key := StagingKey(pending.OwnerID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "token", pending.Token, "payload", payload)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis stage %s: %w", key, err)
	}
	return nil
}

// Load returns ownerID's slot, or appErrors.ErrCacheMiss when none is staged.
func (r *StagingRepository) Load(ctx context.Context, ownerID string) (*models.PendingConversion, error) {
	key := StagingKey(ownerID)
	raw, err := r.client.HGet(ctx, key, "payload").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	var pending models.PendingConversion
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending conversion %s: %w", key, err)
	}
	return &pending, nil
}

// Delete drops ownerID's slot unconditionally.
func (r *StagingRepository) Delete(ctx context.Context, ownerID string) error {
	key := StagingKey(ownerID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// DeleteIfToken drops ownerID's slot only while it still holds token.
func (r *StagingRepository) DeleteIfToken(ctx context.Context, ownerID, token string) (bool, error) {
	key := StagingKey(ownerID)
	n, err := compareAndDelete.Run(ctx, r.client, []string{key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-delete %s: %w", key, err)
	}
	return n > 0, nil
}
