package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "refresh:"
	scanBatch      = 500
)

type redisRecord struct {
	MemberID  string    `json:"member_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisRepository keeps one key per member holding a JSON record. Keys carry
// a TTL equal to the remaining token validity so Redis sweeps expired rows.
type RedisRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func redisKey(memberID string) string {
	return redisKeyPrefix + memberID
}

// record encodes token and returns the TTL its key should carry. A
// non-positive TTL means the token is already expired.
func (r *RedisRepository) record(token *models.RefreshToken) ([]byte, time.Duration, error) {
	now := r.now()
	ttl := token.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil, ttl, nil
	}

	created := token.CreatedAt
	if created.IsZero() {
		created = now
	}

	payload, err := json.Marshal(redisRecord{
		MemberID:  token.MemberID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: created,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal refresh token: %w", err)
	}
	return payload, ttl, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, token *models.RefreshToken) error {
	payload, ttl, err := r.record(token)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		// already expired, the previous token must not survive either
		return r.Delete(ctx, token.MemberID)
	}

	if err := r.client.Set(ctx, redisKey(token.MemberID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) (bool, error) {
	payload, ttl, err := r.record(next)
	if err != nil {
		return false, err
	}

	return r.compareAndSwap(ctx, next.MemberID, oldToken, func(pipe redis.Pipeliner, key string) {
		if ttl <= 0 {
			pipe.Del(ctx, key)
			return
		}
		pipe.Set(ctx, key, payload, ttl)
	})
}

func (r *RedisRepository) DeleteIfCurrent(ctx context.Context, memberID, token string) (bool, error) {
	return r.compareAndSwap(ctx, memberID, token, func(pipe redis.Pipeliner, key string) {
		pipe.Del(ctx, key)
	})
}

// compareAndSwap runs apply in a MULTI block if the member's key still holds
// token. The key is WATCHed, so a concurrent write between the read and
// EXEC aborts the transaction and reports false.
func (r *RedisRepository) compareAndSwap(ctx context.Context, memberID, token string, apply func(pipe redis.Pipeliner, key string)) (bool, error) {
	key := redisKey(memberID)
	swapped := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var rec redisRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("unmarshal refresh token: %w", err)
		}
		if rec.Token != token || !rec.ExpiresAt.After(r.now()) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			apply(pipe, key)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return swapped, nil
}

func (r *RedisRepository) FindByMember(ctx context.Context, memberID string) (*models.RefreshToken, error) {
	raw, err := r.client.Get(ctx, redisKey(memberID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}

	t := &models.RefreshToken{
		MemberID:  rec.MemberID,
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
	if t.Expired(r.now()) {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (r *RedisRepository) Delete(ctx context.Context, memberID string) error {
	if err := r.client.Del(ctx, redisKey(memberID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Count scans the key prefix. SCAN may return a key more than once, so
// keys are deduplicated before counting.
func (r *RedisRepository) Count(ctx context.Context) (int64, error) {
	seen := make(map[string]struct{})
	err := r.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(seen)), nil
}

func (r *RedisRepository) DeleteAll(ctx context.Context) error {
	return r.scan(ctx, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
}

func (r *RedisRepository) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return fmt.Errorf("redis error: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
