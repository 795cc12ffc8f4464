package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authd:session:"

const (
	revokeStatusNotFound int64 = 0
	revokeStatusRevoked  int64 = 1
	revokeStatusRotated  int64 = 2
)

// recordScript creates the hash only when the token id is unused, so a
// duplicate jti surfaces as a conflict instead of clobbering the entry.
// The key TTL mirrors expires_at: once the token itself can no longer
// decode, the entry has nothing left to say.
var recordScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "user_id", ARGV[1],
  "revoked", "0",
  "expires_at", ARGV[2],
  "successor_id", "",
  "created_at", ARGV[3])
redis.call("EXPIREAT", KEYS[1], ARGV[2])
return 1
`)

// revokeScript is the compare-and-swap on the revoked flag. Exactly one
// concurrent caller observes the 0 -> 1 transition.
var revokeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", "1", "successor_id", ARGV[1])
return 2
`)

// RedisRepository keeps the ledger in redis, one hash per token id, with
// Lua scripts guaranteeing single-winner revocation.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) key(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisRepository) Record(ctx context.Context, session *models.RefreshSession) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	created, err := recordScript.Run(ctx, r.client,
		[]string{r.key(session.ID)},
		session.UserID,
		session.ExpiresAt.Unix(),
		createdAt.Unix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if created == 0 {
		return common.ErrConflict
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, id string) (*models.RefreshSession, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: corrupt expires_at for %s: %w", id, err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: corrupt created_at for %s: %w", id, err)
	}

	return &models.RefreshSession{
		ID:          id,
		UserID:      fields["user_id"],
		Revoked:     fields["revoked"] == "1",
		ExpiresAt:   time.Unix(expiresAt, 0),
		SuccessorID: fields["successor_id"],
		CreatedAt:   time.Unix(createdAt, 0),
	}, nil
}

func (r *RedisRepository) Revoke(ctx context.Context, id string, successorID string) error {
	status, err := revokeScript.Run(ctx, r.client, []string{r.key(id)}, successorID).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	switch status {
	case revokeStatusNotFound:
		return common.ErrorNotFound
	case revokeStatusRevoked:
		return common.ErrAlreadyRevoked
	case revokeStatusRotated:
		return nil
	default:
		return fmt.Errorf("redis error: unexpected revoke status %d", status)
	}
}
