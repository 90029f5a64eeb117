package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Keys:
//
//	<prefix>:rt:<token>    hash with id, user_id, device_tag, expires_at, created_at, updated_at
//	<prefix>:rtu:<userID>  set of the user's token values
//	<prefix>:rtexp         sorted set of token values scored by expires_at
//
// Timestamps are unix milliseconds. Token hashes outlive their expiry by
// expiredRetention so a late refresh still reads as expired rather than unknown.
const expiredRetention = time.Hour

const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local expires_at = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if not expires_at or expires_at <= tonumber(ARGV[4]) then
  return 0
end
local user_id = redis.call("HGET", KEYS[1], "user_id")
redis.call("RENAME", KEYS[1], KEYS[2])
redis.call("HSET", KEYS[2], "expires_at", ARGV[3], "updated_at", ARGV[4])
if ARGV[5] ~= "" then
  redis.call("HSET", KEYS[2], "device_tag", ARGV[5])
end
redis.call("PEXPIREAT", KEYS[2], ARGV[7])
local user_key = ARGV[6] .. user_id
redis.call("SREM", user_key, ARGV[1])
redis.call("SADD", user_key, ARGV[2])
redis.call("ZREM", KEYS[3], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
return redis.call("HGETALL", KEYS[2])
`

const deleteScript = `
redis.call("ZREM", KEYS[2], ARGV[1])
local user_id = redis.call("HGET", KEYS[1], "user_id")
if not user_id then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. user_id, ARGV[1])
return 1
`

const deleteByUserScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, t in ipairs(tokens) do
  n = n + redis.call("DEL", ARGV[1] .. t)
  redis.call("ZREM", KEYS[2], t)
end
redis.call("DEL", KEYS[1])
return n
`

const purgeScript = `
local tokens = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local n = 0
for _, t in ipairs(tokens) do
  local key = ARGV[2] .. t
  local user_id = redis.call("HGET", key, "user_id")
  if user_id then
    redis.call("DEL", key)
    redis.call("SREM", ARGV[3] .. user_id, t)
    n = n + 1
  end
  redis.call("ZREM", KEYS[1], t)
end
return n
`

var (
	rotateLua       = redis.NewScript(rotateScript)
	deleteLua       = redis.NewScript(deleteScript)
	deleteByUserLua = redis.NewScript(deleteByUserScript)
	purgeLua        = redis.NewScript(purgeScript)
)

// RedisRepository is a Token Store on a single Redis node. Every mutation
// that touches more than one key runs as a Lua script.
type RedisRepository struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRepository stores tokens on a single Redis node. The scripts derive
// the user index key from hash fields, which Redis Cluster does not allow, so
// cluster clients are not accepted.
func NewRedisRepository(rdb *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "mk"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) tokenPrefix() string { return r.prefix + ":rt:" }
func (r *RedisRepository) userPrefix() string  { return r.prefix + ":rtu:" }
func (r *RedisRepository) expiryKey() string   { return r.prefix + ":rtexp" }

func (r *RedisRepository) tokenKey(token string) string { return r.tokenPrefix() + token }
func (r *RedisRepository) userKey(userID string) string { return r.userPrefix() + userID }

func (r *RedisRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	token.ID = uuid.NewString()
	key := r.tokenKey(token.Token)
	expires := token.ExpiresAt.UnixMilli()

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", token.ID,
			"user_id", token.UserID,
			"device_tag", token.DeviceTag,
			"expires_at", expires,
			"created_at", token.CreatedAt.UnixMilli(),
			"updated_at", token.UpdatedAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, token.ExpiresAt.Add(expiredRetention))
		pipe.SAdd(ctx, r.userKey(token.UserID), token.Token)
		pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(expires), Member: token.Token})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return tokenFromHash(token, fields)
}

func (r *RedisRepository) Rotate(ctx context.Context, oldToken, newToken, deviceTag string, expiresAt, now time.Time) (*models.RefreshToken, error) {
	keys := []string{r.tokenKey(oldToken), r.tokenKey(newToken), r.expiryKey()}
	res, err := rotateLua.Run(ctx, r.rdb, keys,
		oldToken,
		newToken,
		expiresAt.UnixMilli(),
		now.UnixMilli(),
		deviceTag,
		r.userPrefix(),
		expiresAt.Add(expiredRetention).UnixMilli(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	flat, ok := res.([]any)
	if !ok {
		return nil, common.ErrorNotFound
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}
	return tokenFromHash(newToken, fields)
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	keys := []string{r.tokenKey(token), r.expiryKey()}
	if err := deleteLua.Run(ctx, r.rdb, keys, token, r.userPrefix()).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	keys := []string{r.userKey(userID), r.expiryKey()}
	n, err := deleteByUserLua.Run(ctx, r.rdb, keys, r.tokenPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func (r *RedisRepository) ListByUser(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	tokens, err := r.rdb.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, t := range tokens {
			cmds[i] = pipe.HGetAll(ctx, r.tokenKey(t))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var result []models.RefreshToken
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rt, err := tokenFromHash(tokens[i], fields)
		if err != nil {
			return nil, err
		}
		if rt.Expired(now) {
			continue
		}
		result = append(result, *rt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *RedisRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := purgeLua.Run(ctx, r.rdb, []string{r.expiryKey()},
		now.UnixMilli(), r.tokenPrefix(), r.userPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func tokenFromHash(token string, fields map[string]string) (*models.RefreshToken, error) {
	millis := func(name string) (time.Time, error) {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("corrupt refresh token field %s: %w", name, err)
		}
		return time.UnixMilli(v), nil
	}

	rt := &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Token:     token,
		DeviceTag: fields["device_tag"],
	}
	var err error
	if rt.ExpiresAt, err = millis("expires_at"); err != nil {
		return nil, err
	}
	if rt.CreatedAt, err = millis("created_at"); err != nil {
		return nil, err
	}
	if rt.UpdatedAt, err = millis("updated_at"); err != nil {
		return nil, err
	}
	return rt, nil
}
