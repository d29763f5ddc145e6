package registration

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "pending_registration:"

// verifyScript atomically checks the code and removes the entry, it
// returns the raw payload on success and an empty string otherwise.
// A wrong code leaves the entry in place, an expired one is dropped
var verifyScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return ''
end
local reg = cjson.decode(raw)
if tonumber(ARGV[2]) >= tonumber(reg.expires_at) then
  redis.call('DEL', KEYS[1])
  return ''
end
if reg.verification_code ~= ARGV[1] then
  return ''
end
redis.call('DEL', KEYS[1])
return raw
`)

// updateCodeScript swaps in a fresh code and restarts the TTL in one
// round trip, returns 1 when a live entry was updated
var updateCodeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local reg = cjson.decode(raw)
if tonumber(ARGV[3]) >= tonumber(reg.expires_at) then
  redis.call('DEL', KEYS[1])
  return 0
end
reg.verification_code = ARGV[1]
reg.expires_at = tonumber(ARGV[2])
redis.call('SET', KEYS[1], cjson.encode(reg), 'EX', ARGV[4])
return 1
`)

// RedisStore keeps pending registrations in redis, the key TTL is a
// backstop, expiry is always checked against the stored timestamp
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisStore(log *zap.Logger, client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (s *RedisStore) Add(ctx context.Context, reg *Registration) error {
	entry := *reg
	if entry.ExpiresAt == 0 {
		entry.ExpiresAt = time.Now().UTC().Add(s.ttl).Unix()
	}
	payload, err := json.Marshal(&entry)
	if err != nil {
		return err
	}
	key := keyPrefix + Key(entry.Email, entry.IsAdmin)
	err = s.client.Set(ctx, key, payload, s.ttl).Err()
	if err != nil {
		s.log.Error("could not store pending registration", zap.Error(err))
		return err
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string, isAdmin bool) (*Registration, error) {
	key := keyPrefix + Key(email, isAdmin)
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.log.Error("could not load pending registration", zap.Error(err))
		return nil, err
	}
	var reg Registration
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		return nil, err
	}
	if reg.Expired(time.Now().UTC()) {
		// lazy expiry, the key TTL has not fired yet
		s.client.Del(ctx, key)
		return nil, nil
	}
	return &reg, nil
}

func (s *RedisStore) VerifyAndRemove(
	ctx context.Context,
	email string,
	code string,
	isAdmin bool,
) (*Registration, error) {
	key := keyPrefix + Key(email, isAdmin)
	raw, err := verifyScript.Run(
		ctx,
		s.client,
		[]string{key},
		code,
		time.Now().UTC().Unix(),
	).Text()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Error("verify script failed", zap.Error(err))
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var reg Registration
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *RedisStore) UpdateCode(
	ctx context.Context,
	email string,
	code string,
	isAdmin bool,
) (bool, error) {
	key := keyPrefix + Key(email, isAdmin)
	now := time.Now().UTC()
	res, err := updateCodeScript.Run(
		ctx,
		s.client,
		[]string{key},
		code,
		now.Add(s.ttl).Unix(),
		now.Unix(),
		int(s.ttl.Seconds()),
	).Int()
	if err != nil {
		s.log.Error("update code script failed", zap.Error(err))
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return &Stats{
		Pending: len(keys),
		Keys:    keys,
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
