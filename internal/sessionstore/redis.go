package sessionstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
)

const KeyPrefixSession = "ccs:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings before returning, like every Valkey client in
// the deployment.
func NewRedisClient(cfg *factory.Redis) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 3 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect redis [%s]", cfg.Addr)
	}
	logger.StoreLog.Infof("Connected to redis [%s]", cfg.Addr)
	return client, nil
}

// NewRedisStore keeps each session in one HASH. ttl is the inactivity timeout
// refreshed on every write; zero disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) GetField(ctx context.Context, sessionID, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, KeyPrefixSession+sessionID, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(ErrUnavailable, "hget %s/%s: %v", sessionID, field, err)
	}
	return v, true, nil
}

func (s *RedisStore) SetField(ctx context.Context, sessionID, field, value string) error {
	key := KeyPrefixSession + sessionID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(ErrUnavailable, "hset %s/%s: %v", sessionID, field, err)
	}
	return nil
}

func (s *RedisStore) DeleteField(ctx context.Context, sessionID, field string) error {
	if err := s.client.HDel(ctx, KeyPrefixSession+sessionID, field).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "hdel %s/%s: %v", sessionID, field, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, KeyPrefixSession+sessionID).Result()
	if err != nil {
		return false, errors.Wrapf(ErrUnavailable, "exists %s: %v", sessionID, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, KeyPrefixSession+sessionID).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "del %s: %v", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "ping: %v", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
