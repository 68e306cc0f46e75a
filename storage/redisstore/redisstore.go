package redisstore

import (
	"context"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-session-manager/storage"
)

var _ storage.Store = (*Store)(nil)

// Config for a Redis-backed storage.Store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SESSION_KEY_PREFIX
	KeyPrefix string `env:"SESSION_KEY_PREFIX,default=session-manager:"`
	// TTL applied to every key; zero means no expiry. ENV: SESSION_KEY_TTL
	TTL time.Duration `env:"SESSION_KEY_TTL,default=0s"`
}

// Store persists session keys in Redis so a session can be restored by
// another process (or the same process after a restart).
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func New(cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "[redisstore.New] redis ping")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "session-manager:"
	}
	return &Store{client: client, keyPrefix: prefix, ttl: cfg.TTL}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(key string) string { return s.keyPrefix + key }

func (s *Store) Get(key string) (string, error) {
	value, err := s.client.Get(context.Background(), s.key(key)).Result()
	if err == redis.Nil {
		return "", storage.NotFoundErr
	}
	if err != nil {
		return "", errors.Wrap(err, "[Store.Get] redis get")
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	if err := s.client.Set(context.Background(), s.key(key), value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "[Store.Set] redis set")
	}
	return nil
}

func (s *Store) Remove(key string) error {
	if err := s.client.Del(context.Background(), s.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[Store.Remove] redis del")
	}
	return nil
}
