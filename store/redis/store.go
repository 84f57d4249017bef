package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const defaultConnectTimeout = 5 * time.Second

type Config struct {
	Addr      string `koanf:"addr" mapstructure:"addr"`
	Username  string `koanf:"username" mapstructure:"username"`
	Password  string `koanf:"password" mapstructure:"password"`
	DB        int    `koanf:"db" mapstructure:"db"`
	KeyPrefix string `koanf:"key_prefix" mapstructure:"key_prefix"`
}

// Store implements core.KVStore on Redis so state and credentials are shared
// between service instances.
type Store struct {
	client    redis.Cmdable
	keyPrefix string
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, cfg Config) (*Store, *redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil, fmt.Errorf("redisstore: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Addr),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, storeError(err, "redisstore: connect", "")
	}
	store, err := New(client, cfg.KeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, client, nil
}

func New(client redis.Cmdable, keyPrefix string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	return &Store{client: client, keyPrefix: strings.TrimSpace(keyPrefix)}, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ready(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("redisstore: ttl must be positive")
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return storeError(err, "redisstore: set", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ready(key); err != nil {
		return nil, err
	}
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, storeError(err, "redisstore: get", key)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ready(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return storeError(err, "redisstore: delete", key)
	}
	return nil
}

// Take uses GETDEL so concurrent callers never both observe the value.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	if err := s.ready(key); err != nil {
		return nil, err
	}
	value, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, storeError(err, "redisstore: take", key)
	}
	return value, nil
}

func (s *Store) ready(key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("redisstore: key is required")
	}
	return nil
}

func (s *Store) key(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + key
}

func storeError(err error, message string, key string) error {
	wrapped := goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(core.ServiceErrorStoreUnavailable)
	if key != "" {
		// Keys embed org and user ids, never secrets.
		wrapped = wrapped.WithMetadata(map[string]any{"key": key})
	}
	return wrapped
}

var _ core.KVStore = (*Store)(nil)
