// Package redisstore keeps session state in Redis so several client
// processes on different hosts can share one login.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/redis/go-redis/v9"
)

var _ storage.Store = (*RedisStore)(nil)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an existing client. Keys are stored as prefix+key.
func New(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection with PING
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrapf(apperrors.ErrStorageUnavailable, "[redisstore Dial] ping %s: %v", addr, err)
	}
	return New(client, prefix), nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := rs.client.Get(ctx, rs.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrStorageUnavailable, "[redisstore Get] %s: %v", key, err)
	}
	return v, nil
}

func (rs *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := rs.client.Set(ctx, rs.prefix+key, value, 0).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorageUnavailable, "[redisstore Set] %s: %v", key, err)
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorageUnavailable, "[redisstore Delete] %s: %v", key, err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	if err := rs.client.Close(); err != nil {
		return fmt.Errorf("[redisstore Close] %w", err)
	}
	return nil
}
