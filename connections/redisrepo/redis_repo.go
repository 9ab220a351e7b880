package redisrepo

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ connections.Repo = (*RedisRepo)(nil)

// RedisRepo stores each session record as a JSON string under its store key.
type RedisRepo struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *RedisRepo {
	return &RedisRepo{client: client}
}

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(errors.ErrStore, "ping redis: %v", err)
	}
	return client, nil
}

func (r *RedisRepo) Read(ctx context.Context, key string) (*connections.Record, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "get %s: %v", key, err)
	}
	var rec connections.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "decode %s: %v", key, err)
	}
	return &rec, nil
}

func (r *RedisRepo) Write(ctx context.Context, key string, rec *connections.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(errors.ErrStore, "encode %s: %v", key, err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrapf(errors.ErrStore, "set %s: %v", key, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(errors.ErrStore, "del %s: %v", key, err)
	}
	return nil
}
