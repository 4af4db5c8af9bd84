// Package store provides the two small persistence surfaces the system
// needs: a named-value store (secrets, visitor profiles, the local fallback
// key) and the publication-tracking record. Callers never assume a backend,
// only "read value by name" / "write value by name".
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound reports that no value exists under the requested name.
var ErrNotFound = errors.New("value not found")

// KV is the named-value contract.
type KV interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileKV stores each value as one file in a directory. It is the default
// backend and the persistent browser-scoped storage analog.
type FileKV struct {
	dir string
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		dir = "./data/kv"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (s *FileKV) path(name string) (string, error) {
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("invalid value name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileKV) Get(_ context.Context, name string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *FileKV) Set(_ context.Context, name, value string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(value), 0600)
}

func (s *FileKV) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisKV backs the named-value store with Redis for shared deployments.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects and pings the Redis instance.
func NewRedisKV(ctx context.Context, redisURL string) (*RedisKV, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisKV{client: client}, nil
}

func redisKey(name string) string {
	return "moss:kv:" + name
}

func (s *RedisKV) Get(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, redisKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisKV) Set(ctx context.Context, name, value string) error {
	return s.client.Set(ctx, redisKey(name), value, 0).Err()
}

func (s *RedisKV) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, redisKey(name)).Err()
}

// Close closes the Redis connection.
func (s *RedisKV) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection for components that need raw
// Redis operations, such as the rate limiter.
func (s *RedisKV) Client() *redis.Client {
	return s.client
}
