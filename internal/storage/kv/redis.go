package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/entitlement-session/internal/config"
)

// Redis хранилище поверх redis. Все ключи получают префикс,
// чтобы несколько клиентов могли делить одну базу.
type Redis struct {
	Db     *redis.Client
	prefix string
}

// InitRedis подключается к redis и проверяет соединение.
func InitRedis(ctx context.Context, cfg config.RedisConnection, prefix string) (*Redis, error) {
	const op = "kv.InitRedis"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewRedis(db, prefix), nil
}

// NewRedis оборачивает готовый клиент.
func NewRedis(db *redis.Client, prefix string) *Redis {
	return &Redis{Db: db, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(key string) (string, bool, error) {
	const op = "kv.Redis.Get"
	val, err := r.Db.Get(context.Background(), r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

func (r *Redis) Set(key, value string) error {
	const op = "kv.Redis.Set"
	if err := r.Db.Set(context.Background(), r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Redis) Remove(key string) error {
	const op = "kv.Redis.Remove"
	if err := r.Db.Del(context.Background(), r.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с redis.
func (r *Redis) Close() error {
	return r.Db.Close()
}
