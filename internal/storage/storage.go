// Package storage provides the shared key/value, sorted-set, set, list and
// pub/sub store that holds books, positions and pending work.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage is the store contract consumed by the engine. Every destructive
// call reports how many members it actually removed; callers treat that
// count as their only claim on the entity.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the scalar at key; ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	HSet(ctx context.Context, key string, fields map[string]string) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRem removes member and returns the number of members removed.
	ZRem(ctx context.Context, key, member string) (int64, error)
	// ZRangeByScore returns members with scores inside r, ascending.
	ZRangeByScore(ctx context.Context, key string, r ScoreRange) ([]string, error)
	// ZMembers returns every member of the sorted set.
	ZMembers(ctx context.Context, key string) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// SAdd returns the number of members that were not already present.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)

	// Del returns the number of keys that existed and were removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	RPush(ctx context.Context, key, value string) error
	// LPop returns the head of the list; ok is false when the list is empty.
	LPop(ctx context.Context, key string) (value string, ok bool, err error)
	LRange(ctx context.Context, key string) ([]string, error)

	// Publish is fire and forget: no delivery guarantee is implied.
	Publish(ctx context.Context, channel, payload string) error

	Ping(ctx context.Context) error
	Close() error
}

// ScoreRange is an inclusive score interval. Empty bounds are open.
type ScoreRange struct {
	Min string
	Max string
}

// AtLeast is the range [price, +inf).
func AtLeast(price float64) ScoreRange {
	return ScoreRange{Min: FormatPrice(price), Max: "+inf"}
}

// AtMost is the range (-inf, price].
func AtMost(price float64) ScoreRange {
	return ScoreRange{Min: "-inf", Max: FormatPrice(price)}
}

// FormatPrice renders a price the way it is written to the store.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisStorage implements Storage on a single Redis node.
// The client sits behind an atomic pointer so Reconnect can swap it
// while other goroutines keep issuing commands.
type RedisStorage struct {
	opts   Options
	client atomic.Pointer[redis.Client]
}

// NewRedisStorage opens a Redis connection and verifies connectivity with a ping.
// Returns an error if the store cannot be reached within 5 seconds.
func NewRedisStorage(opts Options) (*RedisStorage, error) {
	s := &RedisStorage{opts: opts}
	s.client.Store(s.newClient())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return s, nil
}

func (s *RedisStorage) newClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})
}

func (s *RedisStorage) rdb() *redis.Client {
	return s.client.Load()
}

// Reconnect replaces the client with a freshly dialled one and closes the old one.
func (s *RedisStorage) Reconnect(ctx context.Context) error {
	old := s.client.Swap(s.newClient())
	if old != nil {
		_ = old.Close()
	}
	return s.Ping(ctx)
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	return s.rdb().Set(ctx, key, value, 0).Err()
}

func (s *RedisStorage) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return s.rdb().HSet(ctx, key, values...).Err()
}

func (s *RedisStorage) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.rdb().ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStorage) ZRem(ctx context.Context, key, member string) (int64, error) {
	return s.rdb().ZRem(ctx, key, member).Result()
}

func (s *RedisStorage) ZRangeByScore(ctx context.Context, key string, r ScoreRange) ([]string, error) {
	lo, hi := r.Min, r.Max
	if lo == "" {
		lo = "-inf"
	}
	if hi == "" {
		hi = "+inf"
	}
	return s.rdb().ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: lo, Max: hi}).Result()
}

func (s *RedisStorage) ZMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb().ZRange(ctx, key, 0, -1).Result()
}

func (s *RedisStorage) ZCard(ctx context.Context, key string) (int64, error) {
	return s.rdb().ZCard(ctx, key).Result()
}

func (s *RedisStorage) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	values := make([]any, len(members))
	for i, m := range members {
		values[i] = m
	}
	return s.rdb().SAdd(ctx, key, values...).Result()
}

func (s *RedisStorage) SCard(ctx context.Context, key string) (int64, error) {
	return s.rdb().SCard(ctx, key).Result()
}

func (s *RedisStorage) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.rdb().SUnion(ctx, keys...).Result()
}

func (s *RedisStorage) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.rdb().Del(ctx, keys...).Result()
}

func (s *RedisStorage) RPush(ctx context.Context, key, value string) error {
	return s.rdb().RPush(ctx, key, value).Err()
}

func (s *RedisStorage) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb().LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStorage) LRange(ctx context.Context, key string) ([]string, error) {
	return s.rdb().LRange(ctx, key, 0, -1).Result()
}

func (s *RedisStorage) Publish(ctx context.Context, channel, payload string) error {
	return s.rdb().Publish(ctx, channel, payload).Err()
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.rdb().Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	if c := s.rdb(); c != nil {
		return c.Close()
	}
	return nil
}
