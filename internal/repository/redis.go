package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slotengine/internal/config"
	"slotengine/internal/models"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisAvailabilityStore shares computed days between processes. Each key
// expires at the end of its date, so entries never outlive their validity.
type RedisAvailabilityStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAvailabilityStore(client *redis.Client, prefix string) *RedisAvailabilityStore {
	return &RedisAvailabilityStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisAvailabilityStore) key(dateKey, serviceID string) string {
	return fmt.Sprintf("%savailability:%s:%s", r.prefix, dateKey, serviceID)
}

func (r *RedisAvailabilityStore) GetDay(ctx context.Context, date time.Time, serviceID string) (*models.DayAvailability, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, r.key(models.DateKey(date), serviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var day models.DayAvailability
	if err := json.Unmarshal(val, &day); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	// JSON keeps only the offset; restore the caller's location.
	day.Date = models.DateOf(date)
	if day.Slots == nil {
		day.Slots = []models.TimeSlot{}
	}
	return &day, nil
}

func (r *RedisAvailabilityStore) PutDay(ctx context.Context, day models.DayAvailability) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	key := r.key(models.DateKey(day.Date), day.ServiceID)
	expiresAt := models.DateOf(day.Date).AddDate(0, 0, 1)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityStore) InvalidateDate(ctx context.Context, date time.Time) error {
	return r.deleteMatching(ctx, r.key(models.DateKey(date), "*"))
}

func (r *RedisAvailabilityStore) InvalidateAll(ctx context.Context) error {
	return r.deleteMatching(ctx, r.prefix+"availability:*")
}

func (r *RedisAvailabilityStore) deleteMatching(ctx context.Context, pattern string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete availability from redis: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
