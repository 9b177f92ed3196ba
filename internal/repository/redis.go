package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"camrent/internal/config"
	"camrent/internal/models"

	"github.com/redis/go-redis/v9"
)

const dialogKeyPrefix = "camrent:dialog:"

type RedisDialogRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisDialogRepository(client *redis.Client, ttl time.Duration) *RedisDialogRepository {
	return &RedisDialogRepository{
		client: client,
		ttl:    ttl,
	}
}

func dialogKey(id string) string {
	return dialogKeyPrefix + id
}

func (r *RedisDialogRepository) GetDialog(ctx context.Context, id string) (*models.DialogState, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, dialogKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dialog from redis: %w", err)
	}

	var state models.DialogState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dialog: %w", err)
	}
	return &state, nil
}

func (r *RedisDialogRepository) SetDialog(ctx context.Context, state *models.DialogState) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal dialog: %w", err)
	}
	if err := r.client.Set(ctx, dialogKey(state.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dialog in redis: %w", err)
	}
	return nil
}

func (r *RedisDialogRepository) ClearDialog(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, dialogKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete dialog from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
