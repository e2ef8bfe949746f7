package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"airsupport/internal/config"
	"airsupport/internal/models"

	"github.com/redis/go-redis/v9"
)

const approvalKeyPrefix = "approval:"

type RedisApprovalRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisApprovalRepository(client *redis.Client, ttl time.Duration) *RedisApprovalRepository {
	return &RedisApprovalRepository{
		client: client,
		ttl:    ttl,
	}
}

func approvalKey(id string) string {
	return approvalKeyPrefix + id
}

func (r *RedisApprovalRepository) SaveApproval(ctx context.Context, approval *models.PendingApproval) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(approval)
	if err != nil {
		return fmt.Errorf("failed to marshal approval: %w", err)
	}

	if err := r.client.Set(ctx, approvalKey(approval.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set approval in redis: %w", err)
	}
	return nil
}

func (r *RedisApprovalRepository) GetApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, approvalKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval from redis: %w", err)
	}
	return decodeApproval(val)
}

// TakeApproval reads and removes the entry in one round trip so two
// resolvers cannot both act on it.
func (r *RedisApprovalRepository) TakeApproval(ctx context.Context, id string) (*models.PendingApproval, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.GetDel(ctx, approvalKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take approval from redis: %w", err)
	}
	return decodeApproval(val)
}

func decodeApproval(val string) (*models.PendingApproval, error) {
	var approval models.PendingApproval
	if err := json.Unmarshal([]byte(val), &approval); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval: %w", err)
	}
	return &approval, nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
