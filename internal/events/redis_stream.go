package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStreamPublisher 发布事件到 Redis Streams（XADD）
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":  ev.EventID,
			"type":      ev.Type,
			"ref_id":    ev.RefID,
			"data":      string(data),
			"timestamp": fmt.Sprintf("%d", ev.OccurredAt.Unix()),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", p.stream, err)
	}
	return nil
}

// Ping checks the connection with a short timeout.
func (p *RedisStreamPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}
