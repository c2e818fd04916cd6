package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = 24 * time.Hour

// RedisPublisher publishes events on a pub/sub channel and keeps the last
// status of each job under <channel>:status:<job id> for a day.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) statusKey(jobID string) string {
	return p.channel + ":status:" + jobID
}

func (p *RedisPublisher) Publish(ctx context.Context, ev JobEvent, body []byte) error {
	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, body)
	pipe.Set(ctx, p.statusKey(ev.JobID), ev.Status, statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Status returns the last published status of jobID, or "" if none is kept.
func (p *RedisPublisher) Status(ctx context.Context, jobID string) (string, error) {
	status, err := p.client.Get(ctx, p.statusKey(jobID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return status, err
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
