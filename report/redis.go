package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a Redis client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes each document as JSON on a channel.
type RedisSink struct {
	client  Publisher
	channel string
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// NewRedisSink connects to Redis and checks the connection with a ping.
//
// Arguments:
//   - ctx: Bounds the ping.
//   - opts: The server address, credentials and channel.
//
// Returns:
//   - *RedisSink: The sink.
//   - error: An error if the server does not answer.
func NewRedisSink(ctx context.Context, opts RedisOptions) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", opts.Address)
	}
	return NewRedisSinkWithClient(client, opts.Channel), nil
}

// NewRedisSinkWithClient creates a sink on an existing client.
func NewRedisSinkWithClient(client Publisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Name identifies the sink in logs.
func (s *RedisSink) Name() string {
	return "redis"
}

// Publish sends the JSON document to the channel.
func (s *RedisSink) Publish(ctx context.Context, d Document) error {
	data, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", s.channel)
	}
	return nil
}

// Close closes the underlying client when it supports closing.
func (s *RedisSink) Close() error {
	if c, ok := s.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
