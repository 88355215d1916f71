// Package history is the conversion-event pipeline: a capped Redis list of
// recent events, pub/sub fanout for live consumers, and ClickHouse for the
// permanent record.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reservelabs/reserve-gateway/internal/constants"
	"github.com/reservelabs/reserve-gateway/internal/models"
)

// RedisCache keeps the recent-conversions list and publishes live events.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client, logger *logrus.Logger) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}, nil
}

// AddRecentConversion pushes an event onto the recent list, trimming it to
// MaxRecentConversions.
func (r *RedisCache) AddRecentConversion(ctx context.Context, ev *models.ConversionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal conversion: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentConversions, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentConversions, 0, constants.MaxRecentConversions-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent conversion: %w", err)
	}
	return nil
}

// GetRecentConversions returns up to limit most-recent events, newest first.
func (r *RedisCache) GetRecentConversions(ctx context.Context, limit int64) ([]*models.ConversionEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentConversions {
		limit = constants.MaxRecentConversions
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentConversions, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent conversions: %w", err)
	}

	out := make([]*models.ConversionEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.ConversionEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			r.logger.WithError(err).Warn("skipping malformed conversion event")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// PublishConversion fans the event out to the live channel plus the
// kind-specific channel.
func (r *RedisCache) PublishConversion(ctx context.Context, ev *models.ConversionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal conversion: %w", err)
	}

	channels := []string{constants.PubSubChannelConversions}
	switch ev.Kind {
	case "deposit":
		channels = append(channels, constants.PubSubChannelDeposits)
	case "redeem":
		channels = append(channels, constants.PubSubChannelRedemptions)
	}

	pipe := r.client.Pipeline()
	for _, ch := range channels {
		pipe.Publish(ctx, ch, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish conversion: %w", err)
	}
	return nil
}

// SubscribeConversions delivers events from the given channel to the handler
// until the context is cancelled.
func (r *RedisCache) SubscribeConversions(ctx context.Context, channel string, handler func(*models.ConversionEvent)) error {
	pubsub := r.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	r.logger.WithField("channel", channel).Info("subscribed to conversion events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.ConversionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.WithError(err).Warn("skipping malformed conversion event")
				continue
			}
			handler(&ev)
		}
	}
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
