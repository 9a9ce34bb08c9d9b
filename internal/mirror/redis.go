// Package mirror publishes delivery events to Redis so external
// monitors can watch relay traffic with a plain SUBSCRIBE, without
// holding a dashboard session on this process.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/relay"
)

// DefaultChannel is the pub/sub channel delivery events go out on.
const DefaultChannel = "pulserelay:deliveries"

// RedisTap implements relay.Tap over Redis PUBLISH. Events are queued
// to a single publisher goroutine so a slow or down Redis never blocks
// a fanout: when the queue is full, mirror events are dropped, counted
// only in a warning log. Delivery to clients is unaffected either way.
type RedisTap struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	events chan relay.DeliveryEvent
	done   chan struct{}
}

func NewRedisTap(redisURL, channel string, logger *zap.Logger) (*RedisTap, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	t := &RedisTap{
		client:  client,
		channel: channel,
		logger:  logger,
		events:  make(chan relay.DeliveryEvent, 256),
		done:    make(chan struct{}),
	}
	go t.publishLoop()
	return t, nil
}

// MessageDelivered queues one event for publication. Never blocks.
func (t *RedisTap) MessageDelivered(ev relay.DeliveryEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("redis mirror queue full, dropping event",
			zap.String("namespace", ev.Namespace),
			zap.String("room", ev.Room),
		)
	}
}

func (t *RedisTap) publishLoop() {
	for {
		select {
		case ev := <-t.events:
			payload, err := json.Marshal(ev)
			if err != nil {
				t.logger.Error("marshal mirror event", zap.Error(err))
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = t.client.Publish(ctx, t.channel, payload).Err()
			cancel()
			if err != nil {
				t.logger.Warn("redis publish failed", zap.Error(err))
			}
		case <-t.done:
			return
		}
	}
}

// Close stops the publisher and releases the Redis client. Queued but
// unpublished events are discarded — mirroring is best-effort by
// contract.
func (t *RedisTap) Close() error {
	close(t.done)
	return t.client.Close()
}
