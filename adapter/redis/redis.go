// Package redis publishes message events to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/ferry/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "ferry:message"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel (default ferry:message).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// SplitRooms publishes group messages on "<Channel>:<room id>"
	// instead of Channel.
	SplitRooms bool
}

// Adapter publishes message events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter. Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Channel returns the configured channel.
func (a *Adapter) Channel() string {
	return a.config.Channel
}

// ChannelFor returns the channel event is published on.
func (a *Adapter) ChannelFor(event *adapter.MessageEvent) string {
	if a.config.SplitRooms && event.IsGroup && event.RoomID != "" {
		return a.config.Channel + ":" + event.RoomID
	}
	return a.config.Channel
}

// Publish sends the event as JSON, retrying failures with backoff.
// A publish that reaches no subscriber still succeeds.
func (a *Adapter) Publish(ctx context.Context, event *adapter.MessageEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.ChannelFor(event)
	return adapter.Retry(ctx, "redis", a.config.Retries, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		if err := a.client.Publish(publishCtx, channel, body).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", channel, err)
		}
		return nil
	}, nil)
}

// Close releases the Redis connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
