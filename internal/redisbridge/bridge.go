// Package redisbridge mirrors applied quotes into Redis for consumers
// outside the process.
//
// Each quote is stored under <key_prefix><SYMBOL> with a TTL and published
// on <channel_prefix><SYMBOL>, in one pipeline.
package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/quotehub/internal/distribution"
	"github.com/rickgao/quotehub/internal/model"
)

// Config holds bridge configuration.
type Config struct {
	ChannelPrefix string        // Pub/sub channel prefix (default: "prices.")
	KeyPrefix     string        // Key prefix (default: "stock:")
	KeyTTL        time.Duration // Expiry of stored quotes (default: 24h)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChannelPrefix: "prices.",
		KeyPrefix:     "stock:",
		KeyTTL:        24 * time.Hour,
	}
}

// Bridge is a cache notifier that writes quotes to Redis from its own
// goroutine. Notify never blocks.
type Bridge struct {
	cfg    Config
	client redis.Cmdable
	logger *slog.Logger

	queue  *distribution.GrowableBuffer[model.Quote]
	cancel context.CancelFunc
	done   chan struct{}

	published atomic.Int64
	errors    atomic.Int64
}

// New creates a Bridge.
func New(cfg Config, client redis.Cmdable, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = def.ChannelPrefix
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = def.KeyTTL
	}
	return &Bridge{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "redisbridge"),
		queue:  distribution.NewGrowableBuffer[model.Quote](64),
	}
}

// Notify queues q for publishing.
func (b *Bridge) Notify(symbol string, q model.Quote) {
	if !b.queue.Send(q) {
		b.logger.Debug("bridge closed, dropping quote", "symbol", symbol)
	}
}

// Start begins publishing queued quotes.
func (b *Bridge) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go b.run(ctx)

	b.logger.Info("redis bridge started",
		"channel_prefix", b.cfg.ChannelPrefix,
		"key_prefix", b.cfg.KeyPrefix,
	)
	return nil
}

// Stop publishes what is queued and halts, bounded by ctx.
func (b *Bridge) Stop(ctx context.Context) error {
	b.queue.Close()
	if b.done == nil {
		return nil
	}

	select {
	case <-b.done:
		b.cancel()
		b.logger.Info("redis bridge stopped")
		return nil
	case <-ctx.Done():
		b.cancel()
		return fmt.Errorf("stop redis bridge: %w", ctx.Err())
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	for {
		q, ok := b.queue.Receive(ctx)
		if !ok {
			return
		}
		if err := b.Publish(ctx, q); err != nil {
			b.errors.Add(1)
			b.logger.Warn("redis publish failed", "symbol", q.Symbol, "error", err)
		}
	}
}

// Publish stores and publishes q synchronously.
func (b *Bridge) Publish(ctx context.Context, q model.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.Key(q.Symbol), payload, b.cfg.KeyTTL)
	pipe.Publish(ctx, b.Channel(q.Symbol), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec pipeline: %w", err)
	}

	b.published.Add(1)
	return nil
}

// Key returns the Redis key for symbol.
func (b *Bridge) Key(symbol string) string {
	return b.cfg.KeyPrefix + symbol
}

// Channel returns the pub/sub channel for symbol.
func (b *Bridge) Channel(symbol string) string {
	return b.cfg.ChannelPrefix + symbol
}

// Stats holds bridge counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Published int64 `json:"published"`
	Errors    int64 `json:"errors"`
}

// Stats returns current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Queued:    b.queue.Len(),
		Published: b.published.Load(),
		Errors:    b.errors.Load(),
	}
}
