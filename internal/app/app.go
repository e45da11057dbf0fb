// Package app builds quotehub components from configuration. Both binaries
// share it so they wire the hub the same way.
package app

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/quotehub/internal/api"
	"github.com/rickgao/quotehub/internal/config"
	"github.com/rickgao/quotehub/internal/connection"
	"github.com/rickgao/quotehub/internal/fetch"
	"github.com/rickgao/quotehub/internal/hub"
)

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a config level name to a slog level. Unknown names
// map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewPipeline builds the fetch pipeline. Sources without a base URL are
// skipped; the simulator always terminates the chain.
func NewPipeline(cfg config.SourcesConfig, logger *slog.Logger) *fetch.Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	var sources []fetch.Source

	if p := cfg.Primary; p.BaseURL != "" {
		client := api.NewPrimaryClient(p.BaseURL, p.APIKey, clientOptions(p, logger)...)
		sources = append(sources, fetch.NewPrimarySource(client))
		logger.Info("quote source enabled", "source", "primary", "base_url", client.BaseURL())
	}
	if s := cfg.Secondary; s.BaseURL != "" {
		client := api.NewSecondaryClient(s.BaseURL, s.APIKey, clientOptions(s, logger)...)
		sources = append(sources, fetch.NewSecondarySource(client))
		logger.Info("quote source enabled", "source", "secondary", "base_url", client.BaseURL())
	}

	return fetch.NewPipeline(sources,
		fetch.WithSourceTimeout(cfg.SourceTimeout),
		fetch.WithLogger(logger),
	)
}

// retryBackoff is the first delay between REST retries.
const retryBackoff = 500 * time.Millisecond

func clientOptions(cfg config.SourceConfig, logger *slog.Logger) []api.ClientOption {
	opts := []api.ClientOption{api.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, api.WithRetries(cfg.MaxRetries, retryBackoff))
	}
	return opts
}

// ManagerConfig converts stream settings for the Connection Manager.
func ManagerConfig(cfg config.StreamConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		URL:              cfg.URL,
		Token:            cfg.Token,
		HandshakeTimeout: cfg.HandshakeTimeout,
		PingInterval:     cfg.PingInterval,
		BaseDelay:        cfg.ReconnectBaseDelay,
		MaxDelay:         cfg.ReconnectMaxDelay,
		MaxAttempts:      cfg.MaxAttempts,
		ResetWindow:      cfg.ResetWindow,
	}
}

// HubConfig converts hub settings.
func HubConfig(cfg config.HubConfig) hub.Config {
	return hub.Config{
		CacheTTL:       cfg.CacheTTL,
		CacheCapacity:  cfg.CacheCapacity,
		ThrottleWindow: cfg.ThrottleWindow,
		PollInterval:   cfg.PollInterval,
	}
}

// HubOptions returns the options shared by every binary: logger and, when
// a stream URL is configured, the streaming connection.
func HubOptions(cfg *config.Config, logger *slog.Logger) []hub.Option {
	opts := []hub.Option{hub.WithLogger(logger)}
	if cfg.Stream.URL != "" {
		opts = append(opts, hub.WithStream(hub.ManagerStream(ManagerConfig(cfg.Stream), logger)))
	}
	return opts
}
