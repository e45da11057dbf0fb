package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Hub.CacheTTL <= 0 {
		return errors.New("hub.cache_ttl must be > 0")
	}
	if c.Hub.CacheCapacity < 0 {
		return errors.New("hub.cache_capacity must be >= 0")
	}
	if c.Hub.ThrottleWindow <= 0 {
		return errors.New("hub.throttle_window must be > 0")
	}
	if c.Hub.PollInterval <= 0 {
		return errors.New("hub.poll_interval must be > 0")
	}
	for i, s := range c.Hub.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("hub.symbols[%d] must not be empty", i)
		}
	}

	if c.Stream.URL != "" {
		u, err := url.Parse(c.Stream.URL)
		if err != nil {
			return fmt.Errorf("stream.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("stream.url scheme must be ws or wss, got %q", u.Scheme)
		}
	}
	if c.Stream.MaxAttempts < 1 {
		return errors.New("stream.max_attempts must be >= 1")
	}
	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}

	if err := c.Sources.Primary.validate("sources.primary"); err != nil {
		return err
	}
	if err := c.Sources.Secondary.validate("sources.secondary"); err != nil {
		return err
	}

	if c.Snapshot.Enabled {
		if err := c.Snapshot.Database.validate("snapshot.database"); err != nil {
			return err
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis.enabled")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	return nil
}

func (s *SourceConfig) validate(prefix string) error {
	if s.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("%s.base_url: %w", prefix, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s.base_url scheme must be http or https, got %q", prefix, u.Scheme)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
