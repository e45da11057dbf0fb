package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID         = "quotehub"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultCacheTTL           = 30 * time.Second
	DefaultThrottleWindow     = 5 * time.Second
	DefaultPollInterval       = 15 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultHandshakeTimeout   = 15 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxAttempts        = 10
	DefaultResetWindow        = 120 * time.Second
	DefaultSourceHTTPTimeout  = 10 * time.Second
	DefaultSourceMaxRetries   = 1
	DefaultSourceTimeout      = 8 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultFlushInterval      = 5 * time.Second
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisChannelPrefix = "prices."
	DefaultRedisKeyPrefix     = "stock:"
	DefaultRedisKeyTTL        = 24 * time.Hour
	DefaultHTTPPort           = 8080
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Hub defaults
	if c.Hub.CacheTTL == 0 {
		c.Hub.CacheTTL = DefaultCacheTTL
	}
	if c.Hub.ThrottleWindow == 0 {
		c.Hub.ThrottleWindow = DefaultThrottleWindow
	}
	if c.Hub.PollInterval == 0 {
		c.Hub.PollInterval = DefaultPollInterval
	}

	// Stream defaults
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxAttempts == 0 {
		c.Stream.MaxAttempts = DefaultMaxAttempts
	}
	if c.Stream.ResetWindow == 0 {
		c.Stream.ResetWindow = DefaultResetWindow
	}

	// Source defaults
	applySourceDefaults(&c.Sources.Primary)
	applySourceDefaults(&c.Sources.Secondary)
	if c.Sources.SourceTimeout == 0 {
		c.Sources.SourceTimeout = DefaultSourceTimeout
	}

	// Snapshot defaults
	applyDBDefaults(&c.Snapshot.Database)
	if c.Snapshot.FlushInterval == 0 {
		c.Snapshot.FlushInterval = DefaultFlushInterval
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = DefaultRedisChannelPrefix
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.KeyTTL == 0 {
		c.Redis.KeyTTL = DefaultRedisKeyTTL
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.Timeout == 0 {
		s.Timeout = DefaultSourceHTTPTimeout
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = DefaultSourceMaxRetries
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
