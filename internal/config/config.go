package config

import "time"

// Config is the root configuration for a quotehub instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Log      LogConfig      `yaml:"log"`
	Hub      HubConfig      `yaml:"hub"`
	Stream   StreamConfig   `yaml:"stream"`
	Sources  SourcesConfig  `yaml:"sources"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// InstanceConfig identifies this instance in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HubConfig holds cache, throttle and poll settings, plus the watchlist the
// daemon keeps subscribed for its whole lifetime.
type HubConfig struct {
	Symbols        []string      `yaml:"symbols"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheCapacity  int           `yaml:"cache_capacity"` // 0 = unbounded
	ThrottleWindow time.Duration `yaml:"throttle_window"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// StreamConfig holds streaming connection settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	Token              string        `yaml:"token"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts        int           `yaml:"max_attempts"`
	ResetWindow        time.Duration `yaml:"reset_window"`
}

// SourcesConfig holds the REST quote sources used by the fetch pipeline.
type SourcesConfig struct {
	Primary       SourceConfig  `yaml:"primary"`
	Secondary     SourceConfig  `yaml:"secondary"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

// SourceConfig holds a single REST quote endpoint. An empty BaseURL disables it.
type SourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// SnapshotConfig holds the optional last-known-quote store.
type SnapshotConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the optional Redis bridge settings.
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	KeyPrefix     string        `yaml:"key_prefix"`
	KeyTTL        time.Duration `yaml:"key_ttl"`
}

// HTTPConfig holds the status API settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}
