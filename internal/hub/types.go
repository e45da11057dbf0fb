package hub

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/quotehub/internal/cache"
	"github.com/rickgao/quotehub/internal/connection"
	"github.com/rickgao/quotehub/internal/distribution"
	"github.com/rickgao/quotehub/internal/fetch"
	"github.com/rickgao/quotehub/internal/model"
	"github.com/rickgao/quotehub/internal/poller"
	"github.com/rickgao/quotehub/internal/registry"
	"github.com/rickgao/quotehub/internal/throttle"
)

// Errors
var (
	ErrClosed        = errors.New("hub closed")
	ErrNotStarted    = errors.New("hub not started")
	ErrStarted       = errors.New("hub already started")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrNoStream      = errors.New("no stream configured")
)

// Config holds hub timing and sizing.
type Config struct {
	CacheTTL       time.Duration // Freshness bound for cached quotes (default: 30s)
	CacheCapacity  int           // LRU bound, 0 = unbounded
	ThrottleWindow time.Duration // Debounce window for polled fetches (default: 5s)
	PollInterval   time.Duration // Poll tick (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:       30 * time.Second,
		ThrottleWindow: 5 * time.Second,
		PollInterval:   15 * time.Second,
	}
}

// Fetcher resolves a quote for a symbol. It never fails; the Report carries
// per-source errors.
type Fetcher interface {
	FetchReport(ctx context.Context, symbol string) (model.Quote, fetch.Report)
}

// Stream is the push connection the hub keeps subscribed to the active
// symbol set. *connection.Manager implements it.
type Stream interface {
	Connect() error
	Retry() error
	Stop(ctx context.Context) error
	SetDesiredSymbols(symbols []string)
	Status() model.ConnectionStatus
}

// StreamFactory builds a Stream that reports to listener.
type StreamFactory func(listener connection.Listener) Stream

// ManagerStream returns a StreamFactory backed by a connection.Manager.
func ManagerStream(cfg connection.ManagerConfig, logger *slog.Logger) StreamFactory {
	return func(listener connection.Listener) Stream {
		return connection.NewManager(cfg, listener, logger)
	}
}

// Seeder loads previously persisted entries for warm start.
type Seeder interface {
	Load(ctx context.Context) ([]model.CacheEntry, error)
}

// Snapshot is a consumer's view of one symbol.
type Snapshot struct {
	Quote       model.Quote
	IsLoading   bool      // No quote has been cached yet
	Err         error     // Last fetch diagnostics, only with WithDiagnostics
	LastUpdated time.Time // When the cached quote was received
	Stale       bool      // Cached quote is older than the cache TTL
}

// MailboxStats sums mailbox counters over live handles.
type MailboxStats struct {
	Pending  int   `json:"pending"`
	Capacity int   `json:"capacity"`
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
	Resizes  int   `json:"resizes"`
}

func (m *MailboxStats) add(b distribution.BufferStats) {
	m.Pending += b.Count
	m.Capacity += b.Capacity
	m.Sent += b.Sent
	m.Received += b.Received
	m.Resizes += b.Resizes
}

// Stats is a point-in-time view of hub internals.
type Stats struct {
	ActiveSymbols  int                `json:"active_symbols"`
	Handles        int                `json:"handles"`
	ForcedFetches  int64              `json:"forced_fetches"`
	PolledFetches  int64              `json:"polled_fetches"`
	DroppedResults int64              `json:"dropped_results"`
	StreamQuotes   int64              `json:"stream_quotes"`
	Registry       registry.Stats     `json:"registry"`
	Cache          cache.Stats        `json:"cache"`
	Throttle       throttle.Stats     `json:"throttle"`
	Poller         poller.Stats       `json:"poller"`
	Distribution   distribution.Stats `json:"distribution"`
	Mailboxes      MailboxStats       `json:"mailboxes"`
	Fetch          *fetch.Stats       `json:"fetch,omitempty"`
}
