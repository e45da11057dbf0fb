package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SymbolSource provides the symbols to poll.
type SymbolSource interface {
	ActiveSymbols() []string
}

// Freshness reports whether a symbol's cached quote is younger than ttl.
type Freshness interface {
	IsFresh(symbol string, ttl time.Duration) bool
}

// FetchRequester schedules a throttled fetch and reports whether a new
// fetch was scheduled.
type FetchRequester interface {
	RequestFetch(symbol string) bool
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Tick interval (default: 15s)
	TTL      time.Duration // Entries younger than this are skipped (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 15 * time.Second,
		TTL:      30 * time.Second,
	}
}

// Poller periodically refreshes stale symbols through the throttle gate.
// It can be started and stopped repeatedly.
type Poller struct {
	cfg       Config
	symbols   SymbolSource
	freshness Freshness
	requester FetchRequester
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	ticks     atomic.Int64
	requested atomic.Int64
	starts    atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, symbols SymbolSource, freshness Freshness, requester FetchRequester, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Poller{
		cfg:       cfg,
		symbols:   symbols,
		freshness: freshness,
		requester: requester,
		logger:    logger.With("component", "poller"),
	}
}

// Start begins the polling loop. It is a no-op if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running.Store(true)
	p.starts.Add(1)

	go p.run(ctx, p.done)

	p.logger.Info("poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop halts the polling loop and waits for it to exit. It is a no-op if
// not running.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.running.Store(false)
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// run is the main polling loop.
func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll requests a fetch for every active symbol that is not fresh and
// returns how many new fetches were scheduled.
func (p *Poller) Poll() int {
	p.ticks.Add(1)

	symbols := p.symbols.ActiveSymbols()
	if len(symbols) == 0 {
		p.logger.Debug("no active symbols to poll")
		return 0
	}

	var requested, fresh int
	for _, s := range symbols {
		if p.freshness.IsFresh(s, p.cfg.TTL) {
			fresh++
			continue
		}
		if p.requester.RequestFetch(s) {
			requested++
		}
	}
	p.requested.Add(int64(requested))

	p.logger.Debug("poll cycle complete",
		"symbols", len(symbols),
		"fresh", fresh,
		"requested", requested,
	)
	return requested
}

// Stats holds poller counters.
type Stats struct {
	Running   bool  `json:"running"`
	Starts    int64 `json:"starts"`
	Ticks     int64 `json:"ticks"`
	Requested int64 `json:"requested"`
}

// Stats returns a snapshot of the poller counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Running:   p.running.Load(),
		Starts:    p.starts.Load(),
		Ticks:     p.ticks.Load(),
		Requested: p.requested.Load(),
	}
}
