// Package throttle collapses bursts of fetch requests per symbol.
package throttle

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Gate debounces fetch requests. The first request for a symbol starts a
// window timer; requests arriving while the timer is pending are skipped.
// When the timer fires the fire callback runs once for that symbol.
type Gate struct {
	window time.Duration
	fire   func(symbol string)
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingFetch
	stopped bool

	fired   atomic.Int64
	skipped atomic.Int64
}

type pendingFetch struct {
	timer *time.Timer
}

// New creates a Gate. fire is called from a timer goroutine and must not block.
func New(window time.Duration, fire func(symbol string), logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		window:  window,
		fire:    fire,
		logger:  logger.With("component", "throttle"),
		pending: make(map[string]*pendingFetch),
	}
}

// RequestFetch schedules a fetch for symbol after the window. It returns
// false when a fetch is already pending (the request is coalesced).
func (g *Gate) RequestFetch(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return false
	}
	if _, ok := g.pending[symbol]; ok {
		g.skipped.Add(1)
		return false
	}

	p := &pendingFetch{}
	p.timer = time.AfterFunc(g.window, func() { g.onTimer(symbol, p) })
	g.pending[symbol] = p
	return true
}

func (g *Gate) onTimer(symbol string, p *pendingFetch) {
	g.mu.Lock()
	if g.pending[symbol] != p {
		// Cancelled or replaced while the timer was firing.
		g.mu.Unlock()
		return
	}
	delete(g.pending, symbol)
	g.mu.Unlock()

	g.fired.Add(1)
	g.logger.Debug("throttle window elapsed", "symbol", symbol)
	g.fire(symbol)
}

// Cancel drops a pending fetch for symbol. It reports whether one existed.
func (g *Gate) Cancel(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[symbol]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(g.pending, symbol)
	return true
}

// IsPending reports whether a fetch is scheduled for symbol.
func (g *Gate) IsPending(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[symbol]
	return ok
}

// Pending returns the number of scheduled fetches.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Stop cancels every pending fetch and rejects new requests.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for symbol, p := range g.pending {
		p.timer.Stop()
		delete(g.pending, symbol)
	}
	g.stopped = true
}

// Stats holds gate counters.
type Stats struct {
	Pending int   `json:"pending"`
	Fired   int64 `json:"fired"`
	Skipped int64 `json:"skipped"`
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Pending: g.Pending(),
		Fired:   g.fired.Load(),
		Skipped: g.skipped.Load(),
	}
}
