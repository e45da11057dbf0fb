package distribution

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/quotehub/internal/model"
)

// Sink receives quotes for one symbol. Deliver must not block; it returns
// false once the sink no longer accepts updates.
type Sink interface {
	Deliver(q model.Quote) bool
}

// Distributor routes quotes to the sinks registered for their symbol.
type Distributor struct {
	logger *slog.Logger

	mu    sync.RWMutex
	sinks map[string]map[uuid.UUID]Sink

	notifies  atomic.Int64
	delivered atomic.Int64
	rejected  atomic.Int64
}

// NewDistributor creates an empty Distributor.
func NewDistributor(logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		logger: logger.With("component", "distribution"),
		sinks:  make(map[string]map[uuid.UUID]Sink),
	}
}

// Register adds a sink for symbol under id.
func (d *Distributor) Register(symbol string, id uuid.UUID, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, ok := d.sinks[symbol]
	if !ok {
		part = make(map[uuid.UUID]Sink)
		d.sinks[symbol] = part
	}
	part[id] = sink
}

// Unregister removes the sink registered under id. It reports whether
// one was found.
func (d *Distributor) Unregister(symbol string, id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, ok := d.sinks[symbol]
	if !ok {
		return false
	}
	if _, ok := part[id]; !ok {
		return false
	}
	delete(part, id)
	if len(part) == 0 {
		delete(d.sinks, symbol)
	}
	return true
}

// Notify delivers q to every sink registered for symbol. It implements
// cache.Notifier.
func (d *Distributor) Notify(symbol string, q model.Quote) {
	d.notifies.Add(1)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, sink := range d.sinks[symbol] {
		if sink.Deliver(q) {
			d.delivered.Add(1)
			continue
		}
		d.rejected.Add(1)
		d.logger.Debug("sink rejected quote", "symbol", symbol, "handle", id)
	}
}

// Count returns the number of sinks registered for symbol.
func (d *Distributor) Count(symbol string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks[symbol])
}

// Stats holds distribution counters.
type Stats struct {
	Sinks     int   `json:"sinks"`
	Notifies  int64 `json:"notifies"`
	Delivered int64 `json:"delivered"`
	Rejected  int64 `json:"rejected"`
}

// Stats returns a snapshot of the distribution counters.
func (d *Distributor) Stats() Stats {
	d.mu.RLock()
	n := 0
	for _, part := range d.sinks {
		n += len(part)
	}
	d.mu.RUnlock()

	return Stats{
		Sinks:     n,
		Notifies:  d.notifies.Load(),
		Delivered: d.delivered.Load(),
		Rejected:  d.rejected.Load(),
	}
}
