package cache

import (
	"container/list"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/quotehub/internal/model"
)

// Notifier receives every applied put. Implementations must not block.
type Notifier interface {
	Notify(symbol string, q model.Quote)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(symbol string, q model.Quote)

// Notify calls f.
func (f NotifierFunc) Notify(symbol string, q model.Quote) { f(symbol, q) }

// Option configures a Store.
type Option func(*Store)

// WithCapacity bounds the store. 0 means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPinned sets a check for symbols that must never be evicted, such as
// symbols that still have subscribers.
func WithPinned(pinned func(symbol string) bool) Option {
	return func(s *Store) {
		s.pinned = pinned
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier registers a notifier. Notifiers run in registration order.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifiers = append(s.notifiers, n)
	}
}

// WithClock overrides time.Now for receivedAt stamps and freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the symbol -> CacheEntry map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*list.Element // value is *model.CacheEntry
	order   *list.List               // front = most recently updated

	// floors keeps the last timestamp of evicted symbols so a late,
	// older quote cannot come back in after eviction.
	floors map[string]int64

	capacity  int
	pinned    func(symbol string) bool
	notifiers []Notifier
	now       func() time.Time
	logger    *slog.Logger

	applied   atomic.Int64
	discarded atomic.Int64
	evicted   atomic.Int64
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		floors:  make(map[string]int64),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cache")
	return s
}

// Get returns the entry for symbol.
func (s *Store) Get(symbol string) (model.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.entries[symbol]
	if !ok {
		return model.CacheEntry{}, false
	}
	return *el.Value.(*model.CacheEntry), true
}

// Put stores q if its timestamp is not older than the stored one and
// notifies every notifier. It reports whether the quote was applied.
func (s *Store) Put(q model.Quote) bool {
	entry := model.CacheEntry{Quote: q, ReceivedAtMs: s.now().UnixMilli()}
	if !s.store(entry) {
		s.discarded.Add(1)
		s.logger.Debug("discarded out-of-order quote",
			"symbol", q.Symbol,
			"timestamp", q.TimestampMs,
		)
		return false
	}
	s.applied.Add(1)

	for _, n := range s.notifiers {
		n.Notify(q.Symbol, q)
	}
	return true
}

// Seed stores a previously persisted entry without notifying. The entry
// keeps its own ReceivedAtMs, so an old entry reads as stale.
func (s *Store) Seed(e model.CacheEntry) bool {
	return s.store(e)
}

func (s *Store) store(e model.CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := e.Quote.Symbol
	if el, ok := s.entries[symbol]; ok {
		cur := el.Value.(*model.CacheEntry)
		if e.Quote.TimestampMs < cur.Quote.TimestampMs {
			return false
		}
		*cur = e
		s.order.MoveToFront(el)
		return true
	}

	if floor, ok := s.floors[symbol]; ok {
		if e.Quote.TimestampMs < floor {
			return false
		}
		delete(s.floors, symbol)
	}

	s.entries[symbol] = s.order.PushFront(&e)
	if s.capacity > 0 && s.order.Len() > s.capacity {
		s.evictLocked()
	}
	return true
}

// evictLocked drops the least recently updated entry that is not pinned.
// When every entry is pinned the store stays over capacity.
func (s *Store) evictLocked() {
	for el := s.order.Back(); el != nil; el = el.Prev() {
		victim := el.Value.(*model.CacheEntry)
		if s.pinned != nil && s.pinned(victim.Quote.Symbol) {
			continue
		}
		s.order.Remove(el)
		delete(s.entries, victim.Quote.Symbol)
		s.floors[victim.Quote.Symbol] = victim.Quote.TimestampMs
		s.evicted.Add(1)
		s.logger.Debug("evicted entry", "symbol", victim.Quote.Symbol)
		return
	}
}

// IsFresh reports whether symbol has an entry younger than ttl.
func (s *Store) IsFresh(symbol string, ttl time.Duration) bool {
	e, ok := s.Get(symbol)
	return ok && e.IsFresh(s.now(), ttl)
}

// Symbols returns the cached symbols in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of cached symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats holds cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Applied   int64 `json:"applied"`
	Discarded int64 `json:"discarded"`
	Evicted   int64 `json:"evicted"`
}

// Stats returns a snapshot of the cache counters.
func (s *Store) Stats() Stats {
	return Stats{
		Size:      s.Len(),
		Applied:   s.applied.Load(),
		Discarded: s.discarded.Load(),
		Evicted:   s.evicted.Load(),
	}
}
