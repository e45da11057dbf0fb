package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/quotehub/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	calls []model.Quote
}

func (r *recorder) Notify(symbol string, q model.Quote) {
	r.mu.Lock()
	r.calls = append(r.calls, q)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func quote(symbol string, price float64, ts int64) model.Quote {
	return model.Quote{Symbol: symbol, Price: price, TimestampMs: ts, Source: model.SourcePolled}
}

func TestStore_PutMonotonic(t *testing.T) {
	rec := &recorder{}
	s := New(WithNotifier(rec))

	if !s.Put(quote("AAPL", 100, 1000)) {
		t.Fatal("first put should apply")
	}
	if !s.Put(quote("AAPL", 101, 2000)) {
		t.Fatal("newer put should apply")
	}
	if s.Put(quote("AAPL", 99, 1500)) {
		t.Error("older put should be discarded")
	}
	if !s.Put(quote("AAPL", 102, 2000)) {
		t.Error("equal timestamp should apply")
	}

	e, ok := s.Get("AAPL")
	if !ok {
		t.Fatal("Get returned !ok")
	}
	if e.Quote.Price != 102 {
		t.Errorf("Price = %v, want 102", e.Quote.Price)
	}
	if got := rec.count(); got != 3 {
		t.Errorf("notifications = %d, want 3", got)
	}

	st := s.Stats()
	if st.Applied != 3 || st.Discarded != 1 {
		t.Errorf("Stats = %+v, want applied 3 discarded 1", st)
	}
}

func TestStore_TimestampsNonDecreasing(t *testing.T) {
	s := New()
	seq := []int64{5, 3, 9, 9, 1, 12, 11, 20}

	last := int64(0)
	for _, ts := range seq {
		s.Put(quote("TSLA", 1, ts))
		e, _ := s.Get("TSLA")
		if e.Quote.TimestampMs < last {
			t.Fatalf("timestamp went backwards: %d after %d", e.Quote.TimestampMs, last)
		}
		last = e.Quote.TimestampMs
	}
	if last != 20 {
		t.Errorf("final timestamp = %d, want 20", last)
	}
}

func TestStore_NotifiesOnlyPutSymbol(t *testing.T) {
	var got []string
	s := New(WithNotifier(NotifierFunc(func(symbol string, q model.Quote) {
		got = append(got, symbol)
	})))

	s.Put(quote("TSLA", 240, 1))
	s.Put(quote("AAPL", 175, 1))

	if len(got) != 2 || got[0] != "TSLA" || got[1] != "AAPL" {
		t.Errorf("notified = %v, want [TSLA AAPL]", got)
	}
}

func TestStore_NotifierOrder(t *testing.T) {
	var order []string
	s := New(
		WithNotifier(NotifierFunc(func(string, model.Quote) { order = append(order, "first") })),
		WithNotifier(NotifierFunc(func(string, model.Quote) { order = append(order, "second") })),
	)

	s.Put(quote("SPY", 450, 1))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestStore_IsFresh(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))

	if s.IsFresh("AAPL", 30*time.Second) {
		t.Error("missing symbol should not be fresh")
	}

	s.Put(quote("AAPL", 100, 1))
	if !s.IsFresh("AAPL", 30*time.Second) {
		t.Error("just-put symbol should be fresh")
	}

	now = now.Add(30 * time.Second)
	if s.IsFresh("AAPL", 30*time.Second) {
		t.Error("entry aged exactly TTL should be stale")
	}
	if _, ok := s.Get("AAPL"); !ok {
		t.Error("stale entry should still be served")
	}
}

func TestStore_SeedKeepsReceivedAt(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	s := New(WithNotifier(rec), WithClock(func() time.Time { return now }))

	old := now.Add(-time.Hour).UnixMilli()
	if !s.Seed(model.CacheEntry{Quote: quote("MSFT", 380, old), ReceivedAtMs: old}) {
		t.Fatal("Seed should apply to empty store")
	}
	if s.IsFresh("MSFT", 30*time.Second) {
		t.Error("seeded entry should be stale")
	}
	if rec.count() != 0 {
		t.Error("Seed should not notify")
	}

	s.Put(quote("MSFT", 381, now.UnixMilli()))
	if !s.IsFresh("MSFT", 30*time.Second) {
		t.Error("put after seed should be fresh")
	}
}

func TestStore_CapacityEvictsLeastRecentlyUpdated(t *testing.T) {
	s := New(WithCapacity(2))

	s.Put(quote("A", 1, 1))
	s.Put(quote("B", 1, 1))
	s.Put(quote("A", 2, 2)) // A becomes most recent
	s.Put(quote("C", 1, 1)) // evicts B

	if _, ok := s.Get("B"); ok {
		t.Error("B should have been evicted")
	}
	if got := s.Symbols(); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("Symbols() = %v, want [A C]", got)
	}
	if s.Stats().Evicted != 1 {
		t.Errorf("Evicted = %d, want 1", s.Stats().Evicted)
	}
}

func TestStore_EvictedSymbolKeepsTimestampFloor(t *testing.T) {
	s := New(WithCapacity(1))

	s.Put(quote("AAPL", 190, 200))
	s.Put(quote("MSFT", 400, 200)) // evicts AAPL

	if s.Put(quote("AAPL", 180, 100)) {
		t.Error("older quote for an evicted symbol should be discarded")
	}
	if _, ok := s.Get("AAPL"); ok {
		t.Error("discarded quote should not be stored")
	}

	if !s.Put(quote("AAPL", 191, 200)) {
		t.Error("quote at the evicted timestamp should be applied")
	}
	if e, _ := s.Get("AAPL"); e.Quote.Price != 191 {
		t.Errorf("AAPL price = %v, want 191", e.Quote.Price)
	}
}

func TestStore_PinnedSymbolsNotEvicted(t *testing.T) {
	active := map[string]bool{"AAPL": true}
	s := New(
		WithCapacity(1),
		WithPinned(func(symbol string) bool { return active[symbol] }),
	)

	s.Put(quote("AAPL", 190, 1))
	s.Put(quote("MSFT", 400, 1)) // AAPL is pinned, so MSFT itself goes

	if _, ok := s.Get("AAPL"); !ok {
		t.Error("pinned AAPL should stay cached")
	}
	if _, ok := s.Get("MSFT"); ok {
		t.Error("unpinned MSFT should have been evicted")
	}

	active["MSFT"] = true
	s.Put(quote("MSFT", 401, 2))
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 when every entry is pinned", s.Len())
	}
}

func TestStore_UnboundedByDefault(t *testing.T) {
	s := New()
	for i := range 500 {
		s.Put(quote(fmt.Sprintf("S%03d", i), 1, 1))
	}
	if s.Len() != 500 {
		t.Errorf("Len() = %d, want 500", s.Len())
	}
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				s.Put(quote("AAPL", float64(j+1), int64(i*1000+j)))
				s.Get("AAPL")
				s.IsFresh("AAPL", time.Second)
			}
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
