package distribution

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/rickgao/quotehub/internal/model"
)

type sliceSink struct {
	mu     sync.Mutex
	quotes []model.Quote
	closed bool
}

func (s *sliceSink) Deliver(q model.Quote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.quotes = append(s.quotes, q)
	return true
}

func (s *sliceSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}

func TestDistributor_PartitionedBySymbol(t *testing.T) {
	d := NewDistributor(nil)
	aapl1, aapl2, tsla := &sliceSink{}, &sliceSink{}, &sliceSink{}

	d.Register("AAPL", uuid.New(), aapl1)
	d.Register("AAPL", uuid.New(), aapl2)
	d.Register("TSLA", uuid.New(), tsla)

	d.Notify("TSLA", model.Quote{Symbol: "TSLA", Price: 240})

	if tsla.len() != 1 {
		t.Errorf("TSLA sink got %d quotes, want 1", tsla.len())
	}
	if aapl1.len() != 0 || aapl2.len() != 0 {
		t.Error("AAPL sinks should not see TSLA updates")
	}

	d.Notify("AAPL", model.Quote{Symbol: "AAPL", Price: 175})
	if aapl1.len() != 1 || aapl2.len() != 1 {
		t.Errorf("AAPL sinks got %d and %d, want 1 each", aapl1.len(), aapl2.len())
	}

	st := d.Stats()
	if st.Sinks != 3 || st.Notifies != 2 || st.Delivered != 3 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestDistributor_Unregister(t *testing.T) {
	d := NewDistributor(nil)
	id := uuid.New()
	sink := &sliceSink{}
	d.Register("MSFT", id, sink)

	if !d.Unregister("MSFT", id) {
		t.Fatal("Unregister should find the sink")
	}
	if d.Unregister("MSFT", id) {
		t.Error("second Unregister should report false")
	}
	if d.Count("MSFT") != 0 {
		t.Errorf("Count = %d, want 0", d.Count("MSFT"))
	}

	d.Notify("MSFT", model.Quote{Symbol: "MSFT"})
	if sink.len() != 0 {
		t.Error("unregistered sink should not receive")
	}
}

func TestDistributor_RejectingSink(t *testing.T) {
	d := NewDistributor(nil)
	d.Register("SPY", uuid.New(), &sliceSink{closed: true})

	d.Notify("SPY", model.Quote{Symbol: "SPY"})

	if st := d.Stats(); st.Rejected != 1 || st.Delivered != 0 {
		t.Errorf("Stats = %+v, want 1 rejected", st)
	}
}
