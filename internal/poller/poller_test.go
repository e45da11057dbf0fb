package poller

import (
	"context"
	"sync"
	"testing"
	"time"
)

type staticSymbols []string

func (s staticSymbols) ActiveSymbols() []string { return s }

type freshSet map[string]bool

func (f freshSet) IsFresh(symbol string, ttl time.Duration) bool { return f[symbol] }

type recordingRequester struct {
	mu       sync.Mutex
	requests []string
	accept   bool
}

func (r *recordingRequester) RequestFetch(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, symbol)
	return r.accept
}

func (r *recordingRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func TestPoller_PollSkipsFresh(t *testing.T) {
	req := &recordingRequester{accept: true}
	p := New(DefaultConfig(), staticSymbols{"AAPL", "MSFT", "TSLA"}, freshSet{"MSFT": true}, req, nil)

	if got := p.Poll(); got != 2 {
		t.Errorf("Poll() = %d, want 2", got)
	}
	if len(req.requests) != 2 || req.requests[0] != "AAPL" || req.requests[1] != "TSLA" {
		t.Errorf("requests = %v, want [AAPL TSLA]", req.requests)
	}
}

func TestPoller_PollCountsOnlyScheduled(t *testing.T) {
	req := &recordingRequester{accept: false}
	p := New(DefaultConfig(), staticSymbols{"AAPL"}, freshSet{}, req, nil)

	if got := p.Poll(); got != 0 {
		t.Errorf("Poll() = %d, want 0 when the gate coalesces", got)
	}
	if req.count() != 1 {
		t.Errorf("requests = %d, want 1", req.count())
	}
}

func TestPoller_NoSymbols(t *testing.T) {
	req := &recordingRequester{accept: true}
	p := New(DefaultConfig(), staticSymbols{}, freshSet{}, req, nil)

	if got := p.Poll(); got != 0 {
		t.Errorf("Poll() = %d, want 0", got)
	}
}

func TestPoller_StartStop(t *testing.T) {
	req := &recordingRequester{accept: true}
	cfg := Config{Interval: 10 * time.Millisecond, TTL: time.Second}
	p := New(cfg, staticSymbols{"AAPL"}, freshSet{}, req, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Running() {
		t.Error("Running() = false after Start")
	}

	// Second Start is a no-op.
	p.Start(context.Background())

	time.Sleep(55 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Running() {
		t.Error("Running() = true after Stop")
	}

	n := req.count()
	if n < 2 {
		t.Errorf("requests = %d, want several ticks", n)
	}

	time.Sleep(30 * time.Millisecond)
	if req.count() != n {
		t.Error("poller kept ticking after Stop")
	}
	if st := p.Stats(); st.Starts != 1 {
		t.Errorf("Starts = %d, want 1", st.Starts)
	}
}

func TestPoller_Restart(t *testing.T) {
	req := &recordingRequester{accept: true}
	cfg := Config{Interval: 10 * time.Millisecond, TTL: time.Second}
	p := New(cfg, staticSymbols{"AAPL"}, freshSet{}, req, nil)
	ctx := context.Background()

	// Stop before Start is harmless.
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for range 3 {
		p.Start(ctx)
		time.Sleep(15 * time.Millisecond)
		p.Stop(ctx)
	}

	if st := p.Stats(); st.Starts != 3 || st.Running {
		t.Errorf("Stats = %+v, want 3 starts and stopped", st)
	}
}
