package hub

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotehub/internal/cache"
	"github.com/rickgao/quotehub/internal/distribution"
	"github.com/rickgao/quotehub/internal/fetch"
	"github.com/rickgao/quotehub/internal/model"
	"github.com/rickgao/quotehub/internal/poller"
	"github.com/rickgao/quotehub/internal/registry"
	"github.com/rickgao/quotehub/internal/throttle"
)

const (
	stateNew int32 = iota
	stateRunning
	stateStopped
)

// commandBuffer bounds queued coordinator commands.
const commandBuffer = 256

// Hub is the MarketDataHub. Create one with New, call Start, and share it
// with every consumer.
type Hub struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	streamFactory StreamFactory
	stream        Stream
	notifiers     []cache.Notifier
	seeder        Seeder

	cache       *cache.Store
	gate        *throttle.Gate
	poller      *poller.Poller
	distributor *distribution.Distributor

	// Owned by the coordinator goroutine.
	registry *registry.Registry
	handles  map[uuid.UUID]*Handle
	symbols  map[string]*symbolState

	active atomic.Pointer[[]string]

	cmds    chan func()
	state   atomic.Int32
	runCtx  context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	fetches sync.WaitGroup

	forced       atomic.Int64
	polled       atomic.Int64
	dropped      atomic.Int64
	streamQuotes atomic.Int64
}

// symbolState scopes in-flight fetches for one active symbol.
type symbolState struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Hub. fetcher is usually a *fetch.Pipeline.
func New(cfg Config, fetcher Fetcher, opts ...Option) *Hub {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = def.ThrottleWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	h := &Hub{
		cfg:      cfg,
		fetcher:  fetcher,
		logger:   slog.Default(),
		now:      time.Now,
		registry: registry.New(),
		handles:  make(map[uuid.UUID]*Handle),
		symbols:  make(map[string]*symbolState),
		cmds:     make(chan func(), commandBuffer),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	base := h.logger
	h.logger = base.With("component", "hub")
	h.runCtx, h.cancel = context.WithCancel(context.Background())

	h.distributor = distribution.NewDistributor(base)
	cacheOpts := []cache.Option{
		cache.WithCapacity(cfg.CacheCapacity),
		cache.WithPinned(h.isActive),
		cache.WithLogger(base),
		cache.WithClock(h.now),
		cache.WithNotifier(h.distributor),
	}
	for _, n := range h.notifiers {
		cacheOpts = append(cacheOpts, cache.WithNotifier(n))
	}
	h.cache = cache.New(cacheOpts...)

	h.gate = throttle.New(cfg.ThrottleWindow, h.onThrottleFire, base)
	h.poller = poller.New(poller.Config{Interval: cfg.PollInterval, TTL: cfg.CacheTTL}, h, h.cache, h.gate, base)

	if h.streamFactory != nil {
		h.stream = h.streamFactory(streamListener{h: h})
	}
	return h
}

// Start seeds the cache, starts the coordinator and connects the stream.
func (h *Hub) Start(ctx context.Context) error {
	if !h.state.CompareAndSwap(stateNew, stateRunning) {
		if h.state.Load() == stateStopped {
			return ErrClosed
		}
		return ErrStarted
	}

	if h.seeder != nil {
		entries, err := h.seeder.Load(ctx)
		if err != nil {
			h.logger.Warn("warm start failed", "error", err)
		}
		seeded := 0
		for _, e := range entries {
			if h.cache.Seed(e) {
				seeded++
			}
		}
		if seeded > 0 {
			h.logger.Info("cache seeded", "entries", seeded)
		}
	}

	go h.coordinate()

	if h.stream != nil {
		if err := h.stream.Connect(); err != nil {
			h.logger.Warn("stream not connected", "error", err)
		}
	}

	h.logger.Info("hub started",
		"cache_ttl", h.cfg.CacheTTL,
		"throttle_window", h.cfg.ThrottleWindow,
		"poll_interval", h.cfg.PollInterval,
	)
	return nil
}

// Stop halts the coordinator, the poller, the stream and in-flight
// fetches, and closes every handle's mailbox.
func (h *Hub) Stop(ctx context.Context) error {
	prev := h.state.Swap(stateStopped)
	switch prev {
	case stateStopped:
		return nil
	case stateNew:
		h.cancel()
		close(h.stopped)
		return nil
	}

	h.cancel()
	select {
	case <-h.stopped:
	case <-ctx.Done():
		return fmt.Errorf("stop coordinator: %w", ctx.Err())
	}

	h.gate.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.poller.Stop(gctx)
	})
	if h.stream != nil {
		g.Go(func() error {
			return h.stream.Stop(gctx)
		})
	}
	g.Go(func() error {
		done := make(chan struct{})
		go func() {
			h.fetches.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-gctx.Done():
			return fmt.Errorf("wait for fetches: %w", gctx.Err())
		}
	})
	err := g.Wait()

	// The coordinator has exited; its state is safe to touch here.
	for _, handle := range h.handles {
		handle.mailbox.Close()
	}

	h.logger.Info("hub stopped")
	return err
}

// coordinate applies commands one at a time until Stop.
func (h *Hub) coordinate() {
	defer close(h.stopped)

	for {
		select {
		case <-h.runCtx.Done():
			return
		case fn := <-h.cmds:
			fn()
		}
	}
}

// submit runs fn on the coordinator and waits for it to finish.
func (h *Hub) submit(fn func()) error {
	switch h.state.Load() {
	case stateNew:
		return ErrNotStarted
	case stateStopped:
		return ErrClosed
	}

	done := make(chan struct{})
	cmd := func() {
		fn()
		close(done)
	}

	select {
	case h.cmds <- cmd:
	case <-h.stopped:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-h.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post queues fn on the coordinator without waiting. It is dropped once
// the hub has stopped.
func (h *Hub) post(fn func()) {
	select {
	case h.cmds <- fn:
	case <-h.stopped:
	}
}

// publishActive refreshes the poller's symbol snapshot and the stream's
// desired set. Coordinator only.
func (h *Hub) publishActive() {
	symbols := h.registry.ActiveSymbols()
	h.active.Store(&symbols)
	if h.stream != nil {
		h.stream.SetDesiredSymbols(symbols)
	}
}

// onThrottleFire runs on a timer goroutine when a throttle window elapses.
func (h *Hub) onThrottleFire(symbol string) {
	h.post(func() {
		if h.startFetch(symbol) {
			h.polled.Add(1)
		}
	})
}

// startFetch launches a fetch scoped to the symbol's context. It reports
// false if the symbol is no longer active. Coordinator only.
func (h *Hub) startFetch(symbol string) bool {
	st, ok := h.symbols[symbol]
	if !ok {
		return false
	}

	h.fetches.Add(1)
	go func() {
		defer h.fetches.Done()
		q, report := h.fetcher.FetchReport(st.ctx, symbol)
		h.post(func() {
			h.completeFetch(st, symbol, q, report)
		})
	}()
	return true
}

// completeFetch stores a fetch result unless its symbol was released while
// the fetch was in flight. Coordinator only.
func (h *Hub) completeFetch(st *symbolState, symbol string, q model.Quote, report fetch.Report) {
	if report.Canceled || st.ctx.Err() != nil || h.symbols[symbol] != st {
		h.dropped.Add(1)
		h.logger.Debug("dropping fetch for released symbol", "symbol", symbol)
		return
	}

	if report.Fallback() {
		h.logger.Debug("quote resolved by fallback",
			"symbol", symbol,
			"source", report.Resolved,
		)
	}
	h.cache.Put(q)
	h.applyReport(symbol, report)
}

// applyReport hands fetch diagnostics to the symbol's handles that asked
// for them. Coordinator only.
func (h *Hub) applyReport(symbol string, report fetch.Report) {
	err := report.Err()
	for _, id := range h.registry.Handles(symbol) {
		if handle := h.handles[id]; handle != nil && handle.diagnostics {
			handle.setErr(err)
		}
	}
}

// ActiveSymbols returns the symbols with at least one subscriber, sorted.
func (h *Hub) ActiveSymbols() []string {
	p := h.active.Load()
	if p == nil {
		return nil
	}
	return slices.Clone(*p)
}

// isActive reports whether symbol has subscribers. It reads the published
// snapshot, so it is safe from any goroutine.
func (h *Hub) isActive(symbol string) bool {
	p := h.active.Load()
	if p == nil {
		return false
	}
	_, found := slices.BinarySearch(*p, symbol)
	return found
}

// Quote returns the cached entry for symbol.
func (h *Hub) Quote(symbol string) (model.CacheEntry, bool) {
	return h.cache.Get(model.NormalizeSymbol(symbol))
}

// TTL returns the cache freshness bound.
func (h *Hub) TTL() time.Duration {
	return h.cfg.CacheTTL
}

// ConnectionStatus returns the stream status. Without a stream the hub
// reports Disconnected.
func (h *Hub) ConnectionStatus() model.ConnectionStatus {
	if h.stream == nil {
		return model.ConnectionStatus{State: model.Disconnected}
	}
	return h.stream.Status()
}

// RetryConnection is the manual retry from Failed.
func (h *Hub) RetryConnection() error {
	if h.stream == nil {
		return ErrNoStream
	}
	return h.stream.Retry()
}

// Stats returns a point-in-time view of hub internals.
func (h *Hub) Stats() Stats {
	var (
		rs      registry.Stats
		handles int
		mb      MailboxStats
	)
	read := func() {
		rs = h.registry.Stats()
		handles = len(h.handles)
		mb = MailboxStats{}
		for _, handle := range h.handles {
			mb.add(handle.MailboxStats())
		}
	}
	if err := h.submit(read); err != nil {
		// No coordinator is running, so reading directly is safe.
		<-h.waitIdle()
		read()
	}

	st := Stats{
		ActiveSymbols:  rs.ActiveSymbols,
		Handles:        handles,
		ForcedFetches:  h.forced.Load(),
		PolledFetches:  h.polled.Load(),
		DroppedResults: h.dropped.Load(),
		StreamQuotes:   h.streamQuotes.Load(),
		Registry:       rs,
		Cache:          h.cache.Stats(),
		Throttle:       h.gate.Stats(),
		Poller:         h.poller.Stats(),
		Distribution:   h.distributor.Stats(),
		Mailboxes:      mb,
	}
	if sp, ok := h.fetcher.(interface{ Stats() fetch.Stats }); ok {
		fs := sp.Stats()
		st.Fetch = &fs
	}
	return st
}

// waitIdle returns a channel that is closed once no coordinator can be
// running.
func (h *Hub) waitIdle() <-chan struct{} {
	if h.state.Load() == stateNew {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.stopped
}
