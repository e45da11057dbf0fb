package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/quotehub/internal/hub"
	"github.com/rickgao/quotehub/internal/model"
)

// defaultDrainInterval is how often watchlist mailboxes are emptied.
const defaultDrainInterval = time.Second

// Watchlist keeps a fixed set of symbols subscribed so the hub streams,
// polls and caches them without an attached consumer. Nobody reads the
// handles, so their mailboxes are drained periodically.
type Watchlist struct {
	handles []*hub.Handle
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// StartWatchlist subscribes every symbol once. Duplicates (after
// normalization) share one handle. On error, handles acquired so far are
// released.
func StartWatchlist(ctx context.Context, h *hub.Hub, symbols []string, interval time.Duration, logger *slog.Logger) (*Watchlist, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultDrainInterval
	}

	w := &Watchlist{
		logger: logger.With("component", "watchlist"),
		done:   make(chan struct{}),
	}

	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		symbol := model.NormalizeSymbol(s)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		handle, err := h.Subscribe(ctx, symbol)
		if err != nil {
			w.closeHandles()
			return nil, fmt.Errorf("watch %q: %w", s, err)
		}
		w.handles = append(w.handles, handle)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(runCtx, interval)

	w.logger.Info("watchlist subscribed", "symbols", w.Symbols())
	return w, nil
}

// Symbols returns the watched symbols in subscription order.
func (w *Watchlist) Symbols() []string {
	out := make([]string, len(w.handles))
	for i, handle := range w.handles {
		out[i] = handle.Symbol()
	}
	return out
}

func (w *Watchlist) run(ctx context.Context, interval time.Duration) {
	defer close(w.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

func (w *Watchlist) drain() {
	for _, handle := range w.handles {
		if n := len(handle.Drain(0)); n > 0 {
			w.logger.Debug("drained quotes", "symbol", handle.Symbol(), "count", n)
		}
	}
}

// Close stops draining and releases every handle.
func (w *Watchlist) Close() error {
	w.cancel()
	<-w.done
	return w.closeHandles()
}

func (w *Watchlist) closeHandles() error {
	var errs []error
	for _, handle := range w.handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unwatch %s: %w", handle.Symbol(), err))
		}
	}
	w.handles = nil
	return errors.Join(errs...)
}
