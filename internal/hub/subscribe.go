package hub

import (
	"context"
	"fmt"

	"github.com/rickgao/quotehub/internal/model"
	"github.com/rickgao/quotehub/internal/registry"
)

// Subscribe acquires interest in symbol. The first subscriber of a symbol
// triggers an immediate fetch and adds it to the stream's symbol set; the
// first subscriber overall starts polling. Close the returned Handle (or
// call Unsubscribe) to release it.
func (h *Hub) Subscribe(ctx context.Context, symbol string, opts ...SubscribeOption) (*Handle, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handle := newHandle(h, symbol, opts...)
	if err := h.submit(func() { h.acquire(handle) }); err != nil {
		return nil, err
	}
	return handle, nil
}

// acquire registers handle. Coordinator only.
func (h *Hub) acquire(handle *Handle) {
	res := h.registry.Acquire(handle.symbol)
	handle.id = res.ID
	h.handles[res.ID] = handle
	h.distributor.Register(res.Symbol, res.ID, handle)

	if res.FirstForSymbol {
		ctx, cancel := context.WithCancel(h.runCtx)
		h.symbols[res.Symbol] = &symbolState{ctx: ctx, cancel: cancel}
		h.publishActive()

		// The first fetch bypasses the throttle gate.
		if h.startFetch(res.Symbol) {
			h.forced.Add(1)
		}
	}
	if res.Activated {
		h.poller.Start(h.runCtx)
	}

	h.logger.Debug("subscribed",
		"symbol", res.Symbol,
		"handle", res.ID,
		"ref_count", h.registry.RefCount(res.Symbol),
	)
}

// Unsubscribe releases handle. Releasing the last handle of a symbol
// cancels its pending and in-flight fetches and removes it from polling and
// the stream; releasing the last handle overall stops polling. Releasing a
// handle twice returns registry.ErrUnknownHandle.
func (h *Hub) Unsubscribe(handle *Handle) error {
	if handle == nil {
		return registry.ErrUnknownHandle
	}

	var err error
	if serr := h.submit(func() { err = h.release(handle) }); serr != nil {
		return serr
	}
	return err
}

// release unregisters handle. Coordinator only.
func (h *Hub) release(handle *Handle) error {
	res, err := h.registry.Release(handle.id)
	if err != nil {
		return err
	}

	delete(h.handles, handle.id)
	h.distributor.Unregister(res.Symbol, handle.id)
	handle.mailbox.Close()

	if res.LastForSymbol {
		h.gate.Cancel(res.Symbol)
		if st, ok := h.symbols[res.Symbol]; ok {
			st.cancel()
			delete(h.symbols, res.Symbol)
		}
		h.publishActive()
	}
	if res.Idle {
		h.poller.Stop(context.Background())
	}

	h.logger.Debug("unsubscribed",
		"symbol", res.Symbol,
		"handle", handle.id,
		"ref_count", h.registry.RefCount(res.Symbol),
	)
	return nil
}

// Refresh fetches symbol now, bypassing the throttle gate, and stores the
// result. It returns the fetched quote, which may be older than the cached
// one if a newer quote arrived meanwhile.
func (h *Hub) Refresh(ctx context.Context, symbol string) (model.Quote, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Quote{}, ErrInvalidSymbol
	}
	switch h.state.Load() {
	case stateNew:
		return model.Quote{}, ErrNotStarted
	case stateStopped:
		return model.Quote{}, ErrClosed
	}

	h.forced.Add(1)
	q, report := h.fetcher.FetchReport(ctx, symbol)
	if report.Canceled {
		return model.Quote{}, fmt.Errorf("refresh %s: %w", symbol, ctx.Err())
	}
	err := h.submit(func() {
		h.cache.Put(q)
		h.applyReport(symbol, report)
	})
	if err != nil {
		return model.Quote{}, err
	}
	return q, nil
}
