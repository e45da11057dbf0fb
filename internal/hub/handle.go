package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/quotehub/internal/distribution"
	"github.com/rickgao/quotehub/internal/model"
)

const defaultMailboxSize = 16

// Handle is one consumer's subscription to a symbol. It is safe for
// concurrent use.
type Handle struct {
	hub    *Hub
	id     uuid.UUID
	symbol string

	diagnostics bool
	mailboxSize int
	mailbox     *distribution.GrowableBuffer[model.Quote]

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

func newHandle(h *Hub, symbol string, opts ...SubscribeOption) *Handle {
	handle := &Handle{
		hub:         h,
		symbol:      symbol,
		mailboxSize: defaultMailboxSize,
	}
	for _, opt := range opts {
		opt(handle)
	}
	handle.mailbox = distribution.NewGrowableBuffer[model.Quote](handle.mailboxSize)
	return handle
}

// ID returns the handle's registry ID.
func (h *Handle) ID() uuid.UUID { return h.id }

// Symbol returns the subscribed symbol.
func (h *Handle) Symbol() string { return h.symbol }

// Deliver queues q on the mailbox. It never blocks.
func (h *Handle) Deliver(q model.Quote) bool {
	return h.mailbox.Send(q)
}

// Snapshot returns the current cached view of the symbol.
func (h *Handle) Snapshot() Snapshot {
	entry, ok := h.hub.cache.Get(h.symbol)
	s := Snapshot{IsLoading: !ok}
	if ok {
		s.Quote = entry.Quote
		s.LastUpdated = time.UnixMilli(entry.ReceivedAtMs)
		s.Stale = !entry.IsFresh(h.hub.now(), h.hub.cfg.CacheTTL)
	}
	if h.diagnostics {
		h.mu.Lock()
		s.Err = h.err
		h.mu.Unlock()
	}
	return s
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Receive blocks until an update arrives, the handle is closed, or ctx is
// done. ok is false once no more updates will arrive or ctx is done.
func (h *Handle) Receive(ctx context.Context) (model.Quote, bool) {
	return h.mailbox.Receive(ctx)
}

// TryReceive returns a queued update without blocking.
func (h *Handle) TryReceive() (model.Quote, bool) {
	return h.mailbox.TryReceive()
}

// Pending returns the number of queued updates.
func (h *Handle) Pending() int {
	return h.mailbox.Len()
}

// Drain removes up to limit queued updates (all if limit <= 0) without
// blocking.
func (h *Handle) Drain(limit int) []model.Quote {
	return h.mailbox.Drain(limit)
}

// MailboxStats returns the handle's mailbox counters.
func (h *Handle) MailboxStats() distribution.BufferStats {
	return h.mailbox.Stats()
}

// Close releases the subscription. It is safe to call more than once and
// after the hub has stopped.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		err := h.hub.Unsubscribe(h)
		if errors.Is(err, ErrClosed) {
			h.mailbox.Close()
			err = nil
		}
		h.closeErr = err
	})
	return h.closeErr
}
