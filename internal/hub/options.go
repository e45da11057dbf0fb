package hub

import (
	"log/slog"
	"time"

	"github.com/rickgao/quotehub/internal/cache"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStream attaches a push connection. Without one the hub serves polled
// quotes only and reports the connection as disconnected.
func WithStream(f StreamFactory) Option {
	return func(h *Hub) {
		h.streamFactory = f
	}
}

// WithNotifier registers an extra cache notifier. Notifiers run after the
// distribution layer, in registration order, on the coordinator goroutine,
// and must not block.
func WithNotifier(n cache.Notifier) Option {
	return func(h *Hub) {
		h.notifiers = append(h.notifiers, n)
	}
}

// WithSeeder loads persisted entries into the cache on Start.
func WithSeeder(s Seeder) Option {
	return func(h *Hub) {
		h.seeder = s
	}
}

// WithClock sets the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// SubscribeOption configures a Handle.
type SubscribeOption func(*Handle)

// WithDiagnostics makes Snapshot.Err report the last fetch's per-source
// failures. By default source failures are never surfaced.
func WithDiagnostics() SubscribeOption {
	return func(h *Handle) {
		h.diagnostics = true
	}
}

// WithMailboxSize sets the initial capacity of the handle's update
// mailbox. The mailbox grows as needed.
func WithMailboxSize(n int) SubscribeOption {
	return func(h *Handle) {
		h.mailboxSize = n
	}
}
