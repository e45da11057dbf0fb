package hub

import (
	"github.com/rickgao/quotehub/internal/model"
)

// streamListener feeds stream events into the hub. Its methods run on the
// stream's goroutines and only post to the coordinator.
type streamListener struct {
	h *Hub
}

func (l streamListener) OnQuote(symbol string, q model.Quote) {
	l.h.streamQuotes.Add(1)
	l.h.post(func() {
		l.h.cache.Put(q)
	})
}

func (l streamListener) OnStateChange(status model.ConnectionStatus) {
	l.h.logger.Debug("stream status", "state", status.State, "text", status.Text())
}

func (l streamListener) OnError(message string) {
	l.h.logger.Warn("stream error", "message", message)
}
