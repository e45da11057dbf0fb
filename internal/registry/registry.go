// Package registry ref-counts symbol interest.
//
// A Registry is not safe for concurrent use. The hub's coordinator goroutine
// owns it and applies every Acquire and Release in order; the returned
// results tell the caller which side effects (forced fetch, wire
// subscription, poll start/stop) the mutation implies.
package registry

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrUnknownHandle is returned when releasing a handle that was never
// acquired or was already released.
var ErrUnknownHandle = errors.New("unknown subscription handle")

// Subscription is the demand for one symbol.
type Subscription struct {
	Symbol   string
	RefCount int
	handles  map[uuid.UUID]struct{}
}

// AcquireResult describes the effect of an Acquire.
type AcquireResult struct {
	ID     uuid.UUID
	Symbol string
	// FirstForSymbol is set when the symbol's ref count went 0 -> 1.
	FirstForSymbol bool
	// Activated is set when the registry went from no active symbols to one.
	Activated bool
}

// ReleaseResult describes the effect of a Release.
type ReleaseResult struct {
	Symbol string
	// LastForSymbol is set when the symbol's ref count went 1 -> 0.
	LastForSymbol bool
	// Idle is set when no active symbols remain.
	Idle bool
}

// Registry maps handles to symbols and counts references per symbol.
type Registry struct {
	bySymbol map[string]*Subscription
	handles  map[uuid.UUID]string

	acquires int64
	releases int64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		bySymbol: make(map[string]*Subscription),
		handles:  make(map[uuid.UUID]string),
	}
}

// Acquire registers interest in symbol and returns a new handle.
func (r *Registry) Acquire(symbol string) AcquireResult {
	id := uuid.New()
	res := AcquireResult{ID: id, Symbol: symbol}

	sub, ok := r.bySymbol[symbol]
	if !ok {
		res.Activated = len(r.bySymbol) == 0
		sub = &Subscription{Symbol: symbol, handles: make(map[uuid.UUID]struct{})}
		r.bySymbol[symbol] = sub
		res.FirstForSymbol = true
	}
	sub.handles[id] = struct{}{}
	sub.RefCount++
	r.handles[id] = symbol
	r.acquires++

	return res
}

// Release drops a handle. Releasing an unknown or already released handle
// returns ErrUnknownHandle and changes nothing.
func (r *Registry) Release(id uuid.UUID) (ReleaseResult, error) {
	symbol, ok := r.handles[id]
	if !ok {
		return ReleaseResult{}, ErrUnknownHandle
	}
	delete(r.handles, id)
	r.releases++

	sub := r.bySymbol[symbol]
	delete(sub.handles, id)
	sub.RefCount--

	res := ReleaseResult{Symbol: symbol}
	if sub.RefCount == 0 {
		delete(r.bySymbol, symbol)
		res.LastForSymbol = true
		res.Idle = len(r.bySymbol) == 0
	}
	return res, nil
}

// RefCount returns the number of live handles for symbol.
func (r *Registry) RefCount(symbol string) int {
	if sub, ok := r.bySymbol[symbol]; ok {
		return sub.RefCount
	}
	return 0
}

// Handles returns the live handles for symbol.
func (r *Registry) Handles(symbol string) []uuid.UUID {
	sub, ok := r.bySymbol[symbol]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(sub.handles))
	for id := range sub.handles {
		out = append(out, id)
	}
	return out
}

// ActiveSymbols returns every symbol with a positive ref count, sorted.
func (r *Registry) ActiveSymbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of active symbols.
func (r *Registry) Len() int {
	return len(r.bySymbol)
}

// Stats holds registry counters.
type Stats struct {
	ActiveSymbols int   `json:"active_symbols"`
	Handles       int   `json:"handles"`
	Acquires      int64 `json:"acquires"`
	Releases      int64 `json:"releases"`
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	return Stats{
		ActiveSymbols: len(r.bySymbol),
		Handles:       len(r.handles),
		Acquires:      r.acquires,
		Releases:      r.releases,
	}
}
