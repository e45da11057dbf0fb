package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/quotehub/internal/model"
)

// DefaultSourceTimeout bounds each source call.
const DefaultSourceTimeout = 8 * time.Second

// Attempt is one source call made while resolving a symbol.
type Attempt struct {
	Source   string        `json:"source"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report describes how a quote was resolved.
type Report struct {
	Symbol   string    `json:"symbol"`
	Resolved string    `json:"resolved"` // name of the source that produced the quote
	Attempts []Attempt `json:"attempts"`
	Shared   bool      `json:"shared"`   // result was shared with a concurrent caller
	Canceled bool      `json:"canceled"` // caller left before the resolution finished
}

// Err joins the errors of every failed attempt. It is nil when the first
// source succeeded.
func (r Report) Err() error {
	var errs []error
	for _, a := range r.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errors.Join(errs...)
}

// Fallback reports whether the quote came from the simulator.
func (r Report) Fallback() bool {
	return r.Resolved == simulatedName
}

const simulatedName = "simulated"

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSourceTimeout sets the per-source timeout.
func WithSourceTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides time.Now for fallback timestamps and the simulator.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline tries sources in order and falls back to the simulator.
type Pipeline struct {
	sources   []Source
	simulator *Simulator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	group    singleflight.Group
	counters map[string]*sourceCounter
	order    []string
	fetches  atomic.Int64
	shared   atomic.Int64
}

type sourceCounter struct {
	ok   atomic.Int64
	fail atomic.Int64
}

// NewPipeline creates a pipeline over sources. Nil sources are skipped.
func NewPipeline(sources []Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		timeout:  DefaultSourceTimeout,
		logger:   slog.Default(),
		now:      time.Now,
		counters: make(map[string]*sourceCounter),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "fetch")
	p.simulator = NewSimulator(p.now)

	for _, s := range sources {
		if s == nil {
			continue
		}
		p.sources = append(p.sources, s)
		p.addCounter(s.Name())
	}
	p.addCounter(simulatedName)
	return p
}

func (p *Pipeline) addCounter(name string) {
	if _, ok := p.counters[name]; ok {
		return
	}
	p.counters[name] = &sourceCounter{}
	p.order = append(p.order, name)
}

// Fetch returns a quote for symbol. It never fails.
func (p *Pipeline) Fetch(ctx context.Context, symbol string) model.Quote {
	q, _ := p.FetchReport(ctx, symbol)
	return q
}

// FetchReport returns a quote for symbol along with per-source diagnostics.
// Concurrent calls for the same symbol share one resolution. The shared
// resolution does not inherit any caller's cancellation; a caller whose ctx
// ends stops waiting and gets a simulated quote with Report.Canceled set.
func (p *Pipeline) FetchReport(ctx context.Context, symbol string) (model.Quote, Report) {
	symbol = model.NormalizeSymbol(symbol)
	if ctx.Err() != nil {
		return p.canceled(ctx, symbol)
	}

	ch := p.group.DoChan(symbol, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.deadline())
		defer cancel()
		q, r := p.resolve(rctx, symbol)
		return resolution{quote: q, report: r}, nil
	})

	select {
	case res := <-ch:
		r := res.Val.(resolution)
		if res.Shared {
			p.shared.Add(1)
			r.report.Shared = true
		}
		return r.quote, r.report
	case <-ctx.Done():
		return p.canceled(ctx, symbol)
	}
}

func (p *Pipeline) canceled(ctx context.Context, symbol string) (model.Quote, Report) {
	q, _ := p.simulator.Fetch(ctx, symbol)
	return q, Report{
		Symbol:   symbol,
		Resolved: simulatedName,
		Attempts: []Attempt{{Source: simulatedName}},
		Canceled: true,
	}
}

// deadline bounds one whole resolution: every source at its own timeout.
func (p *Pipeline) deadline() time.Duration {
	return p.timeout * time.Duration(len(p.sources)+1)
}

type resolution struct {
	quote  model.Quote
	report Report
}

func (p *Pipeline) resolve(ctx context.Context, symbol string) (model.Quote, Report) {
	p.fetches.Add(1)
	report := Report{Symbol: symbol}

	for _, src := range p.sources {
		if ctx.Err() != nil {
			break
		}

		start := p.now()
		q, err := p.try(ctx, src, symbol)
		attempt := Attempt{Source: src.Name(), Duration: p.now().Sub(start)}
		if err == nil {
			p.counters[src.Name()].ok.Add(1)
			report.Attempts = append(report.Attempts, attempt)
			report.Resolved = src.Name()
			return q, report
		}

		p.counters[src.Name()].fail.Add(1)
		attempt.Err = &SourceError{Source: src.Name(), Symbol: symbol, Err: err}
		report.Attempts = append(report.Attempts, attempt)
		p.logger.Debug("source failed",
			"source", src.Name(),
			"symbol", symbol,
			"error", err,
		)
	}

	q, _ := p.simulator.Fetch(ctx, symbol)
	p.counters[simulatedName].ok.Add(1)
	report.Attempts = append(report.Attempts, Attempt{Source: simulatedName})
	report.Resolved = simulatedName
	return q, report
}

func (p *Pipeline) try(ctx context.Context, src Source, symbol string) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q, err := src.Fetch(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	// Every resolved quote is stamped with the fetch time, the same clock
	// the simulator uses, so cache ordering never compares an upstream
	// trade time against a local one.
	q.Symbol = symbol
	q.TimestampMs = p.now().UnixMilli()
	if !q.Source.Valid() {
		q.Source = model.SourcePolled
	}
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return model.Quote{}, fmt.Errorf("%w: %w", ErrInvalidQuote, err)
	}
	return q, nil
}

// SourceStats holds counters for one source.
type SourceStats struct {
	Source    string `json:"source"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Stats holds pipeline counters.
type Stats struct {
	Fetches int64         `json:"fetches"`
	Shared  int64         `json:"shared"`
	Sources []SourceStats `json:"sources"`
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	st := Stats{
		Fetches: p.fetches.Load(),
		Shared:  p.shared.Load(),
		Sources: make([]SourceStats, 0, len(p.order)),
	}
	for _, name := range p.order {
		c := p.counters[name]
		st.Sources = append(st.Sources, SourceStats{
			Source:    name,
			Succeeded: c.ok.Load(),
			Failed:    c.fail.Load(),
		})
	}
	return st
}
