package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/quotehub/internal/model"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config holds store configuration.
type Config struct {
	FlushInterval time.Duration // How often pending quotes are written (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{FlushInterval: 5 * time.Second}
}

// Metrics holds store counters.
type Metrics struct {
	Upserts int64 `json:"upserts"`
	Stale   int64 `json:"stale"` // rows skipped because the stored quote was newer
	Flushes int64 `json:"flushes"`
	Errors  int64 `json:"errors"`
}

// Store writes the latest quote per symbol. It is a cache notifier: Notify
// only records the quote, and a background loop flushes.
type Store struct {
	cfg    Config
	db     DB
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]model.Quote
	metrics Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates a Store.
func NewStore(cfg Config, db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Store{
		cfg:     cfg,
		db:      db,
		logger:  logger.With("component", "snapshot"),
		pending: make(map[string]model.Quote),
	}
}

// EnsureSchema creates the latest_quotes table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create latest_quotes: %w", err)
	}
	return nil
}

// Notify records q for the next flush. Only the newest quote per symbol is
// kept.
func (s *Store) Notify(symbol string, q model.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(symbol, q)
}

func (s *Store) mergeLocked(symbol string, q model.Quote) {
	if cur, ok := s.pending[symbol]; ok && cur.TimestampMs > q.TimestampMs {
		return
	}
	s.pending[symbol] = q
}

// Start begins the flush loop.
func (s *Store) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.flushLoop(ctx)

	s.logger.Info("snapshot store started", "flush_interval", s.cfg.FlushInterval)
	return nil
}

// Stop halts the flush loop and writes what is pending.
func (s *Store) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("snapshot flush loop stop timed out")
	}

	// Final flush
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.logger.Info("snapshot store stopped")
	return nil
}

func (s *Store) flushLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Error("snapshot flush failed", "error", err)
			}
		}
	}
}

// Flush writes pending quotes in one batch. On failure the quotes are kept
// for the next flush.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	// Take ownership of current batch
	rows := s.pending
	s.pending = make(map[string]model.Quote, len(rows))
	s.mu.Unlock()

	start := time.Now()
	stale, err := s.upsert(ctx, rows)
	if err != nil {
		s.mu.Lock()
		for symbol, q := range rows {
			s.mergeLocked(symbol, q)
		}
		s.metrics.Errors++
		s.mu.Unlock()
		return fmt.Errorf("upsert %d quotes: %w", len(rows), err)
	}

	s.mu.Lock()
	s.metrics.Upserts += int64(len(rows) - stale)
	s.metrics.Stale += int64(stale)
	s.metrics.Flushes++
	s.mu.Unlock()

	s.logger.Debug("flushed quotes",
		"count", len(rows),
		"stale", stale,
		"duration", time.Since(start),
	)
	return nil
}

// upsert sends one batch and returns how many rows the timestamp guard
// skipped.
func (s *Store) upsert(ctx context.Context, rows map[string]model.Quote) (stale int, err error) {
	batch := &pgx.Batch{}
	for symbol, q := range rows {
		batch.Queue(upsertQuote,
			symbol, q.Price, q.Change, q.ChangePercent,
			q.Open, q.High, q.Low, q.Volume,
			q.TimestampMs, string(q.Source),
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			stale++
		}
	}
	return stale, nil
}

// Pending returns the number of quotes waiting for the next flush.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats returns current metrics.
func (s *Store) Stats() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Load returns every stored quote as a cache entry. Each entry's receive
// time is its quote timestamp, so loaded quotes age from when they were
// quoted rather than when they were loaded.
func (s *Store) Load(ctx context.Context) ([]model.CacheEntry, error) {
	rows, err := s.db.Query(ctx, selectQuotes)
	if err != nil {
		return nil, fmt.Errorf("query latest_quotes: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan latest_quotes: %w", err)
	}
	s.logger.Info("loaded snapshot", "entries", len(entries))
	return entries, nil
}

// rowScanner is the part of pgx.Rows that scanEntries reads.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanEntries(rows rowScanner) ([]model.CacheEntry, error) {
	defer rows.Close()

	var entries []model.CacheEntry
	for rows.Next() {
		var (
			q      model.Quote
			source string
		)
		if err := rows.Scan(
			&q.Symbol, &q.Price, &q.Change, &q.ChangePercent,
			&q.Open, &q.High, &q.Low, &q.Volume,
			&q.TimestampMs, &source,
		); err != nil {
			return nil, err
		}
		q.Source = model.Source(source)
		if err := q.Validate(); err != nil {
			continue
		}
		entries = append(entries, model.CacheEntry{Quote: q, ReceivedAtMs: q.TimestampMs})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
