package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies where a Quote came from.
type Source string

const (
	SourceLive      Source = "live"      // pushed over the streaming socket
	SourcePolled    Source = "polled"    // fetched from a REST quote endpoint
	SourceSimulated Source = "simulated" // produced by the deterministic generator
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceLive, SourcePolled, SourceSimulated:
		return true
	}
	return false
}

// Errors returned by Quote.Validate.
var (
	ErrEmptySymbol  = errors.New("empty symbol")
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidRange = errors.New("low above high")
)

// Quote is a normalized price/volume snapshot for a symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        int64   `json:"volume"`
	TimestampMs   int64   `json:"timestamp"` // ms since epoch
	Source        Source  `json:"source"`
}

// Time returns the quote timestamp as a time.Time.
func (q Quote) Time() time.Time {
	return time.UnixMilli(q.TimestampMs)
}

// Normalize rounds price fields to 2 decimals and upper-cases the symbol.
func (q Quote) Normalize() Quote {
	q.Symbol = NormalizeSymbol(q.Symbol)
	q.Price = Round2(q.Price)
	q.Change = Round2(q.Change)
	q.ChangePercent = Round2(q.ChangePercent)
	q.Open = Round2(q.Open)
	q.High = Round2(q.High)
	q.Low = Round2(q.Low)
	if q.Volume < 0 {
		q.Volume = 0
	}
	return q
}

// Validate rejects quotes that must never reach the cache: missing symbol,
// non-finite or non-positive price, non-finite derived fields, low > high.
// Zero open/high/low are tolerated (some sources omit them).
func (q Quote) Validate() error {
	if q.Symbol == "" {
		return ErrEmptySymbol
	}
	if !finite(q.Price) || q.Price <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, q.Price)
	}
	for _, f := range []float64{q.Change, q.ChangePercent, q.Open, q.High, q.Low} {
		if !finite(f) {
			return fmt.Errorf("%w: non-finite field", ErrInvalidPrice)
		}
	}
	if q.High > 0 && q.Low > 0 && q.Low > q.High {
		return fmt.Errorf("%w: low=%v high=%v", ErrInvalidRange, q.Low, q.High)
	}
	return nil
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Round2 rounds to 2 decimal places using decimal arithmetic, so 1.005 rounds
// to 1.01 rather than drifting on binary representation.
func Round2(f float64) float64 {
	if !finite(f) {
		return f
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// CacheEntry is a Quote plus the local time it was stored.
type CacheEntry struct {
	Quote        Quote
	ReceivedAtMs int64
}

// Age returns how long ago the entry was stored.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.ReceivedAtMs))
}

// IsFresh reports now - receivedAt < ttl.
func (e CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}
