package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestQuote_Normalize(t *testing.T) {
	q := Quote{
		Symbol:        " aapl ",
		Price:         187.455,
		Change:        1.005,
		ChangePercent: 0.5371,
		Open:          186.4,
		High:          188.129,
		Low:           185.991,
		Volume:        -5,
	}

	got := q.Normalize()

	if got.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", got.Symbol, "AAPL")
	}
	if got.Price != 187.46 {
		t.Errorf("Price = %v, want 187.46", got.Price)
	}
	if got.Change != 1.01 {
		t.Errorf("Change = %v, want 1.01", got.Change)
	}
	if got.ChangePercent != 0.54 {
		t.Errorf("ChangePercent = %v, want 0.54", got.ChangePercent)
	}
	if got.High != 188.13 {
		t.Errorf("High = %v, want 188.13", got.High)
	}
	if got.Low != 185.99 {
		t.Errorf("Low = %v, want 185.99", got.Low)
	}
	if got.Volume != 0 {
		t.Errorf("Volume = %d, want 0", got.Volume)
	}
}

func TestQuote_Validate(t *testing.T) {
	tests := []struct {
		name    string
		quote   Quote
		wantErr error
	}{
		{
			name:  "valid",
			quote: Quote{Symbol: "AAPL", Price: 10, Open: 9, High: 11, Low: 8},
		},
		{
			name:  "missing ohl tolerated",
			quote: Quote{Symbol: "AAPL", Price: 10},
		},
		{
			name:    "empty symbol",
			quote:   Quote{Price: 10},
			wantErr: ErrEmptySymbol,
		},
		{
			name:    "zero price",
			quote:   Quote{Symbol: "AAPL"},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "nan price",
			quote:   Quote{Symbol: "AAPL", Price: math.NaN()},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "nan change",
			quote:   Quote{Symbol: "AAPL", Price: 1, Change: math.NaN()},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "low above high",
			quote:   Quote{Symbol: "AAPL", Price: 10, High: 9, Low: 11},
			wantErr: ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quote.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuote_JSON(t *testing.T) {
	q := Quote{Symbol: "TSLA", Price: 240.5, TimestampMs: 1705320000000, Source: SourceLive}

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"symbol", "price", "changePercent", "timestamp", "source"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q in %s", key, data)
		}
	}
	if fields["source"] != "live" {
		t.Errorf("source = %v, want live", fields["source"])
	}
}

func TestCacheEntry_IsFresh(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	e := CacheEntry{ReceivedAtMs: now.Add(-10 * time.Second).UnixMilli()}

	if !e.IsFresh(now, 30*time.Second) {
		t.Error("10s old entry should be fresh with 30s TTL")
	}
	if e.IsFresh(now, 10*time.Second) {
		t.Error("10s old entry should be stale with 10s TTL (strict <)")
	}
	if got := e.Age(now); got != 10*time.Second {
		t.Errorf("Age = %v, want 10s", got)
	}
}

func TestSource_Valid(t *testing.T) {
	for _, s := range []Source{SourceLive, SourcePolled, SourceSimulated} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Source("rest").Valid() {
		t.Error(`"rest" should not be valid`)
	}
}

func TestConnectionStatus(t *testing.T) {
	tests := []struct {
		status    ConnectionStatus
		wantBadge string
		wantText  string
	}{
		{ConnectionStatus{State: Connected}, BadgeLive, "Live"},
		{ConnectionStatus{State: Connecting}, BadgeDegraded, "Connecting…"},
		{ConnectionStatus{State: Reconnecting, Attempt: 2, MaxAttempts: 10}, BadgeDegraded, "Reconnecting… (2/10)"},
		{ConnectionStatus{State: Failed}, BadgeFailed, "Connection Failed"},
		{ConnectionStatus{State: Failed, Message: "unauthorized"}, BadgeFailed, "Connection Failed: unauthorized"},
		{ConnectionStatus{State: Disconnected}, BadgeOffline, "Disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.status.State.String(), func(t *testing.T) {
			if got := tt.status.Badge(); got != tt.wantBadge {
				t.Errorf("Badge() = %q, want %q", got, tt.wantBadge)
			}
			if got := tt.status.Text(); got != tt.wantText {
				t.Errorf("Text() = %q, want %q", got, tt.wantText)
			}
		})
	}
}
