package fetch

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rickgao/quotehub/internal/api"
	"github.com/rickgao/quotehub/internal/model"
)

var fixedNow = time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newMockSource(ctrl *gomock.Controller, name string) *MockSource {
	m := NewMockSource(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}

func TestPipeline_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	// Arrange: primary returns a quote, secondary must not be called.
	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	secondary := newMockSource(ctrl, "secondary")
	primary.EXPECT().
		Fetch(gomock.Any(), "AAPL").
		Return(model.Quote{Symbol: "AAPL", Price: 187.455, High: 190, Low: 180, TimestampMs: 1705320000000, Source: model.SourcePolled}, nil).
		Times(1)

	p := NewPipeline([]Source{primary, secondary}, WithClock(clock))

	// Act
	q, report := p.FetchReport(t.Context(), "aapl")

	// Assert
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 187.46, q.Price)
	require.Equal(t, fixedNow.UnixMilli(), q.TimestampMs, "quotes carry the fetch time")
	require.Equal(t, "primary", report.Resolved)
	require.NoError(t, report.Err())
	require.False(t, report.Fallback())
}

func TestPipeline_FallsThroughToSecondary(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	secondary := newMockSource(ctrl, "secondary")
	primary.EXPECT().Fetch(gomock.Any(), "MSFT").Return(model.Quote{}, errors.New("connection refused"))
	secondary.EXPECT().Fetch(gomock.Any(), "MSFT").Return(model.Quote{Symbol: "MSFT", Price: 381.25}, nil)

	p := NewPipeline([]Source{primary, secondary}, WithClock(clock))
	q, report := p.FetchReport(t.Context(), "MSFT")

	require.Equal(t, 381.25, q.Price)
	require.Equal(t, model.SourcePolled, q.Source)
	require.Equal(t, fixedNow.UnixMilli(), q.TimestampMs, "quotes carry the fetch time")
	require.Equal(t, "secondary", report.Resolved)

	var srcErr *SourceError
	require.ErrorAs(t, report.Err(), &srcErr)
	require.Equal(t, "primary", srcErr.Source)
	require.Equal(t, "MSFT", srcErr.Symbol)
}

func TestPipeline_AllSourcesFail(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	secondary := newMockSource(ctrl, "secondary")
	primary.EXPECT().Fetch(gomock.Any(), "TSLA").Return(model.Quote{}, &api.APIError{StatusCode: 503})
	secondary.EXPECT().Fetch(gomock.Any(), "TSLA").Return(model.Quote{}, api.ErrEmptyPayload)

	p := NewPipeline([]Source{primary, secondary}, WithClock(clock))
	q, report := p.FetchReport(t.Context(), "TSLA")

	require.Equal(t, model.SourceSimulated, q.Source)
	require.True(t, report.Fallback())
	require.NoError(t, q.Validate())
	require.LessOrEqual(t, q.Low, q.Price)
	require.LessOrEqual(t, q.Price, q.High)
	require.GreaterOrEqual(t, q.Volume, int64(0))
	require.ErrorIs(t, report.Err(), api.ErrEmptyPayload)
	require.Len(t, report.Attempts, 3)

	st := p.Stats()
	require.Equal(t, []SourceStats{
		{Source: "primary", Failed: 1},
		{Source: "secondary", Failed: 1},
		{Source: "simulated", Succeeded: 1},
	}, st.Sources)
}

func TestPipeline_InvalidQuoteFallsThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	primary.EXPECT().Fetch(gomock.Any(), "NVDA").Return(model.Quote{Symbol: "NVDA", Price: math.NaN()}, nil)

	p := NewPipeline([]Source{primary}, WithClock(clock))
	q, report := p.FetchReport(t.Context(), "NVDA")

	require.Equal(t, model.SourceSimulated, q.Source)
	require.False(t, math.IsNaN(q.Price))
	require.ErrorIs(t, report.Err(), ErrInvalidQuote)
	require.ErrorIs(t, report.Err(), model.ErrInvalidPrice)
}

func TestPipeline_NoSources(t *testing.T) {
	t.Parallel()

	p := NewPipeline(nil, WithClock(clock))
	q := p.Fetch(context.Background(), "SPY")

	require.Equal(t, model.SourceSimulated, q.Source)
	require.Equal(t, "SPY", q.Symbol)
}

func TestPipeline_SourceTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	slow := newMockSource(ctrl, "primary")
	slow.EXPECT().
		Fetch(gomock.Any(), "AMZN").
		DoAndReturn(func(ctx context.Context, symbol string) (model.Quote, error) {
			<-ctx.Done()
			return model.Quote{}, ctx.Err()
		})

	p := NewPipeline([]Source{slow}, WithSourceTimeout(20*time.Millisecond))

	start := time.Now()
	q, report := p.FetchReport(t.Context(), "AMZN")

	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, model.SourceSimulated, q.Source)
	require.ErrorIs(t, report.Err(), context.DeadlineExceeded)
}

func TestPipeline_CancelledContextSkipsSources(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	primary.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, report := NewPipeline([]Source{primary}).FetchReport(ctx, "META")
	require.Equal(t, model.SourceSimulated, q.Source)
	require.True(t, report.Canceled)
}

func TestPipeline_CanceledCallerDoesNotSpoilSharedFetch(t *testing.T) {
	t.Parallel()

	// Arrange: a slow primary that honours its context.
	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	started := make(chan struct{})
	primary.EXPECT().
		Fetch(gomock.Any(), "AAPL").
		DoAndReturn(func(ctx context.Context, symbol string) (model.Quote, error) {
			close(started)
			select {
			case <-time.After(200 * time.Millisecond):
				return model.Quote{Symbol: "AAPL", Price: 190}, nil
			case <-ctx.Done():
				return model.Quote{}, ctx.Err()
			}
		}).
		Times(1)

	p := NewPipeline([]Source{primary}, WithClock(clock))

	// Act: A starts the flight, B joins it, then A leaves.
	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan Report, 1)
	go func() {
		_, r := p.FetchReport(ctxA, "AAPL")
		doneA <- r
	}()
	<-started

	type result struct {
		q model.Quote
		r Report
	}
	doneB := make(chan result, 1)
	go func() {
		q, r := p.FetchReport(context.Background(), "AAPL")
		doneB <- result{q, r}
	}()
	time.Sleep(20 * time.Millisecond)
	cancelA()

	// Assert
	select {
	case r := <-doneA:
		require.True(t, r.Canceled)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("canceled caller kept waiting on the shared fetch")
	}

	b := <-doneB
	require.Equal(t, "primary", b.r.Resolved)
	require.Equal(t, model.SourcePolled, b.q.Source)
	require.Equal(t, 190.0, b.q.Price)
	require.NoError(t, b.r.Err())
	require.True(t, b.r.Shared)
}

func TestPipeline_CollapsesConcurrentFetches(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	primary := newMockSource(ctrl, "primary")
	release := make(chan struct{})
	var calls atomic.Int32
	primary.EXPECT().
		Fetch(gomock.Any(), "AAPL").
		DoAndReturn(func(ctx context.Context, symbol string) (model.Quote, error) {
			calls.Add(1)
			<-release
			return model.Quote{Symbol: "AAPL", Price: 175}, nil
		}).
		MinTimes(1)

	p := NewPipeline([]Source{primary}, WithClock(clock))

	var wg sync.WaitGroup
	results := make([]model.Quote, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Fetch(t.Context(), "AAPL")
		}()
	}

	// Let the goroutines pile onto the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, q := range results {
		require.Equal(t, 175.0, q.Price)
	}
	require.Equal(t, int64(5), p.Stats().Shared, "every caller of a shared flight reports shared")
}

func TestPipeline_WithHTTPSources(t *testing.T) {
	t.Parallel()

	primarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primarySrv.Close()

	secondarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"190.1200","10. change percent":"-0.4%"}}`))
	}))
	defer secondarySrv.Close()

	p := NewPipeline([]Source{
		NewPrimarySource(api.NewPrimaryClient(primarySrv.URL, "", api.WithRetries(0, time.Millisecond))),
		NewSecondarySource(api.NewSecondaryClient(secondarySrv.URL, "")),
	}, WithClock(clock))

	q, report := p.FetchReport(t.Context(), "IBM")

	require.Equal(t, "secondary", report.Resolved)
	require.Equal(t, 190.12, q.Price)
	require.Equal(t, -0.4, q.ChangePercent)

	var apiErr *api.APIError
	require.ErrorAs(t, report.Err(), &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}
