package fetch

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/rickgao/quotehub/internal/model"
)

// basePrices anchors well-known symbols so simulated values look plausible.
var basePrices = map[string]float64{
	"AAPL":  175,
	"MSFT":  380,
	"GOOGL": 140,
	"AMZN":  145,
	"TSLA":  240,
	"NVDA":  480,
	"META":  350,
	"SPY":   450,
	"QQQ":   380,
}

const (
	maxDailyDrift    = 0.02 // previous close vs base
	maxOpeningGap    = 0.01 // open vs previous close
	maxIntradayMove  = 0.03 // price vs open
	maxWickExtension = 0.01 // high/low beyond open and price
)

// Simulator produces deterministic quotes from a symbol and a time. The
// same symbol within the same minute always yields the same quote.
type Simulator struct {
	now func() time.Time
}

// NewSimulator creates a simulator. now may be nil.
func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{now: now}
}

// Name returns "simulated".
func (s *Simulator) Name() string { return "simulated" }

// Fetch implements Source. It never fails.
func (s *Simulator) Fetch(_ context.Context, symbol string) (model.Quote, error) {
	return Simulate(symbol, s.now()), nil
}

// Simulate returns the quote for symbol at t. The daily fields (previous
// close, open, volume pace) are seeded by symbol and UTC day, the current
// price by symbol and minute.
func Simulate(symbol string, t time.Time) model.Quote {
	symbol = model.NormalizeSymbol(symbol)
	seed := symbolSeed(symbol)
	base := BasePrice(symbol)

	t = t.UTC()
	day := t.Unix() / 86400
	daily := rand.New(rand.NewPCG(seed, uint64(day)))
	prevClose := base * (1 + spread(daily, maxDailyDrift))
	open := prevClose * (1 + spread(daily, maxOpeningGap))
	volumePerMinute := 2_000 + daily.Int64N(48_000)

	minute := t.Unix() / 60
	intraday := rand.New(rand.NewPCG(seed, uint64(minute)))
	price := open * (1 + spread(intraday, maxIntradayMove))
	high := max(open, price) * (1 + intraday.Float64()*maxWickExtension)
	low := min(open, price) * (1 - intraday.Float64()*maxWickExtension)

	minutesIntoDay := minute - day*1440
	volume := volumePerMinute*(minutesIntoDay+1) + intraday.Int64N(volumePerMinute)

	change := price - prevClose

	return model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: change / prevClose * 100,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        volume,
		TimestampMs:   t.UnixMilli(),
		Source:        model.SourceSimulated,
	}.Normalize()
}

// BasePrice returns the anchor price for symbol. Unknown symbols get a
// stable price in [20, 520) derived from the symbol.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return 20 + float64(symbolSeed(symbol)%50_000)/100
}

func symbolSeed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

// spread returns a value in [-limit, limit).
func spread(r *rand.Rand, limit float64) float64 {
	return (r.Float64()*2 - 1) * limit
}
