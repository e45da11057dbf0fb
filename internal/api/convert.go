package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quotehub/internal/model"
)

// ToModel converts a primary quote payload. The timestamp is left at 0 when
// the payload does not carry one.
func (r *QuoteResponse) ToModel(symbol string) (model.Quote, error) {
	if r.Current <= 0 {
		return model.Quote{}, ErrEmptyPayload
	}

	change, pct := 0.0, 0.0
	switch {
	case r.Change != nil && r.ChangePercent != nil:
		change, pct = *r.Change, *r.ChangePercent
	case r.PrevClose > 0:
		change, pct = derivedChange(r.Current, r.PrevClose)
	}

	q := model.Quote{
		Symbol:        symbol,
		Price:         r.Current,
		Change:        change,
		ChangePercent: pct,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		TimestampMs:   r.Timestamp * 1000,
		Source:        model.SourcePolled,
	}.Normalize()

	if err := q.Validate(); err != nil {
		return model.Quote{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return q, nil
}

// ToModel converts a Global Quote payload. The schema has no intraday
// timestamp, so TimestampMs is 0.
func (r *GlobalQuoteResponse) ToModel(symbol string) (model.Quote, error) {
	if msg := r.notice(); msg != "" {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrUpstreamNotice, msg)
	}
	g := r.GlobalQuote
	if strings.TrimSpace(g.Price) == "" {
		return model.Quote{}, ErrEmptyPayload
	}

	price, err := ParseDecimal(g.Price)
	if err != nil {
		return model.Quote{}, fmt.Errorf("price: %w", err)
	}
	if price <= 0 {
		return model.Quote{}, fmt.Errorf("%w: price %v", ErrMalformedPayload, price)
	}

	var fields [5]float64
	for i, s := range []string{g.Open, g.High, g.Low, g.Change, g.PreviousClose} {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if fields[i], err = ParseDecimal(s); err != nil {
			return model.Quote{}, err
		}
	}
	open, high, low, change, prevClose := fields[0], fields[1], fields[2], fields[3], fields[4]

	var pct float64
	if strings.TrimSpace(g.ChangePercent) != "" {
		if pct, err = ParsePercent(g.ChangePercent); err != nil {
			return model.Quote{}, err
		}
	} else if prevClose > 0 {
		change, pct = derivedChange(price, prevClose)
	}

	var volume int64
	if v := strings.TrimSpace(g.Volume); v != "" {
		if volume, err = strconv.ParseInt(v, 10, 64); err != nil {
			return model.Quote{}, fmt.Errorf("%w: volume %q", ErrMalformedPayload, g.Volume)
		}
	}

	if g.Symbol != "" {
		symbol = g.Symbol
	}

	q := model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        volume,
		Source:        model.SourcePolled,
	}.Normalize()

	if err := q.Validate(); err != nil {
		return model.Quote{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return q, nil
}

func (r *GlobalQuoteResponse) notice() string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.Note != "":
		return r.Note
	case r.Information != "":
		return r.Information
	}
	return ""
}

// ParseDecimal parses a numeric string such as "187.4500".
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedPayload, s)
	}
	return d.InexactFloat64(), nil
}

// ParsePercent parses a change percent such as "1.23%" or "-0.5%" into 1.23 or -0.5.
func ParsePercent(s string) (float64, error) {
	return ParseDecimal(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func derivedChange(price, prevClose float64) (change, pct float64) {
	p := decimal.NewFromFloat(price)
	pc := decimal.NewFromFloat(prevClose)
	diff := p.Sub(pc)
	return diff.InexactFloat64(), diff.Div(pc).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
