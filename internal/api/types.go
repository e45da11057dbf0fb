package api

import "errors"

// Errors returned when a payload cannot be turned into a quote.
var (
	ErrEmptyPayload     = errors.New("empty quote payload")
	ErrMalformedPayload = errors.New("malformed quote payload")
	ErrUpstreamNotice   = errors.New("upstream notice")
)

// QuoteResponse from the primary GET /quote endpoint.
// Unknown symbols come back as all zeros with null d/dp.
type QuoteResponse struct {
	Current       float64  `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PrevClose     float64  `json:"pc"`
	Timestamp     int64    `json:"t"` // unix seconds
}

// GlobalQuoteResponse from the secondary GET /query?function=GLOBAL_QUOTE endpoint.
// Rate limiting is reported with HTTP 200 and a Note or Information field.
type GlobalQuoteResponse struct {
	GlobalQuote  GlobalQuote `json:"Global Quote"`
	Note         string      `json:"Note,omitempty"`
	Information  string      `json:"Information,omitempty"`
	ErrorMessage string      `json:"Error Message,omitempty"`
}

// GlobalQuote holds every value as a string; change percent carries a "%" suffix.
type GlobalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}
