package api

import (
	"context"
	"fmt"
	"net/url"
)

// GetQuote fetches a quote in the primary schema.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*QuoteResponse, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var resp QuoteResponse
	if err := c.get(ctx, "/quote", query, &resp); err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetGlobalQuote fetches a quote in the Global Quote schema.
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuoteResponse, error) {
	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)

	var resp GlobalQuoteResponse
	if err := c.get(ctx, "/query", query, &resp); err != nil {
		return nil, fmt.Errorf("get global quote %s: %w", symbol, err)
	}
	return &resp, nil
}
