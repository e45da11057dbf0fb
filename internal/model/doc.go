// Package model defines shared data types used across quotehub.
//
// Conventions:
//   - Prices: float64 dollars, rounded to 2 decimals on normalization
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Symbols: upper-case tickers (e.g. "AAPL")
package model
