// Package fetch resolves a quote for a symbol from an ordered list of sources.
//
// External sources are tried in order, each under its own timeout. Any
// failure (transport, HTTP status, empty or malformed payload) falls through
// to the next source, and the deterministic simulator terminates the chain,
// so Fetch always returns a valid quote. Per-source errors are available via
// FetchReport for callers that want diagnostics.
package fetch
