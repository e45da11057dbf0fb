// Package httpapi serves the hub's read-only status endpoints and the
// manual reconnect trigger over HTTP (cloudwego/hertz).
//
// Routes:
//
//	GET  /health                health and build version
//	GET  /v1/quotes/:symbol     cached quote with age and stale flag
//	GET  /v1/status             connection badge, active symbols, hub stats
//	POST /v1/connection/retry   manual retry after the stream has failed
package httpapi
