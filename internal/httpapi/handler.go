package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"

	"github.com/rickgao/quotehub/internal/hub"
	"github.com/rickgao/quotehub/internal/model"
	"github.com/rickgao/quotehub/internal/version"
)

// Hub is the part of *hub.Hub the API reads.
type Hub interface {
	Quote(symbol string) (model.CacheEntry, bool)
	TTL() time.Duration
	ConnectionStatus() model.ConnectionStatus
	ActiveSymbols() []string
	Stats() hub.Stats
	RetryConnection() error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Build  version.Info `json:"build"`
}

// QuoteResponse is the body of GET /v1/quotes/:symbol.
type QuoteResponse struct {
	Quote      model.Quote `json:"quote"`
	ReceivedAt time.Time   `json:"received_at"`
	AgeMs      int64       `json:"age_ms"`
	Stale      bool        `json:"stale"`
}

// ConnectionResponse describes the stream connection.
type ConnectionResponse struct {
	State       model.ConnectionState `json:"state"`
	Badge       string                `json:"badge"`
	Text        string                `json:"text"`
	Attempt     int                   `json:"attempt"`
	MaxAttempts int                   `json:"max_attempts"`
	LastSuccess *time.Time            `json:"last_success,omitempty"`
	Message     string                `json:"message,omitempty"`
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Connection    ConnectionResponse `json:"connection"`
	ActiveSymbols []string           `json:"active_symbols"`
	Stats         hub.Stats          `json:"stats"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the API routes.
type Handler struct {
	hub    Hub
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(h Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    h,
		logger: logger.With("component", "httpapi"),
		now:    time.Now,
	}
}

// Register adds the routes to r.
func (h *Handler) Register(r *route.Engine) {
	r.GET("/health", h.health)
	v1 := r.Group("/v1")
	v1.GET("/quotes/:symbol", h.quote)
	v1.GET("/status", h.status)
	v1.POST("/connection/retry", h.retry)
}

func (h *Handler) health(_ context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Build:  version.Get(),
	})
}

func (h *Handler) quote(_ context.Context, c *app.RequestContext) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "symbol is required"})
		return
	}

	entry, ok := h.hub.Quote(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no quote for " + symbol})
		return
	}

	now := h.now()
	c.JSON(http.StatusOK, QuoteResponse{
		Quote:      entry.Quote,
		ReceivedAt: time.UnixMilli(entry.ReceivedAtMs).UTC(),
		AgeMs:      entry.Age(now).Milliseconds(),
		Stale:      !entry.IsFresh(now, h.hub.TTL()),
	})
}

func (h *Handler) status(_ context.Context, c *app.RequestContext) {
	active := h.hub.ActiveSymbols()
	if active == nil {
		active = []string{}
	}
	c.JSON(http.StatusOK, StatusResponse{
		Connection:    connectionResponse(h.hub.ConnectionStatus()),
		ActiveSymbols: active,
		Stats:         h.hub.Stats(),
	})
}

func (h *Handler) retry(_ context.Context, c *app.RequestContext) {
	if err := h.hub.RetryConnection(); err != nil {
		if errors.Is(err, hub.ErrNoStream) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Warn("manual retry failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	h.logger.Info("manual retry requested over http")
	c.JSON(http.StatusAccepted, connectionResponse(h.hub.ConnectionStatus()))
}

func connectionResponse(st model.ConnectionStatus) ConnectionResponse {
	resp := ConnectionResponse{
		State:       st.State,
		Badge:       st.Badge(),
		Text:        st.Text(),
		Attempt:     st.Attempt,
		MaxAttempts: st.MaxAttempts,
		Message:     st.Message,
	}
	if !st.LastSuccess.IsZero() {
		t := st.LastSuccess.UTC()
		resp.LastSuccess = &t
	}
	return resp
}
