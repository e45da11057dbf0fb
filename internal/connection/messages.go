package connection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/quotehub/internal/model"
)

// Outgoing message types.
const (
	TypeSubscribe = "subscribe"
	TypePing      = "ping"
)

// Incoming message types.
const (
	TypePriceUpdate = "price_update"
	TypeError       = "error"
	TypeDebug       = "debug"
	TypePong        = "pong"
)

// SubscribeRequest replaces the server-side symbol set.
type SubscribeRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// PingRequest is the application-level keepalive.
type PingRequest struct {
	Type string `json:"type"`
}

// Message is a decoded server message: one of PriceUpdate, ErrorMsg,
// DebugMsg, Pong or Unknown.
type Message interface {
	messageType() string
}

// PriceUpdate carries a pushed quote.
type PriceUpdate struct {
	Symbol string
	Quote  model.Quote
}

// ErrorMsg is a server-reported error.
type ErrorMsg struct {
	Error string
}

// DebugMsg is informational server output.
type DebugMsg struct {
	Message string
}

// Pong answers a ping.
type Pong struct{}

// Unknown is any message with an unrecognized type.
type Unknown struct {
	Type string
	Raw  []byte
}

func (PriceUpdate) messageType() string { return TypePriceUpdate }
func (ErrorMsg) messageType() string    { return TypeError }
func (DebugMsg) messageType() string    { return TypeDebug }
func (Pong) messageType() string        { return TypePong }
func (u Unknown) messageType() string   { return u.Type }

// envelope is the wire shape shared by every server message.
type envelope struct {
	Type    string          `json:"type"`
	Symbol  string          `json:"symbol"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// DecodeMessage parses a server message. Price updates are normalized and
// tagged with the live source.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case TypePriceUpdate:
		var q model.Quote
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("decode price_update: missing data")
		}
		if err := json.Unmarshal(env.Data, &q); err != nil {
			return nil, fmt.Errorf("decode price_update: %w", err)
		}
		symbol := model.NormalizeSymbol(env.Symbol)
		if symbol == "" {
			symbol = model.NormalizeSymbol(q.Symbol)
		}
		q.Symbol = symbol
		q.Source = model.SourceLive
		return PriceUpdate{Symbol: symbol, Quote: q.Normalize()}, nil
	case TypeError:
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return ErrorMsg{Error: msg}, nil
	case TypeDebug:
		return DebugMsg{Message: env.Message}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return Unknown{Type: env.Type, Raw: data}, nil
	}
}

// authMarkers are substrings that identify an authentication failure in
// server error text.
var authMarkers = []string{"401", "403", "token", "unauthorized", "forbidden"}

// IsAuthError reports whether a server error message describes an
// authentication or authorization failure.
func IsAuthError(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
