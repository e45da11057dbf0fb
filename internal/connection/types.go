package connection

import (
	"errors"
	"time"

	"github.com/rickgao/quotehub/internal/model"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAuth          = errors.New("authentication failed")
	ErrAlreadyClosed = errors.New("already closed")
	ErrNoURL         = errors.New("stream url not configured")
)

// MaxAttemptsMessage is the Failed status message once reconnect attempts run out.
const MaxAttemptsMessage = "Maximum reconnection attempts reached"

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Listener receives Connection Manager events. Calls are made from the
// manager's goroutines and must not block for long.
type Listener interface {
	OnQuote(symbol string, q model.Quote)
	OnStateChange(status model.ConnectionStatus)
	OnError(message string)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	Quote       func(symbol string, q model.Quote)
	StateChange func(status model.ConnectionStatus)
	Error       func(message string)
}

func (l ListenerFuncs) OnQuote(symbol string, q model.Quote) {
	if l.Quote != nil {
		l.Quote(symbol, q)
	}
}

func (l ListenerFuncs) OnStateChange(status model.ConnectionStatus) {
	if l.StateChange != nil {
		l.StateChange(status)
	}
}

func (l ListenerFuncs) OnError(message string) {
	if l.Error != nil {
		l.Error(message)
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://stream.example.com/quotes)
	Token            string        // Bearer token (empty = no Authorization header)
	HandshakeTimeout time.Duration // Max time for the opening handshake
	PingInterval     time.Duration // Interval between {"type":"ping"} messages
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 15 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration // Handshake bound; a timeout counts as a failed attempt
	PingInterval     time.Duration
	BaseDelay        time.Duration // First reconnect delay
	MaxDelay         time.Duration // Reconnect delay cap
	MaxAttempts      int           // Consecutive failures before Failed
	ResetWindow      time.Duration // A session longer than this resets the attempt count
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HandshakeTimeout: 15 * time.Second,
		PingInterval:     30 * time.Second,
		BaseDelay:        1 * time.Second,
		MaxDelay:         30 * time.Second,
		MaxAttempts:      10,
		ResetWindow:      120 * time.Second,
	}
}

func (c ManagerConfig) clientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = c.URL
	cfg.Token = c.Token
	if c.HandshakeTimeout > 0 {
		cfg.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.PingInterval > 0 {
		cfg.PingInterval = c.PingInterval
	}
	return cfg
}
