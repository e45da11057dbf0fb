package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/quotehub/internal/model"
)

// Manager keeps one streaming connection alive and the desired symbol set
// subscribed on it.
type Manager struct {
	cfg      ManagerConfig
	backoff  Backoff
	listener Listener
	logger   *slog.Logger

	// dial and after are replaced in tests.
	dial  func(ctx context.Context) (Client, error)
	after func(d time.Duration) <-chan time.Time
	now   func() time.Time

	resubscribe chan struct{}

	mu           sync.Mutex
	state        model.ConnectionState
	attempts     int
	lastSuccess  time.Time
	sessionStart time.Time // zero unless the current session got connected
	message      string
	desired      map[string]struct{}
	client       Client
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewManager creates a Connection Manager. listener may be nil.
func NewManager(cfg ManagerConfig, listener Listener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	def := DefaultManagerConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = def.ResetWindow
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}

	m := &Manager{
		cfg:         cfg,
		backoff:     Backoff{Base: cfg.BaseDelay, Max: cfg.MaxDelay},
		listener:    listener,
		logger:      logger.With("component", "connection"),
		after:       time.After,
		now:         time.Now,
		resubscribe: make(chan struct{}, 1),
		state:       model.Disconnected,
		desired:     make(map[string]struct{}),
	}
	m.dial = m.dialClient
	return m
}

func (m *Manager) dialClient(ctx context.Context) (Client, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	c := NewClient(m.cfg.clientConfig(), m.logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect starts connecting. It is a no-op while Connecting, Connected or
// Reconnecting. From Failed it behaves like Retry.
func (m *Manager) Connect() error {
	if m.cfg.URL == "" {
		return ErrNoURL
	}

	m.mu.Lock()
	switch m.state {
	case model.Connecting, model.Connected, model.Reconnecting:
		m.mu.Unlock()
		return nil
	case model.Failed:
		m.attempts = 0
	}
	if m.cancel != nil {
		// The previous run already returned; release its context.
		m.cancel()
	}

	// Claim the state now so concurrent calls see a run in progress.
	m.state = model.Connecting

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.run(ctx, done)
	return nil
}

// Retry is the manual retry from Failed: it resets the attempt count and
// reconnects. It is a no-op in any other state.
func (m *Manager) Retry() error {
	m.mu.Lock()
	failed := m.state == model.Failed
	m.mu.Unlock()

	if !failed {
		return nil
	}
	m.logger.Info("manual retry requested")
	return m.Connect()
}

// Disconnect closes the connection normally and stops reconnecting.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done, c := m.cancel, m.done, m.client
	m.cancel, m.done, m.client = nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		c.Close()
	}
	if done != nil {
		<-done
	}

	m.transition(model.Disconnected, func() {
		m.attempts = 0
		m.message = ""
		m.sessionStart = time.Time{}
	})
}

// Stop disconnects, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		m.Disconnect()
		close(stopped)
	}()

	select {
	case <-stopped:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetDesiredSymbols replaces the symbol set to keep subscribed. When
// connected the new set is sent right away; otherwise it is sent in full on
// the next connect.
func (m *Manager) SetDesiredSymbols(symbols []string) {
	m.mu.Lock()
	m.desired = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		m.desired[s] = struct{}{}
	}
	connected := m.state == model.Connected
	m.mu.Unlock()

	if connected {
		select {
		case m.resubscribe <- struct{}{}:
		default:
		}
	}
}

// DesiredSymbols returns the desired symbol set, sorted.
func (m *Manager) DesiredSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desiredLocked()
}

func (m *Manager) desiredLocked() []string {
	out := make([]string, 0, len(m.desired))
	for s := range m.desired {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Status returns the current connection status.
func (m *Manager) Status() model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() model.ConnectionStatus {
	return model.ConnectionStatus{
		State:       m.state,
		Attempt:     m.attempts,
		MaxAttempts: m.cfg.MaxAttempts,
		LastSuccess: m.lastSuccess,
		Message:     m.message,
	}
}

// transition sets the state, applies mutate under the lock, and notifies
// the listener.
func (m *Manager) transition(state model.ConnectionState, mutate func()) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	if mutate != nil {
		mutate()
	}
	st := m.statusLocked()
	m.mu.Unlock()

	if prev != state {
		m.logger.Info("connection state changed",
			"from", prev,
			"to", state,
			"attempt", st.Attempt,
		)
	}
	m.listener.OnStateChange(st)
}

// run drives the state machine until a normal close, Failed, or Disconnect.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.transition(model.Connecting, nil)

		err := m.session(ctx)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			m.transition(model.Disconnected, func() {
				m.attempts = 0
				m.sessionStart = time.Time{}
			})
			return
		}

		if errors.Is(err, ErrAuth) {
			m.fail(err.Error())
			return
		}

		attempt, ok := m.recordFailure(err)
		if !ok {
			m.fail(MaxAttemptsMessage)
			return
		}

		delay := m.backoff.Delay(attempt)
		m.logger.Warn("connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return
		case <-m.after(delay):
		}
	}
}

// recordFailure counts a failed attempt. A session that stayed connected
// longer than the reset window starts the count over. It returns false
// once the count reaches MaxAttempts.
func (m *Manager) recordFailure(err error) (int, bool) {
	m.mu.Lock()
	if !m.sessionStart.IsZero() && m.now().Sub(m.sessionStart) > m.cfg.ResetWindow {
		m.attempts = 0
	}
	m.sessionStart = time.Time{}
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	if attempt >= m.cfg.MaxAttempts {
		return attempt, false
	}

	m.transition(model.Reconnecting, func() {
		m.message = err.Error()
	})
	return attempt, true
}

func (m *Manager) fail(message string) {
	m.transition(model.Failed, func() {
		m.message = message
		m.sessionStart = time.Time{}
	})
	m.logger.Error("connection failed", "message", message)
	m.listener.OnError(message)
}

// session dials, subscribes and serves one connection. It returns nil on a
// normal close (code 1000) and an error otherwise.
func (m *Manager) session(ctx context.Context) error {
	c, err := m.dial(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if ctx.Err() != nil {
		// Disconnect raced with the dial.
		m.mu.Unlock()
		c.Close()
		return ctx.Err()
	}
	m.client = c
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.client == c {
			m.client = nil
		}
		m.mu.Unlock()
		c.Close()
	}()

	now := m.now()
	m.transition(model.Connected, func() {
		m.lastSuccess = now
		m.sessionStart = now
		m.message = ""
	})

	if err := m.sendSubscription(c, true); err != nil {
		m.logger.Warn("failed to send subscription", "error", err)
	}

	return m.serve(ctx, c)
}

// sendSubscription sends the full desired set, replacing the server-side
// set. An empty set is sent on change so released symbols stop streaming;
// on a fresh connection there is nothing to replace.
func (m *Manager) sendSubscription(c Client, initial bool) error {
	m.mu.Lock()
	symbols := m.desiredLocked()
	m.mu.Unlock()

	if len(symbols) == 0 {
		if initial {
			return nil
		}
		symbols = []string{}
	}
	m.logger.Debug("subscribing", "symbols", symbols)
	return c.SendJSON(SubscribeRequest{Type: TypeSubscribe, Symbols: symbols})
}

// serve dispatches incoming messages until the connection ends.
func (m *Manager) serve(ctx context.Context, c Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-m.resubscribe:
			if err := m.sendSubscription(c, false); err != nil {
				m.logger.Warn("failed to send subscription", "error", err)
			}

		case err := <-c.Errors():
			// Messages read before the failure are still delivered, and an
			// auth error among them decides how the session ended.
			if derr := m.drain(c); derr != nil {
				return derr
			}
			return classifyReadError(err)

		case msg := <-c.Messages():
			if err := m.dispatch(msg); err != nil {
				return err
			}
		}
	}
}

// drain dispatches messages already buffered by the client.
func (m *Manager) drain(c Client) error {
	for {
		select {
		case msg := <-c.Messages():
			if err := m.dispatch(msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// dispatch handles one server message. It returns an error only for
// messages that end the session.
func (m *Manager) dispatch(msg TimestampedMessage) error {
	decoded, err := DecodeMessage(msg.Data)
	if err != nil {
		m.logger.Debug("dropping undecodable message", "error", err)
		return nil
	}

	switch v := decoded.(type) {
	case PriceUpdate:
		q := v.Quote
		if q.TimestampMs <= 0 {
			q.TimestampMs = msg.ReceivedAt.UnixMilli()
		}
		if err := q.Validate(); err != nil {
			m.logger.Debug("dropping invalid price update", "symbol", v.Symbol, "error", err)
			return nil
		}
		m.listener.OnQuote(v.Symbol, q)
	case ErrorMsg:
		if IsAuthError(v.Error) {
			return fmt.Errorf("%w: %s", ErrAuth, v.Error)
		}
		m.logger.Warn("server error", "error", v.Error)
		m.listener.OnError(v.Error)
	case DebugMsg:
		m.logger.Debug("server debug", "message", v.Message)
	case Pong:
		m.logger.Debug("pong received")
	case Unknown:
		m.logger.Debug("unknown message type", "type", v.Type)
	}
	return nil
}

// classifyReadError maps the error that ended the read loop. A normal close
// returns nil; an auth-related close reason returns ErrAuth.
func classifyReadError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure {
			return nil
		}
		if ce.Text != "" && IsAuthError(ce.Text) {
			return fmt.Errorf("%w: %s", ErrAuth, ce.Text)
		}
	}
	return err
}
