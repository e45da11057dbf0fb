package model

import (
	"fmt"
	"time"
)

// ConnectionState is the streaming connection state machine.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets the state serialize as its name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Connection badges shown to consumers.
const (
	BadgeLive     = "live"
	BadgeDegraded = "degraded"
	BadgeFailed   = "failed"
	BadgeOffline  = "offline"
)

// ConnectionStatus is a point-in-time view of the Connection Manager.
type ConnectionStatus struct {
	State       ConnectionState `json:"state"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	LastSuccess time.Time       `json:"last_success,omitzero"`
	Message     string          `json:"message,omitempty"`
}

// Badge maps the state to the live/degraded/failed indicator.
func (s ConnectionStatus) Badge() string {
	switch s.State {
	case Connected:
		return BadgeLive
	case Connecting, Reconnecting:
		return BadgeDegraded
	case Failed:
		return BadgeFailed
	}
	return BadgeOffline
}

// Text returns the human-readable status line.
func (s ConnectionStatus) Text() string {
	switch s.State {
	case Connected:
		return "Live"
	case Connecting:
		return "Connecting…"
	case Reconnecting:
		return fmt.Sprintf("Reconnecting… (%d/%d)", s.Attempt, s.MaxAttempts)
	case Failed:
		if s.Message != "" {
			return "Connection Failed: " + s.Message
		}
		return "Connection Failed"
	}
	return "Disconnected"
}
