package server

import (
	"context"
	"encoding/json"
)

// Frame is the JSON envelope exchanged with the game server: a command name
// plus its payload.
type Frame struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnState reports the socket lifecycle.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed"
)

type MessageCallback func(frame *Frame)

type StateCallback func(state ConnState)

// Conn is the bidirectional message channel the session talks through.
// Delivery is in-order per connection; the session treats a state change to
// StateDisconnected as the transport-loss signal.
type Conn interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, cmd string, payload any) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}
