package server

import (
	"encoding/json"
)

const (
	// RpcNamespace is the namespace under which the API is registered.
	RpcNamespace                  = "amm"
	StateStreamSubscriptionMethod = "subscribeStateStream"

	// EventTypeFull carries a uniswapv2.Snapshot of every pool.
	EventTypeFull = "full"
	// EventTypeEvent carries a single engine.Event.
	EventTypeEvent = "event"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SubscriptionEvent is the wrapper object sent to stream subscribers.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}
