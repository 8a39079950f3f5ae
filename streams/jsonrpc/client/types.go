package client

import (
	"encoding/json"

	"github.com/defistate/defistate-amm-go/engine"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/indexer"
)

// SubscriptionEvent is the wrapper object received from the server.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}

// State is the client's mirror of the server's pools after a full snapshot or
// an applied event.
type State struct {
	// Sequence is the number of the last commit included.
	Sequence uint64
	// Pools in creation order.
	Pools []uniswapv2.Pool
	// Index answers lookups by key, token pair or single token.
	Index indexer.IndexedUniswapV2
	// Changes lists the pools that differ from the previous state.
	Changes uniswapv2.PoolsDiff
	// Event is the event that produced this state, nil for a full snapshot.
	Event *engine.Event
}
