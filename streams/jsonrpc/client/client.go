package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-amm-go/engine"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/indexer"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// RpcNamespace is the namespace under which the streamer is registered.
	RpcNamespace                  = "amm"
	StateStreamSubscriptionMethod = "subscribeStateStream"
)

// ErrSequenceGap is returned by ProcessMessage when an event skips one or more
// commits. The mirrored state can no longer be trusted until the next full snapshot.
var ErrSequenceGap = errors.New("sequence gap")

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// StreamProcessor
// -----------------------------------------------------------------------------

// StreamProcessor handles the business logic of parsing events, maintaining
// the latest state, applying events, and broadcasting updates.
// It is decoupled from the networking layer.
type StreamProcessor struct {
	lastState *State
	indexer   *indexer.Indexer
	stateCh   chan *State
	logger    Logger
}

// NewStreamProcessor creates a pure logic processor without networking.
func NewStreamProcessor(logger Logger, bufferSize uint) *StreamProcessor {
	return &StreamProcessor{
		logger:  logger,
		indexer: indexer.New(),
		stateCh: make(chan *State, bufferSize),
	}
}

// State returns a read-only channel for receiving new states.
func (sp *StreamProcessor) State() <-chan *State {
	return sp.stateCh
}

// ProcessMessage accepts a raw JSON message, processes it, and updates the
// internal state.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	processingStart := time.Now()
	var event SubscriptionEvent

	if err := json.Unmarshal(rawData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	switch event.Type {
	case "full":
		return sp.handleFullState(event, processingStart)
	case "event":
		return sp.handleEvent(event, processingStart)
	default:
		return fmt.Errorf("received unknown event type: %s", event.Type)
	}
}

// Reset forgets the mirrored state. The next message must be a full snapshot.
func (sp *StreamProcessor) Reset() {
	sp.lastState = nil
}

func (sp *StreamProcessor) handleFullState(event SubscriptionEvent, start time.Time) error {
	var snapshot uniswapv2.Snapshot
	if err := json.Unmarshal(event.Payload, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal full state payload: %w", err)
	}

	var previous []uniswapv2.Pool
	if sp.lastState != nil {
		previous = sp.lastState.Pools
	}
	state := &State{
		Sequence: snapshot.Sequence,
		Pools:    snapshot.Pools,
		Index:    sp.indexer.Index(snapshot.Pools),
		Changes:  uniswapv2.Differ(previous, snapshot.Pools),
	}

	sp.logMetrics(state, time.Since(start), event.SentAt, "full")
	sp.storeState(state)
	sp.stateCh <- state
	return nil
}

func (sp *StreamProcessor) handleEvent(event SubscriptionEvent, start time.Time) error {
	var ev engine.Event
	if err := json.Unmarshal(event.Payload, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	if sp.lastState == nil {
		return fmt.Errorf("received event before full state; sequence: %d", ev.Sequence)
	}

	last := sp.lastState.Sequence
	if ev.Sequence <= last {
		sp.logger.Debug("Discarding stale event", "last_sequence", last, "event_sequence", ev.Sequence)
		return nil
	}
	if ev.Sequence != last+1 {
		sp.Reset()
		return fmt.Errorf("%w: expected %d, received %d", ErrSequenceGap, last+1, ev.Sequence)
	}

	var diff uniswapv2.PoolsDiff
	if _, ok := sp.lastState.Index.GetByKey(ev.Pool.Key); ok {
		diff.Updates = []uniswapv2.Pool{ev.Pool}
	} else {
		diff.Additions = []uniswapv2.Pool{ev.Pool}
	}
	pools, err := uniswapv2.Patcher(sp.lastState.Pools, diff)
	if err != nil {
		return fmt.Errorf("failed to patch state: %w", err)
	}

	state := &State{
		Sequence: ev.Sequence,
		Pools:    pools,
		Index:    sp.indexer.Index(pools),
		Changes:  diff,
		Event:    &ev,
	}

	sp.logMetrics(state, time.Since(start), event.SentAt, "event")
	sp.storeState(state)
	sp.stateCh <- state
	return nil
}

func (sp *StreamProcessor) storeState(state *State) {
	sp.lastState = state
}

func (sp *StreamProcessor) logMetrics(state *State, processingDur time.Duration, sentAt int64, stateType string) {
	if state == nil {
		return
	}

	clientFinishTime := time.Now()
	clientStartTime := clientFinishTime.Add(-processingDur)
	transportTime := clientStartTime.Sub(time.Unix(0, sentAt))

	args := []any{
		"sequence", state.Sequence,
		"type", stateType,
		"pools", len(state.Pools),
		"additions", len(state.Changes.Additions),
		"updates", len(state.Changes.Updates),
		"latency_transport_ms", transportTime.Milliseconds(),
		"latency_proc_ms", processingDur.Milliseconds(),
	}
	if state.Event != nil {
		commitTime := time.Unix(0, state.Event.Timestamp)
		args = append(args, "latency_total_ms", clientFinishTime.Sub(commitTime).Milliseconds())
	}
	sp.logger.Debug("State Processed", args...)
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the connection and uses StreamProcessor for logic.
type Client struct {
	processor *StreamProcessor
	errCh     chan error
	logger    Logger
}

// NewClient creates a new client with networking enabled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor: NewStreamProcessor(cfg.Logger, cfg.BufferSize),
		errCh:     make(chan error, 1),
		logger:    cfg.Logger,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// State delegates to the processor's state channel.
func (c *Client) State() <-chan *State {
	return c.processor.State()
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient)
		// Every new subscription starts with a full snapshot.
		c.processor.Reset()
		if err == nil {
			err = errors.New("subscription closed by server")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Info("Context canceled, shutting down.")
			return
		}
		if errors.Is(err, ErrSequenceGap) {
			c.logger.Warn("Stream out of sync, resubscribing for a fresh snapshot", "error", err)
			continue
		}
		c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
		if !sleep(ctx, reconnectDelay) {
			return
		}
		reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, RpcNamespace, rawCh, StateStreamSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for data...")
	for {
		select {
		case rawData := <-rawCh:
			if err := c.processor.ProcessMessage(rawData); err != nil {
				if errors.Is(err, ErrSequenceGap) {
					return err
				}
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
