package server

import (
	"errors"
	"sync"

	"github.com/defistate/defistate-amm-go/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// BroadcasterConfig configures a Broadcaster.
type BroadcasterConfig struct {
	// BufferSize is the number of events each subscriber may fall behind by.
	BufferSize uint
	Registry   prometheus.Registerer
	Logger     Logger
}

func (c *BroadcasterConfig) validate() error {
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// Broadcaster fans engine events out to subscribers. It implements
// engine.Publisher and never blocks the engine: a subscriber whose buffer is
// full is disconnected and its channel closed.
type Broadcaster struct {
	mu         sync.Mutex
	subs       map[uint64]chan engine.Event
	nextID     uint64
	bufferSize uint
	metrics    *Metrics
	logger     Logger
}

// NewBroadcaster creates a broadcaster without subscribers.
func NewBroadcaster(cfg *BroadcasterConfig) (*Broadcaster, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Broadcaster{
		subs:       make(map[uint64]chan engine.Event),
		bufferSize: cfg.BufferSize,
		metrics:    NewMetrics(cfg.Registry),
		logger:     cfg.Logger,
	}, nil
}

// Publish delivers ev to every subscriber.
func (b *Broadcaster) Publish(ev engine.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.eventsPublished.Inc()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.metrics.eventsDropped.Inc()
			b.removeLocked(id)
			b.logger.Warn("subscriber fell behind, disconnecting", "subscriber", id, "sequence", ev.Sequence)
		}
	}
}

// Subscribe registers a new subscriber. The returned channel is closed when
// cancel is called or when the subscriber falls behind. cancel is idempotent.
func (b *Broadcaster) Subscribe() (events <-chan engine.Event, cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan engine.Event, b.bufferSize)
	b.subs[id] = ch
	b.metrics.subscribers.Inc()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(id)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) removeLocked(id uint64) {
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.metrics.subscribers.Dec()
}
