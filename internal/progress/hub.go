package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines and tolerate repeated Close calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Config controls Hub buffering.
type Config struct {
	// BufferSize is the internal channel capacity (default 1024).
	BufferSize int
	// SinkTimeout bounds each sink call (default 5s).
	SinkTimeout time.Duration
	// Logger receives drop warnings; nil means no logging.
	Logger *zap.Logger
}

const (
	defaultBufferSize  = 1024
	defaultSinkTimeout = 5 * time.Second
	dropLogInterval    = 5 * time.Second
)

// Hub fans events out to its sinks from a background goroutine. Emit never
// blocks the scrape path: when the buffer is full the event is dropped and a
// rate-limited warning is logged.
type Hub struct {
	cfg       Config
	sinks     []Sink
	events    chan Event
	stopCh    chan struct{}
	doneCh    chan struct{}
	logger    *zap.Logger
	dropped   atomic.Int64
	lastWarn  atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewHub starts a Hub ready to accept events.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an event, dropping it if the hub is closed or saturated.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.maybeWarnDrops()
	}
}

// Close drains buffered events, closes the sinks, and blocks until the
// background goroutine exits.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.flush(h.drainInto([]Event{evt}))
		case <-h.stopCh:
			if batch := h.drainInto(nil); len(batch) > 0 {
				h.flush(batch)
			}
			h.closeSinks()
			return
		}
	}
}

// drainInto appends everything currently buffered so sinks see one batch per
// wakeup instead of one call per event.
func (h *Hub) drainInto(batch []Event) []Event {
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
		default:
			return batch
		}
	}
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
	defer cancel()
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

func (h *Hub) maybeWarnDrops() {
	now := time.Now().UnixNano()
	last := h.lastWarn.Load()
	if now-last < dropLogInterval.Nanoseconds() {
		return
	}
	if h.lastWarn.CompareAndSwap(last, now) {
		count := h.dropped.Swap(0)
		h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", count))
	}
}
