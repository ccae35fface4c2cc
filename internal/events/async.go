package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultEventBuffer = 64
	drainTimeout       = 2 * time.Second
)

// AsyncPublisher queues events and hands them to the wrapped publisher on its
// own goroutine. Publish never waits on the broker; when the queue is full the
// event is dropped.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	queue   chan Event
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewAsyncPublisher(next Publisher, buffer int) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &AsyncPublisher{
		next:    next,
		timeout: 5 * time.Second,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(_ context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	select {
	case p.queue <- event:
	default:
		slog.Warn("AsyncPublisher: queue full, dropping event", "kind", event.Kind)
	}
	return nil
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if p.ctx.Err() != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		if err := p.next.Publish(ctx, event); err != nil {
			slog.Warn("failed to publish event", "kind", event.Kind, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits briefly for the queue to drain
// before closing the wrapped publisher.
func (p *AsyncPublisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-time.After(drainTimeout):
			slog.Warn("AsyncPublisher: abandoning queued events at shutdown", "pending", len(p.queue))
			p.cancel()
			<-p.done
		}
		p.cancel()
		p.next.Close()
	})
}
