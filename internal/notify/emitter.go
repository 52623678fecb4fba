package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Emitter delivers notifications from a bounded queue on its own goroutine.
// Emit never blocks the caller and failures are logged, never returned.
type Emitter struct {
	sink    Sink
	queue   chan Notification
	timeout time.Duration
	log     *slog.Logger
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewEmitter(sink Sink, buffer int, timeout time.Duration, log *slog.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	e := &Emitter{
		sink:    sink,
		queue:   make(chan Notification, buffer),
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Emitter) loop() {
	defer close(e.done)
	for n := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := e.sink.Send(ctx, n); err != nil {
			e.log.Warn("notification delivery failed", "action", "notification_failed", "notification_id", n.ID, "channel", n.Channel, "error", err)
		} else {
			e.log.Debug("notification sent", "action", "notification_sent", "notification_id", n.ID, "channel", n.Channel)
		}
		cancel()
	}
}

// Emit queues n and reports whether it was accepted.
func (e *Emitter) Emit(n Notification) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.log.Warn("notification dropped, emitter closed", "action", "notification_dropped", "notification_id", n.ID)
		return false
	}
	select {
	case e.queue <- n:
		return true
	default:
		e.log.Warn("notification dropped, queue full", "action", "notification_dropped", "notification_id", n.ID)
		return false
	}
}

// Close stops intake and waits until queued notifications are delivered.
func (e *Emitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}
