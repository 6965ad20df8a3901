package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking
	// the emitting store operation.
	DropIfFull bool
}

// Dispatcher relays events to a sink on its own goroutine so a slow sink never
// holds up a store operation.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	queue      chan Event
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	dropped    atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. A disabled config yields a nil
// dispatcher; every method is safe on nil.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	d.wg.Go(d.deliver)
	return d
}

func (d *Dispatcher) deliver() {
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.sink.Emit(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// Emit queues ev. Events without a timestamp are stamped with the wall clock.
// After Close, Emit is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopped() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-d.stop:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Close stops accepting events and blocks until every queued one reached the
// sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

// Dropped counts events lost to a full buffer or a cancelled emitter.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
