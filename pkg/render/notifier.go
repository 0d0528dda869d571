package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
)

// Notifier hands edge events to a Renderer on its own goroutine through a bounded buffer
// Publish never blocks: when the buffer is full, or after Close, the event is dropped and counted.
type Notifier struct {
	renderer  Renderer
	events    chan models.EdgeEvent
	done      chan struct{}
	mu        sync.RWMutex // Guards closed against concurrent Publish
	closed    bool
	delivered atomic.Int64
	dropped   atomic.Int64
	log       *logrus.Entry
}

// NewNotifier starts the delivery goroutine
func NewNotifier(r Renderer, buffer int, log *logrus.Entry) *Notifier {
	if r == nil {
		r = Nop{}
	}
	if buffer <= 0 {
		buffer = 1
	}
	n := &Notifier{
		renderer: r,
		events:   make(chan models.EdgeEvent, buffer),
		done:     make(chan struct{}),
		log:      log,
	}
	go n.loop()
	return n
}

func (n *Notifier) loop() {
	defer close(n.done)
	for ev := range n.events {
		n.deliver(ev)
	}
}

// deliver isolates renderer panics so one bad event does not stop delivery
func (n *Notifier) deliver(ev models.EdgeEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.log.WithFields(logrus.Fields{"source": ev.Source, "target": ev.Target}).Errorf("PANIC in renderer: %v", r)
		}
	}()
	n.renderer.EdgeAdded(ev)
	n.delivered.Add(1)
}

// Publish queues ev for delivery and reports whether it was accepted
func (n *Notifier) Publish(ev models.EdgeEvent) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.dropped.Add(1)
		return false
	}
	select {
	case n.events <- ev:
		return true
	default:
		n.dropped.Add(1)
		return false
	}
}

// Close stops accepting events, waits until every queued event is delivered, then calls Finish with snap
// Only the first call finishes the renderer.
func (n *Notifier) Close(snap graph.Snapshot) (err error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.events)
	n.mu.Unlock()

	<-n.done

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked in Finish: %v", r)
		}
	}()
	return n.renderer.Finish(snap)
}

// Delivered returns how many events reached the renderer
func (n *Notifier) Delivered() int64 { return n.delivered.Load() }

// Dropped returns how many events were discarded
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }
