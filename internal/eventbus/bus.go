// Package eventbus routes aggregation results between the ingestion
// pipeline and in-process consumers such as the WebSocket hub.
package eventbus

import (
	"sync"
	"time"

	"gkgtrends/internal/models"
)

// Event types published by the ingestion pipeline.
const (
	TypeTrendRealtime = "trend.realtime"
	TypeTrendDaily    = "trend.daily"
)

// Event is one aggregation result in flight.
type Event struct {
	Type      string
	Date      string
	Category  models.Category
	Timestamp time.Time
	Data      interface{}
}

// Bus delivers events to type-keyed subscriber channels. Delivery never
// blocks: an event sent to a full channel is lost for that subscriber.
// Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan<- Event
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[string][]chan<- Event)}
}

// Subscribe registers ch for events of the given type. The channel's
// buffer is the subscriber's burst tolerance; see Publish.
func (b *Bus) Subscribe(eventType string, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], ch)
}

// Publish fans evt out to that type's subscribers, skipping any whose
// channel is full. After Close it does nothing.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[evt.Type] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close stops future publishes. Subscriber channels stay open; whoever
// created them closes them.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
