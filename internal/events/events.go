// Package events defines the outward notifications of the level manager and
// an in-process bus that delivers them in order.
package events

import (
	"sync"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

type Kind string

const (
	KindLevelRangeChanged Kind = "level.range.changed"
	KindLevelChanged      Kind = "level.changed"
	KindLoaded            Kind = "loaded"
	KindError             Kind = "error"
	KindMapAdded          Kind = "map.added"
	KindMapRemoved        Kind = "map.removed"
)

// Event is one of the variants below.
type Event interface {
	Kind() Kind
}

// LevelRangeChanged carries nil when no indoor map is active.
type LevelRangeChanged struct {
	Range *model.LevelRange `json:"range"`
}

// LevelChanged carries nil when the level was cleared.
type LevelChanged struct {
	Level *model.Level `json:"level"`
}

type Loaded struct {
	SourceID string `json:"sourceId"`
	MapID    string `json:"mapId"`
}

type Error struct {
	Err   error  `json:"-"`
	MapID string `json:"mapId,omitempty"`
}

type MapAdded struct {
	MapID string `json:"mapId"`
}

type MapRemoved struct {
	MapID string `json:"mapId"`
}

func (LevelRangeChanged) Kind() Kind { return KindLevelRangeChanged }
func (LevelChanged) Kind() Kind      { return KindLevelChanged }
func (Loaded) Kind() Kind            { return KindLoaded }
func (Error) Kind() Kind             { return KindError }
func (MapAdded) Kind() Kind          { return KindMapAdded }
func (MapRemoved) Kind() Kind        { return KindMapRemoved }

type Handler func(Event)

// Bus queues posted events and delivers them synchronously, in post order,
// to every subscriber. Handlers may post (directly or by calling back into
// the publisher); nested deliveries are appended to the running drain.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]Handler
	order    []int
	nextID   int
	queue    []Event
	draining bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Post enqueues ev without delivering it.
func (b *Bus) Post(ev Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
}

// Drain delivers queued events. If another goroutine (or an outer call on
// this stack) is already draining, it returns immediately and the running
// drain picks the events up.
func (b *Bus) Drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]Handler, 0, len(b.order))
		for _, id := range b.order {
			handlers = append(handlers, b.subs[id])
		}
		b.mu.Unlock()

		for _, h := range handlers {
			h(ev)
		}

		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

// Publish posts and drains.
func (b *Bus) Publish(ev Event) {
	b.Post(ev)
	b.Drain()
}
