package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is an in-process signal about job or frame lifecycle.
//
// Contract:
//   - Publish never blocks; it is called from worker goroutines.
//   - Subscribers get buffered channels and miss events when they fall behind.
//
// Data should be small and JSON-serializable.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

type Bus interface {
	Publish(e Event)
	// Subscribe delivers events whose Type is one of types, or every event when
	// types is empty.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
	// Dropped counts deliveries skipped because a subscriber was full.
	Dropped() uint64
}

func New() Bus {
	return &memBus{subs: map[uint64]*sub{}}
}

type sub struct {
	ch    chan Event
	types map[string]struct{}
}

func (s *sub) wants(typ string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[typ]
	return ok
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*sub
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Send under the read lock: unsubscribe closes channels under the write lock,
	// so a send never races a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, unsub
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
