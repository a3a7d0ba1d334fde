// Package events carries the notification events emitted by the
// supervisor core to interested observers (the HTTP event stream, the
// history recorder, embedding applications).
package events

import (
	"sync"
	"time"
)

// Event names. These are part of the notification contract with UI
// shells and must match the payloads documented next to them.
const (
	SidecarLog        = "sidecar:log"        // LogPayload
	SidecarTerminated = "sidecar:terminated" // TerminatedPayload
	StatusUpdate      = "status:update"      // status.StatusResponse
	MountStatus       = "mount:status"       // string phase description
)

// LogPayload is one line of sidecar output. Level is "info" for stdout
// lines and "error" for stderr lines.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// TerminatedPayload describes an observed sidecar exit.
type TerminatedPayload struct {
	PID      int    `json:"pid"`
	ExitCode int    `json:"exitCode"`
	Error    string `json:"error,omitempty"`
}

// Event is a single emitted notification.
type Event struct {
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Bus fans events out to subscribers. Emit never blocks: a subscriber
// whose buffer is full misses the event. Safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel func unregisters and closes the channel; it is
// idempotent.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Emit delivers the event to all current subscribers without blocking.
func (b *Bus) Emit(name string, payload any) {
	e := Event{Name: name, OccurredAt: time.Now(), Payload: payload}
	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is behind; drop rather than stall the emitter.
		}
	}
	b.mu.Unlock()
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
