package events

import (
	"sync"
	"time"

	"github.com/jakechorley/cake-orders/pkg/core/model"
)

// EventType represents the kind of change being published
type EventType string

const (
	// EventSubmissionChanged is published after a submission document is written
	EventSubmissionChanged EventType = "submission_changed"
	// EventSubmissionRemovedFromView is published when a transition drops a submission from the displayed view
	EventSubmissionRemovedFromView EventType = "submission_removed_from_view"
	// EventSubmissionAddedToView is published when a transition brings a loaded submission into the displayed view
	EventSubmissionAddedToView EventType = "submission_added_to_view"
	// EventSyncCompleted is published after a fetch-and-reconcile pass
	EventSyncCompleted EventType = "sync_completed"
)

// Event describes one change. Submission is nil when only IDs are known (e.g. store notifications).
type Event struct {
	Type         EventType
	Timestamp    time.Time
	SubmissionID string
	CollectionID string
	Submission   *model.PersistedSubmission
	Source       string
	Detail       map[string]any
}

// Subscriber receives events
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe bus. Each subscriber gets a buffered channel
// drained by its own goroutine; when the buffer is full the event is dropped for that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
	closed      bool
}

// NewBus creates a bus with the given per-subscriber buffer
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for an event type and returns an unsubscribe function
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return func() {}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				// a panicking subscriber must not take the bus down
				defer func() { _ = recover() }()
				fn(event)
			}()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subscribers[eventType]
			for i, subCh := range subs {
				if subCh == ch {
					b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
		})
	}
}

// Publish delivers event to every subscriber of its type without blocking.
// A zero Timestamp is filled with the current time.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels. Later subscriptions receive nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
	b.closed = true
}
