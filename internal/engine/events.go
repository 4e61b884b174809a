package engine

import (
	"sync"
	"time"
)

// Job lifecycle event types published by the worker.
const (
	EventRunning   = "running"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// A job publishes at most two events, so nothing is dropped in practice.
const subscriberBufferSize = 8

// Event is one lifecycle transition of a job.
type Event struct {
	JobID  string    `json:"job_id"`
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Width  int       `json:"width,omitempty"`
	Height int       `json:"height,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// EventBroker fans job events out to subscribers. It is safe for
// concurrent use.
//
// Closed topics are kept as markers so a subscriber arriving after a job
// finished gets a closed channel instead of waiting forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel of events for jobID and an unsubscribe
// function. If the job has already finished the channel is closed.
func (b *EventBroker) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan Event)}
		b.topics[jobID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish delivers ev to every current subscriber of ev.JobID. Events are
// dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.JobID]
	if !ok || t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the event stream for jobID.
func (b *EventBroker) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		b.topics[jobID] = &eventTopic{subs: make(map[int]chan Event), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
