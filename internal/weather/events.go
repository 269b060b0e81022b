package weather

import (
	"log"
	"sync"
)

// EventLog is an Events implementation that writes every event to the
// process log and keeps a bounded history of recent status messages for
// the HTTP status surface.
type EventLog struct {
	mu       sync.Mutex
	capacity int
	messages []string
	lastDate string
}

// NewEventLog creates an EventLog retaining up to capacity messages.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 50
	}
	return &EventLog{capacity: capacity}
}

// StatusUpdate implements Events.
func (e *EventLog) StatusUpdate(message string) {
	log.Printf("status: %s", message)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, message)
	if len(e.messages) > e.capacity {
		e.messages = e.messages[len(e.messages)-e.capacity:]
	}
}

// DataReceived implements Events.
func (e *EventLog) DataReceived(date string) {
	log.Printf("status: data received for %s", date)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastDate = date
}

// Recent returns the retained status messages, oldest first.
func (e *EventLog) Recent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.messages))
	copy(out, e.messages)
	return out
}

// LastReceived returns the most recent date a batch was ingested for, or
// an empty string if none has arrived yet.
func (e *EventLog) LastReceived() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDate
}
