package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventStarted            EventType = "session.started"
	EventWarning            EventType = "session.warning"
	EventExtended           EventType = "session.extended"
	EventExpired            EventType = "session.expired"
	EventTokenRefreshed     EventType = "session.token_refreshed"
	EventTokenRefreshFailed EventType = "session.token_refresh_failed"
	EventActivityDetected   EventType = "session.activity"
)

// Event is one entry of the append-only lifecycle stream. Consumers are
// transient subscribers; there is no replay to late subscribers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// Typed Event payloads.
type (
	StartedData struct {
		SessionID  string
		StartedAt  time.Time
		ExpiresAt  time.Time
		RememberMe bool
	}
	WarningData struct {
		ExpiresAt time.Time
	}
	ExtendedData struct {
		ExtendedAt time.Time
		ExpiresAt  time.Time
	}
	ExpiredData struct {
		Graceful bool
		Duration time.Duration
	}
	ActivityData struct {
		At time.Time
	}
	RefreshedData struct {
		ExpiresAt time.Time
	}
	RefreshFailedData struct {
		Reason string
	}
)

// publisher fans lifecycle events out to subscriber callbacks. Subscribers
// never mutate controller state directly; a panicking subscriber is isolated.
type publisher struct {
	lock        sync.Mutex
	subscribers map[int]func(Event)
	nextID      int
	log         zerolog.Logger
}

func newPublisher(log zerolog.Logger) *publisher {
	return &publisher{subscribers: make(map[int]func(Event)), log: log}
}

func (p *publisher) subscribe(cb func(Event)) func() {
	p.lock.Lock()
	defer p.lock.Unlock()

	id := p.nextID
	p.nextID++
	p.subscribers[id] = cb

	return func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *publisher) publish(event Event) {
	p.lock.Lock()
	subscribers := make([]func(Event), 0, len(p.subscribers))
	for _, cb := range p.subscribers {
		subscribers = append(subscribers, cb)
	}
	p.lock.Unlock()

	for _, cb := range subscribers {
		p.deliver(cb, event)
	}
}

func (p *publisher) deliver(cb func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn().Interface("panic", r).Str("event", string(event.Type)).Msg("event subscriber panicked")
		}
	}()
	cb(event)
}
