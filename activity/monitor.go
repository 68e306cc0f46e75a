package activity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultThrottleWindow = 30 * time.Second
	defaultDebounce       = 1 * time.Second
)

// Monitor coalesces raw user interaction signals into bounded activity
// callbacks. The host application feeds every raw event (key press, pointer
// move, request, ...) through Record; subscribers receive at most one
// callback per throttle window, delivered once a short debounce settles, so
// callback frequency is bounded regardless of event volume.
//
// Monitor has no knowledge of sessions. Its only domain state is the
// last-activity timestamp.
type Monitor struct {
	mu           sync.Mutex
	started      bool
	lastActivity time.Time
	lastDispatch time.Time
	pending      bool
	pendingAt    time.Time
	debounce     *time.Timer
	callbacks    map[int]func(time.Time)
	nextID       int

	throttleWindow time.Duration
	settleTime     time.Duration
	nowTime        func() time.Time
	log            zerolog.Logger
}

// Option defines a function type to modify a Monitor instance.
type Option func(*Monitor)

// WithThrottleWindow sets the minimum gap between dispatched activity signals.
func WithThrottleWindow(d time.Duration) Option {
	return func(m *Monitor) { m.throttleWindow = d }
}

// WithDebounce sets the settle time used to collapse bursts of raw events.
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) { m.settleTime = d }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Monitor) { m.nowTime = nowFunc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

func New(options ...Option) *Monitor {
	m := &Monitor{
		callbacks:      make(map[int]func(time.Time)),
		throttleWindow: defaultThrottleWindow,
		settleTime:     defaultDebounce,
		nowTime:        time.Now,
		log:            zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Start begins accepting raw events. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

// Stop discards any pending dispatch and ignores further raw events until
// the next Start. Registered callbacks are kept.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	m.pending = false
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
}

// OnActivity registers a callback invoked with the coalesced activity
// timestamp. The returned function unsubscribes it.
func (m *Monitor) OnActivity(cb func(at time.Time)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.callbacks[id] = cb

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.callbacks, id)
	}
}

// Record ingests one raw interaction event. Always cheap: it updates the
// last-activity timestamp and at most arms one timer.
func (m *Monitor) Record() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}

	now := m.nowTime()
	m.lastActivity = now

	// Rate limit: at most one dispatched signal per throttle window.
	if !m.lastDispatch.IsZero() && now.Sub(m.lastDispatch) < m.throttleWindow {
		return
	}

	// A dispatch is already settling; the burst collapses into it.
	if m.pending {
		m.pendingAt = now
		return
	}

	m.pending = true
	m.pendingAt = now
	m.debounce = time.AfterFunc(m.settleTime, m.flush)
}

func (m *Monitor) flush() {
	m.mu.Lock()
	if !m.started || !m.pending {
		m.mu.Unlock()
		return
	}
	m.pending = false
	at := m.pendingAt
	m.lastDispatch = at

	callbacks := make([]func(time.Time), 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		m.invoke(cb, at)
	}
}

// invoke runs one subscriber callback, swallowing panics so a misbehaving
// subscriber cannot break activity tracking.
func (m *Monitor) invoke(cb func(time.Time), at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn().Interface("panic", r).Msg("activity callback panicked")
		}
	}()
	cb(at)
}

// IsUserActive reports whether the last raw activity is within threshold.
func (m *Monitor) IsUserActive(threshold time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastActivity.IsZero() {
		return false
	}
	return m.nowTime().Sub(m.lastActivity) <= threshold
}

// LastActivity returns the time of the last raw activity (zero if none).
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}
