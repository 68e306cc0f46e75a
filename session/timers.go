package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Timers arms the session warning/expiry schedule as two independent
// one-shot timers. Cancelling one never implicitly cancels the other; both
// are explicitly stopped on teardown. All rearm paths cancel-then-schedule
// so stale configuration can never fire.
//
// Timers knows nothing about credential refresh; its schedule and the
// refresh engine's are independent.
type Timers struct {
	lock    sync.Mutex
	warning *time.Timer
	expiry  *time.Timer

	onWarning func(expiresAt time.Time)
	onExpiry  func()
	nowTime   func() time.Time
	log       zerolog.Logger
}

// TimersOption defines a function type to modify a Timers instance.
type TimersOption func(*Timers)

// WithTimersNowTime sets the now time function (primarily for testing)
func WithTimersNowTime(nowFunc func() time.Time) TimersOption {
	return func(t *Timers) { t.nowTime = nowFunc }
}

func WithTimersLogger(log zerolog.Logger) TimersOption {
	return func(t *Timers) { t.log = log }
}

// NewTimers creates a Timers firing onWarning at the warning instant (with
// the computed expiry instant) and onExpiry at session expiry.
func NewTimers(onWarning func(expiresAt time.Time), onExpiry func(), options ...TimersOption) *Timers {
	t := &Timers{
		onWarning: onWarning,
		onExpiry:  onExpiry,
		nowTime:   time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Start cancels any armed timers and arms warning and expiry one-shots from
// now. A WarningTime >= SessionTimeout makes the warning delay non-positive
// and the warning fires immediately; accepted caller configuration.
func (t *Timers) Start(cfg Config) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.stopLocked()

	now := t.nowTime()
	expiresAt := CalculateExpiryTime(cfg, now)

	t.warning = time.AfterFunc(calculateWarningTime(cfg, now).Sub(now), func() {
		t.onWarning(expiresAt)
	})
	t.expiry = time.AfterFunc(expiresAt.Sub(now), t.onExpiry)

	t.log.Debug().Time("expiresAt", expiresAt).Msg("session timers armed")
}

// Reset cancels and rearms against cfg.
func (t *Timers) Reset(cfg Config) {
	t.Start(cfg)
}

// Stop cancels both timers.
func (t *Timers) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stopLocked()
}

func (t *Timers) stopLocked() {
	if t.warning != nil {
		t.warning.Stop()
		t.warning = nil
	}
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
}
