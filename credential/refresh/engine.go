package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-manager/credential"
	"github.com/jrsteele09/go-session-manager/internal/config"
	"github.com/jrsteele09/go-session-manager/storage"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// attempt is one in-flight refresh shared by all concurrent callers.
// ok is written before done is closed.
type attempt struct {
	done chan struct{}
	ok   bool
}

// Engine owns the current credential record and its expiry: it schedules a
// proactive refresh ahead of expiry, executes refreshes with bounded
// exponential-backoff retries, and collapses concurrent refresh requests
// into a single provider call.
//
// The engine is the sole mutator of the record and of the credential keys in
// the store; other components read expiry through the ExpiresAt accessor.
type Engine struct {
	provider credential.Provider
	store    storage.Store
	config   config.RefreshConfig
	log      zerolog.Logger

	lock     sync.Mutex
	record   *credential.Record
	timer    *time.Timer
	inFlight *attempt

	onRefreshed func(*credential.Record)
	onFailure   func(error)
}

// Option defines a function type to modify an Engine instance.
type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRefreshedHook registers a callback invoked after every successful
// refresh with the new record.
func WithRefreshedHook(hook func(*credential.Record)) Option {
	return func(e *Engine) { e.onRefreshed = hook }
}

// WithFailureHook registers a callback invoked on terminal refresh failure,
// after the credential store has been cleared.
func WithFailureHook(hook func(error)) Option {
	return func(e *Engine) { e.onFailure = hook }
}

// New creates a refresh engine. provider, store and cfg are required.
func New(provider credential.Provider, store storage.Store, cfg config.RefreshConfig, options ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("[refresh.New] provider is required")
	}
	if store == nil {
		return nil, errors.New("[refresh.New] store is required")
	}
	if cfg == nil {
		return nil, errors.New("[refresh.New] config is required")
	}

	engine := &Engine{
		provider: provider,
		store:    store,
		config:   cfg,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(engine)
	}
	return engine, nil
}

// SetRecord installs a credential obtained outside the engine (sign-in,
// restored session) and persists it.
func (e *Engine) SetRecord(record *credential.Record) {
	e.lock.Lock()
	e.record = record
	e.lock.Unlock()

	if record != nil {
		e.persist(record)
	}
}

// ClearRecord drops the in-memory record and removes credential material
// from the store.
func (e *Engine) ClearRecord() {
	e.lock.Lock()
	e.record = nil
	e.lock.Unlock()

	e.clearStore()
}

// ExpiresAt returns the current credential's expiry instant. The second
// return is false when no credential is held.
func (e *Engine) ExpiresAt() (time.Time, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.record == nil {
		return time.Time{}, false
	}
	return e.record.ExpiresAt, true
}

// IsNearExpiry reports whether no credential is present or the remaining
// lifetime is within the refresh buffer.
func (e *Engine) IsNearExpiry() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.record == nil {
		return true
	}
	return e.record.TimeUntilExpiry(NowTimeFunc()) <= e.config.GetBufferTime()
}

// StartTimer arms the proactive refresh schedule: any existing scheduled
// refresh is cancelled, and a one-shot timer is armed to fire bufferTime
// before expiry. If the credential is already within the buffer the refresh
// runs immediately (asynchronously).
func (e *Engine) StartTimer() {
	e.lock.Lock()

	e.stopTimerLocked()

	if e.record == nil {
		e.lock.Unlock()
		e.log.Debug().Msg("refresh timer not armed: no credential")
		return
	}

	delay := e.record.TimeUntilExpiry(NowTimeFunc()) - e.config.GetBufferTime()
	if delay <= 0 {
		e.lock.Unlock()
		e.log.Debug().Msg("credential near expiry, refreshing now")
		go e.RefreshNow(context.Background())
		return
	}

	e.timer = time.AfterFunc(delay, func() {
		e.RefreshNow(context.Background())
	})
	e.lock.Unlock()

	e.log.Debug().Dur("delay", delay).Msg("refresh scheduled")
}

// StopTimer cancels the scheduled refresh. It does not affect an in-flight
// refresh attempt.
func (e *Engine) StopTimer() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.stopTimerLocked()
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// RefreshNow refreshes the credential, retrying transient failures with
// exponential backoff. At most one refresh is in flight at a time: callers
// arriving while one is running block until it completes and share its
// outcome, without a second provider call.
func (e *Engine) RefreshNow(ctx context.Context) bool {
	e.lock.Lock()
	if current := e.inFlight; current != nil {
		e.lock.Unlock()
		select {
		case <-current.done:
			return current.ok
		case <-ctx.Done():
			return false
		}
	}
	this := &attempt{done: make(chan struct{})}
	e.inFlight = this
	e.lock.Unlock()

	ok := e.refreshWithRetry(ctx)

	e.lock.Lock()
	this.ok = ok
	e.inFlight = nil
	e.lock.Unlock()
	close(this.done)

	return ok
}

// refreshWithRetry runs the bounded retry loop. A structurally invalid
// session is terminal immediately; transient failures back off with
// delay = min(retryDelay * 2^attempt, maxBackoffDelay).
func (e *Engine) refreshWithRetry(ctx context.Context) bool {
	maxAttempts := e.config.GetMaxRetryAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attemptNo := 0; attemptNo < maxAttempts; attemptNo++ {
		if attemptNo > 0 {
			if !e.backoff(ctx, attemptNo-1) {
				e.terminalFailure(errors.Wrap(ctx.Err(), "[Engine.RefreshNow] cancelled during backoff"))
				return false
			}
		}

		record, err := e.provider.FetchSession(ctx)
		if err == nil && !record.Valid() {
			err = credential.InvalidCredentialErr
		}
		if err == nil {
			e.adopt(record)
			return true
		}

		if errors.Is(err, credential.InvalidCredentialErr) {
			// Retrying cannot fix a structurally invalid session.
			e.terminalFailure(errors.Wrap(err, "[Engine.RefreshNow] invalid session"))
			return false
		}

		lastErr = err
		e.log.Warn().Err(err).Int("attempt", attemptNo+1).Msg("credential refresh failed")
	}

	e.terminalFailure(errors.Wrapf(lastErr, "[Engine.RefreshNow] retries exhausted after %d attempts", maxAttempts))
	return false
}

// backoff sleeps for the retry delay following failed attempt attemptNo.
// Returns false if the context was cancelled while waiting.
func (e *Engine) backoff(ctx context.Context, attemptNo int) bool {
	delay := e.config.GetRetryDelay() << uint(attemptNo)
	if max := e.config.GetMaxBackoffDelay(); delay > max {
		delay = max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// adopt installs a freshly fetched record, persists it, notifies the
// refreshed hook and re-arms the schedule for the next expiry.
func (e *Engine) adopt(record *credential.Record) {
	e.lock.Lock()
	e.record = record
	e.lock.Unlock()

	e.persist(record)

	e.log.Debug().Time("expiresAt", record.ExpiresAt).Msg("credential refreshed")
	if e.onRefreshed != nil {
		e.onRefreshed(record)
	}

	e.StartTimer()
}

// terminalFailure clears the credential and notifies the failure hook.
func (e *Engine) terminalFailure(err error) {
	e.lock.Lock()
	e.record = nil
	e.lock.Unlock()

	e.clearStore()

	e.log.Error().Err(err).Msg("credential refresh failed terminally")
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

func (e *Engine) persist(record *credential.Record) {
	set := func(key, value string) {
		if err := e.store.Set(key, value); err != nil {
			e.log.Warn().Err(err).Str("key", key).Msg("failed to persist credential key")
		}
	}
	set(storage.KeyAccessToken, record.AccessToken)
	set(storage.KeyIDToken, record.IDToken)
	set(storage.KeyRefreshToken, record.RefreshToken)
	set(storage.KeyTokenExpiry, record.ExpiresAt.Format(time.RFC3339Nano))
}

func (e *Engine) clearStore() {
	for _, key := range []string{storage.KeyAccessToken, storage.KeyIDToken, storage.KeyRefreshToken, storage.KeyTokenExpiry} {
		if err := e.store.Remove(key); err != nil {
			e.log.Warn().Err(err).Str("key", key).Msg("failed to remove credential key")
		}
	}
}

// LoadRecord rebuilds a credential record from the store, for restoring a
// session after a process restart. Returns nil with no error when nothing
// usable is stored.
func (e *Engine) LoadRecord() (*credential.Record, error) {
	get := func(key string) string {
		value, err := e.store.Get(key)
		if err != nil {
			return ""
		}
		return value
	}

	record := &credential.Record{
		AccessToken:  get(storage.KeyAccessToken),
		IDToken:      get(storage.KeyIDToken),
		RefreshToken: get(storage.KeyRefreshToken),
	}
	if !record.Valid() {
		return nil, nil
	}

	expiry, err := e.store.Get(storage.KeyTokenExpiry)
	if err == nil {
		at, parseErr := time.Parse(time.RFC3339Nano, expiry)
		if parseErr != nil {
			return nil, errors.Wrap(parseErr, "[Engine.LoadRecord] stored expiry unparsable")
		}
		record.ExpiresAt = at
	}
	return record, nil
}
