package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-manager/activity"
	"github.com/jrsteele09/go-session-manager/credential"
	"github.com/jrsteele09/go-session-manager/credential/refresh"
	"github.com/jrsteele09/go-session-manager/internal/config"
	"github.com/jrsteele09/go-session-manager/internal/utils"
	"github.com/jrsteele09/go-session-manager/storage"
)

// Profile identifies the signed-in user. The controller treats it as opaque
// display data.
type Profile struct {
	UserID   string
	Email    string
	Username string
}

// Deps holds the collaborator dependencies for the Controller.
type Deps struct {
	Provider      credential.Provider  // External auth service
	Store         storage.Store        // Persisted key/value store
	RefreshConfig config.RefreshConfig // Tuning for the refresh engine
}

// Controller is the session lifecycle state machine. It composes the
// activity monitor, session timers, restoration classifier and credential
// refresh engine into a single answer to "is this user currently allowed to
// use the app", and publishes typed lifecycle events for the hosting
// application to react to.
//
// One Controller instance is constructed per application; it owns its
// collaborators and there is no ambient global access. State transitions
// are atomic under the controller lock, and the lock is never held across a
// credential-fetch suspension: the Extending state is entered synchronously
// before the refresh engine is awaited, which is what makes near-
// simultaneous extension attempts collapse to one provider call.
type Controller struct {
	deps      Deps
	cfg       Config
	monitor   *activity.Monitor
	timers    *Timers
	engine    *refresh.Engine
	metaStore *MetadataStore
	events    *publisher
	nowTime   func() time.Time
	log       zerolog.Logger

	lock             sync.Mutex
	state            State
	rememberMe       bool
	profile          *Profile
	sessionStartTime *time.Time
	lastExtension    *time.Time
	metadata         *Metadata

	unsubscribeActivity func()
}

// Option defines a function type to modify the Controller instance.
type Option func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) { c.nowTime = nowFunc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithActivityMonitor replaces the default activity monitor, e.g. to tune
// throttle/debounce windows.
func WithActivityMonitor(monitor *activity.Monitor) Option {
	return func(c *Controller) { c.monitor = monitor }
}

// New initializes a Controller with required dependencies. The controller
// starts in StateExpired; a session begins with SignIn/StartSession or
// RestoreSession.
func New(cfg Config, deps Deps, options ...Option) (*Controller, error) {
	if deps.Provider == nil {
		return nil, errors.Wrap(MissingDepsErr, "[session.New] Provider is required")
	}
	if deps.Store == nil {
		return nil, errors.Wrap(MissingDepsErr, "[session.New] Store is required")
	}
	if deps.RefreshConfig == nil {
		return nil, errors.Wrap(MissingDepsErr, "[session.New] RefreshConfig is required")
	}

	controller := &Controller{
		deps:    deps,
		cfg:     cfg,
		nowTime: time.Now,
		log:     zerolog.Nop(),
		state:   StateExpired,
	}
	for _, opt := range options {
		opt(controller)
	}

	controller.metaStore = NewMetadataStore(deps.Store, WithMetadataLogger(controller.log))
	controller.events = newPublisher(controller.log)

	if controller.monitor == nil {
		controller.monitor = activity.New(activity.WithLogger(controller.log))
	}
	controller.unsubscribeActivity = controller.monitor.OnActivity(controller.handleActivity)

	controller.timers = NewTimers(
		controller.handleWarningFired,
		controller.handleExpiryFired,
		WithTimersNowTime(controller.nowTime),
		WithTimersLogger(controller.log),
	)

	engine, err := refresh.New(deps.Provider, deps.Store, deps.RefreshConfig,
		refresh.WithLogger(controller.log),
		refresh.WithRefreshedHook(controller.handleRefreshed),
		refresh.WithFailureHook(controller.handleRefreshFailure),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[session.New] refresh engine")
	}
	controller.engine = engine

	return controller, nil
}

// Close tears the controller down: all timers are stopped and the activity
// subscription is released. The session itself is not expired; callers
// wanting a graceful sign-out use SignOut first.
func (c *Controller) Close() {
	c.timers.Stop()
	c.engine.StopTimer()
	c.monitor.Stop()
	c.unsubscribeActivity()
}

// Subscribe registers a lifecycle event callback and returns its
// unsubscribe function. Events are delivered at least once each; there is
// no replay of past events.
func (c *Controller) Subscribe(cb func(Event)) func() {
	return c.events.subscribe(cb)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Config returns the current session configuration.
func (c *Controller) Config() Config {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cfg
}

// StartTime returns when the current session started; false when expired.
func (c *Controller) StartTime() (time.Time, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.sessionStartTime == nil {
		return time.Time{}, false
	}
	return *c.sessionStartTime, true
}

// ExpiresAt returns the session's scheduled expiry; false when expired.
func (c *Controller) ExpiresAt() (time.Time, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.metadata == nil {
		return time.Time{}, false
	}
	return c.metadata.ExpirationTime, true
}

// CurrentProfile returns the signed-in profile; false when expired or when
// the session was restored from metadata (profiles are not persisted).
func (c *Controller) CurrentProfile() (Profile, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.profile == nil {
		return Profile{}, false
	}
	return *c.profile, true
}

// RecordActivity feeds one raw user interaction signal into the activity
// monitor. The host calls this from its input/event handling.
func (c *Controller) RecordActivity() {
	c.monitor.Record()
}

// SignIn authenticates against the provider and starts a session for the
// resulting credential.
func (c *Controller) SignIn(ctx context.Context, username, password string, rememberMe bool) error {
	record, err := c.deps.Provider.SignIn(ctx, username, password)
	if err != nil {
		return errors.Wrap(err, SignInFailedErr.Error())
	}
	c.engine.SetRecord(record)

	if err := c.StartSession(Profile{Username: username}, rememberMe); err != nil {
		return errors.Wrap(err, "[Controller.SignIn] start session")
	}
	return nil
}

// StartSession begins a fresh session. Only valid from StateExpired; a
// second login requires the first session to be expired or signed out.
func (c *Controller) StartSession(profile Profile, rememberMe bool) error {
	c.lock.Lock()
	if c.state != StateExpired {
		c.lock.Unlock()
		return SessionActiveErr
	}

	now := c.nowTime()
	effective := c.cfg.withRememberMe(rememberMe)

	c.state = StateActive
	c.rememberMe = rememberMe
	c.profile = &profile
	c.sessionStartTime = utils.Ptr(now)
	c.lastExtension = utils.Ptr(now)
	c.metadata = &Metadata{
		LoginTime:      now,
		LastActivity:   now,
		ExpirationTime: CalculateExpiryTime(effective, now),
		RememberMe:     rememberMe,
		DeviceID:       uuid.New().String(),
		SessionID:      uuid.New().String(),
	}
	md := *c.metadata
	c.lock.Unlock()

	c.saveMetadata(&md)
	c.monitor.Start()
	c.timers.Start(effective)
	c.engine.StartTimer()

	c.log.Info().Str("sessionID", md.SessionID).Bool("rememberMe", rememberMe).Msg("session started")
	c.publish(EventStarted, StartedData{
		SessionID:  md.SessionID,
		StartedAt:  now,
		ExpiresAt:  md.ExpirationTime,
		RememberMe: rememberMe,
	})
	return nil
}

// ExtendSession renews the credential and reschedules the session's
// warning/expiry timers. Valid from StateActive and StateWarning only; a
// call while another extension is in flight fails fast with false. On
// refresh failure the session expires (non-graceful) and false is returned.
func (c *Controller) ExtendSession(ctx context.Context) bool {
	c.lock.Lock()
	if c.state != StateActive && c.state != StateWarning {
		c.lock.Unlock()
		return false
	}
	// Entering Extending before awaiting the refresh is what blocks
	// concurrent extension attempts.
	c.state = StateExtending
	effective := c.cfg.withRememberMe(c.rememberMe)
	c.lock.Unlock()

	ok := c.refreshForExtension(ctx)

	c.lock.Lock()
	if c.state != StateExtending {
		// The expiry timer fired during the refresh suspension; the
		// session is already gone and must not be revived. A late
		// successful refresh re-armed the schedule and re-persisted the
		// credential, so undo both.
		c.lock.Unlock()
		if ok {
			c.engine.StopTimer()
			c.engine.ClearRecord()
		}
		return false
	}
	if !ok {
		c.lock.Unlock()
		c.expire(false)
		return false
	}
	now := c.nowTime()
	c.state = StateActive
	c.lastExtension = utils.Ptr(now)
	expiresAt := CalculateExpiryTime(effective, now)
	var md *Metadata
	if c.metadata != nil {
		c.metadata.LastActivity = now
		c.metadata.ExpirationTime = expiresAt
		snapshot := *c.metadata
		md = &snapshot
	}
	c.lock.Unlock()

	if md != nil {
		c.saveMetadata(md)
	}
	c.timers.Reset(effective)

	c.log.Info().Time("expiresAt", expiresAt).Msg("session extended")
	c.publish(EventExtended, ExtendedData{ExtendedAt: now, ExpiresAt: expiresAt})
	return true
}

// refreshForExtension awaits the refresh engine, converting a panic from
// the provider boundary into a failed extension.
func (c *Controller) refreshForExtension(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("credential refresh panicked during extension")
			ok = false
		}
	}()
	return c.engine.RefreshNow(ctx)
}

// ExpireSession ends the session from any state. graceful marks a
// user-initiated sign-out as opposed to a timer- or failure-driven expiry.
// Idempotent: expiring an expired session is a safe no-op apart from the
// duplicate event.
func (c *Controller) ExpireSession(graceful bool) {
	c.expire(graceful)
}

// SignOut invalidates the credential with the provider (best effort) and
// expires the session gracefully.
func (c *Controller) SignOut(ctx context.Context) {
	if err := c.deps.Provider.SignOut(ctx); err != nil {
		c.log.Warn().Err(err).Msg("provider sign-out failed")
	}
	c.expire(true)
}

func (c *Controller) expire(graceful bool) {
	c.lock.Lock()
	now := c.nowTime()
	var duration time.Duration
	if c.sessionStartTime != nil {
		duration = now.Sub(*c.sessionStartTime)
	}
	c.state = StateExpired
	c.profile = nil
	c.sessionStartTime = nil
	c.lastExtension = nil
	c.metadata = nil
	c.lock.Unlock()

	// The warning/expiry timers and the refresh timer are independent
	// schedules; each is stopped explicitly.
	c.timers.Stop()
	c.engine.StopTimer()
	c.monitor.Stop()
	c.engine.ClearRecord()
	if err := c.metaStore.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear session metadata")
	}

	c.log.Info().Bool("graceful", graceful).Dur("duration", duration).Msg("session expired")
	c.publish(EventExpired, ExpiredData{Graceful: graceful, Duration: duration})
}

// RestoreSession reconstructs a session from persisted metadata after a
// process restart.
func (c *Controller) RestoreSession(md *Metadata) error {
	restoration := DetermineRestorationStatus(md, c.Config(), c.nowTime())

	if restoration.Status == StateExpired {
		c.expire(false)
		return RestoreExpiredErr
	}

	c.lock.Lock()
	c.state = restoration.Status
	c.rememberMe = md.RememberMe
	c.sessionStartTime = utils.Ptr(md.LoginTime)
	c.lastExtension = utils.Ptr(md.LastActivity)
	metadata := *md
	c.metadata = &metadata
	effective := c.cfg.withRememberMe(md.RememberMe)
	c.lock.Unlock()

	c.monitor.Start()
	if restoration.ShouldStartTimers {
		c.timers.Start(effective)
	}
	if restoration.ShouldShowWarning {
		c.publish(EventWarning, WarningData{ExpiresAt: md.ExpirationTime})
	}

	if record, err := c.engine.LoadRecord(); err == nil && record != nil {
		c.engine.SetRecord(record)
	}
	c.engine.StartTimer()

	c.log.Info().Str("sessionID", md.SessionID).Stringer("state", restoration.Status).Msg("session restored")
	return nil
}

// Restore loads persisted metadata from the store and restores from it.
func (c *Controller) Restore() error {
	md, err := c.metaStore.Load()
	if err != nil {
		return errors.Wrap(err, "[Controller.Restore] load metadata")
	}
	if md == nil {
		return NoSessionErr
	}
	return c.RestoreSession(md)
}

// Configure merges a partial configuration update; when a session is live
// the warning/expiry timers are recomputed against the new values.
func (c *Controller) Configure(update ConfigUpdate) {
	c.lock.Lock()
	c.cfg = c.cfg.apply(update)
	live := c.state == StateActive || c.state == StateWarning
	effective := c.cfg.withRememberMe(c.rememberMe)
	c.lock.Unlock()

	if live {
		c.timers.Reset(effective)
	}
}

// handleWarningFired is driven by the session timer. Active -> Warning
// only; firing while already Warning or Expired is a no-op.
func (c *Controller) handleWarningFired(expiresAt time.Time) {
	c.lock.Lock()
	if c.state != StateActive {
		c.lock.Unlock()
		return
	}
	c.state = StateWarning
	c.lock.Unlock()

	c.log.Info().Time("expiresAt", expiresAt).Msg("session expiry warning")
	c.publish(EventWarning, WarningData{ExpiresAt: expiresAt})
}

// handleExpiryFired is driven by the session timer: an involuntary expiry.
func (c *Controller) handleExpiryFired() {
	c.expire(false)
}

// handleActivity is driven by the activity monitor's coalesced callback.
// Last-activity bookkeeping always happens; when extend-on-activity is
// enabled and the session is in its warning window, the activity triggers
// an asynchronous extension whose outcome flows through the normal state
// machine.
func (c *Controller) handleActivity(at time.Time) {
	c.lock.Lock()
	if c.state == StateExpired {
		c.lock.Unlock()
		return
	}
	var md *Metadata
	if c.metadata != nil {
		c.metadata.LastActivity = at
		snapshot := *c.metadata
		md = &snapshot
	}
	shouldExtend := c.cfg.ExtendOnActivity && c.state == StateWarning
	c.lock.Unlock()

	if md != nil {
		c.saveMetadata(md)
	}
	c.publish(EventActivityDetected, ActivityData{At: at})

	if shouldExtend {
		go c.ExtendSession(context.Background())
	}
}

// handleRefreshed is the refresh engine's success hook.
func (c *Controller) handleRefreshed(record *credential.Record) {
	c.publish(EventTokenRefreshed, RefreshedData{ExpiresAt: record.ExpiresAt})
}

// handleRefreshFailure is the refresh engine's terminal-failure hook. A
// failure during an extension is reported by ExtendSession itself; a
// failure of the background schedule forces an immediate sign-out, since a
// session without a refreshable credential cannot continue.
func (c *Controller) handleRefreshFailure(err error) {
	c.publish(EventTokenRefreshFailed, RefreshFailedData{Reason: err.Error()})

	c.lock.Lock()
	extending := c.state == StateExtending
	expired := c.state == StateExpired
	c.lock.Unlock()

	if extending || expired {
		return
	}
	c.expire(false)
}

func (c *Controller) saveMetadata(md *Metadata) {
	if err := c.metaStore.Save(md); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist session metadata")
	}
}

func (c *Controller) publish(eventType EventType, data any) {
	c.events.publish(Event{Type: eventType, Timestamp: c.nowTime(), Data: data})
}
