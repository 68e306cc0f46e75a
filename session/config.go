package session

import (
	"time"

	"github.com/jrsteele09/go-session-manager/internal/config"
)

// Config is the session tuning record supplied by the hosting application.
// Immutable per session except via Controller.Configure, which recomputes
// live timers.
type Config struct {
	SessionTimeout    time.Duration
	WarningTime       time.Duration
	ExtendOnActivity  bool
	RememberMeEnabled bool
	RememberMeTimeout time.Duration
}

// DefaultConfig builds a Config from environment-derived defaults.
func DefaultConfig() Config {
	return FromConfig(config.New())
}

// FromConfig builds a Config from a config.SessionConfig source.
func FromConfig(cfg config.SessionConfig) Config {
	return Config{
		SessionTimeout:    cfg.GetSessionTimeout(),
		WarningTime:       cfg.GetWarningTime(),
		ExtendOnActivity:  cfg.GetExtendOnActivity(),
		RememberMeEnabled: cfg.GetRememberMeEnabled(),
		RememberMeTimeout: cfg.GetRememberMeTimeout(),
	}
}

// ConfigUpdate is a partial reconfiguration; nil fields keep their current
// value.
type ConfigUpdate struct {
	SessionTimeout    *time.Duration
	WarningTime       *time.Duration
	ExtendOnActivity  *bool
	RememberMeEnabled *bool
	RememberMeTimeout *time.Duration
}

func (c Config) apply(update ConfigUpdate) Config {
	if update.SessionTimeout != nil {
		c.SessionTimeout = *update.SessionTimeout
	}
	if update.WarningTime != nil {
		c.WarningTime = *update.WarningTime
	}
	if update.ExtendOnActivity != nil {
		c.ExtendOnActivity = *update.ExtendOnActivity
	}
	if update.RememberMeEnabled != nil {
		c.RememberMeEnabled = *update.RememberMeEnabled
	}
	if update.RememberMeTimeout != nil {
		c.RememberMeTimeout = *update.RememberMeTimeout
	}
	return c
}

// withRememberMe returns the config with the remember-me timeout override
// applied when requested and enabled.
func (c Config) withRememberMe(rememberMe bool) Config {
	if rememberMe && c.RememberMeEnabled && c.RememberMeTimeout > 0 {
		c.SessionTimeout = c.RememberMeTimeout
	}
	return c
}

// CalculateExpiryTime returns the session expiry instant for a session
// started (or extended) at from. Pure; used for live scheduling and display.
func CalculateExpiryTime(cfg Config, from time.Time) time.Time {
	return from.Add(cfg.SessionTimeout)
}

// calculateWarningTime returns the instant at which the expiry warning fires.
// When WarningTime >= SessionTimeout this is not in the future and the
// warning fires immediately; that is accepted caller configuration, not
// corrected here.
func calculateWarningTime(cfg Config, from time.Time) time.Time {
	return from.Add(cfg.SessionTimeout - cfg.WarningTime)
}
