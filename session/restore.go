package session

import "time"

// Restoration is the side-effect-free classification of a resumed session.
type Restoration struct {
	Status            State
	ShouldStartTimers bool
	ShouldShowWarning bool
}

// DetermineRestorationStatus classifies persisted session metadata against
// the configuration at instant now. Pure: no I/O, no mutation, deterministic
// for identical inputs.
//
// A zero ExpirationTime is not trusted as "never expires"; classification
// falls through to the age-based timeout check instead.
func DetermineRestorationStatus(md *Metadata, cfg Config, now time.Time) Restoration {
	expired := Restoration{Status: StateExpired}

	if md == nil {
		return expired
	}

	if !md.ExpirationTime.IsZero() && !now.Before(md.ExpirationTime) {
		return expired
	}

	timeout := cfg.withRememberMe(md.RememberMe).SessionTimeout
	sessionAge := now.Sub(md.LoginTime)

	if sessionAge >= timeout {
		return expired
	}

	if sessionAge >= timeout-cfg.WarningTime {
		// Already past the warning threshold: no fresh timers, the warning
		// is surfaced directly.
		return Restoration{Status: StateWarning, ShouldShowWarning: true}
	}

	return Restoration{Status: StateActive, ShouldStartTimers: true}
}
