package config

import "time"

type SessionConfig interface {
	GetSessionTimeout() time.Duration
	GetWarningTime() time.Duration
	GetExtendOnActivity() bool
	GetRememberMeEnabled() bool
	GetRememberMeTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTimeout() time.Duration {
	return GetEnvMinutes("SESSION_TIMEOUT_MINUTES", 60*time.Minute)
}

func (Session) GetWarningTime() time.Duration {
	return GetEnvMinutes("SESSION_WARNING_MINUTES", 10*time.Minute)
}

func (Session) GetExtendOnActivity() bool {
	return GetEnvBool("SESSION_EXTEND_ON_ACTIVITY", true)
}

func (Session) GetRememberMeEnabled() bool {
	return GetEnvBool("SESSION_REMEMBER_ME_ENABLED", true)
}

func (Session) GetRememberMeTimeout() time.Duration {
	return GetEnvMinutes("SESSION_REMEMBER_ME_MINUTES", 90*24*time.Hour) // 90 days
}
