package config

import "time"

type RefreshConfig interface {
	GetBufferTime() time.Duration
	GetMaxRetryAttempts() int
	GetRetryDelay() time.Duration
	GetMaxBackoffDelay() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetBufferTime is the lead time before credential expiry at which a
// proactive refresh is scheduled.
func (Refresh) GetBufferTime() time.Duration {
	return 5 * time.Minute
}

func (Refresh) GetMaxRetryAttempts() int {
	return GetEnvInt("REFRESH_MAX_RETRY_ATTEMPTS", 3)
}

func (Refresh) GetRetryDelay() time.Duration {
	return 1 * time.Second
}

func (Refresh) GetMaxBackoffDelay() time.Duration {
	return 30 * time.Second
}
