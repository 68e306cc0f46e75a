package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-manager/session"
)

func restoreConfig() session.Config {
	return session.Config{
		SessionTimeout:    60 * time.Minute,
		WarningTime:       10 * time.Minute,
		RememberMeEnabled: true,
		RememberMeTimeout: 90 * 24 * time.Hour,
	}
}

func TestDetermineRestorationStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := restoreConfig()

	tests := []struct {
		name string
		md   *session.Metadata
		want session.Restoration
	}{
		{
			name: "nil metadata is expired",
			md:   nil,
			want: session.Restoration{Status: session.StateExpired},
		},
		{
			name: "explicit expiration passed",
			md: &session.Metadata{
				LoginTime:      now.Add(-5 * time.Minute),
				ExpirationTime: now.Add(-time.Minute),
			},
			want: session.Restoration{Status: session.StateExpired},
		},
		{
			name: "age beyond timeout",
			md: &session.Metadata{
				LoginTime:      now.Add(-2 * time.Hour),
				ExpirationTime: now.Add(time.Hour), // stale field, age rules anyway
			},
			want: session.Restoration{Status: session.StateExpired},
		},
		{
			name: "missing expiration falls through to age check",
			md: &session.Metadata{
				LoginTime: now.Add(-61 * time.Minute),
			},
			want: session.Restoration{Status: session.StateExpired},
		},
		{
			name: "inside warning window",
			md: &session.Metadata{
				LoginTime:      now.Add(-55 * time.Minute),
				ExpirationTime: now.Add(5 * time.Minute),
			},
			want: session.Restoration{Status: session.StateWarning, ShouldShowWarning: true},
		},
		{
			name: "active",
			md: &session.Metadata{
				LoginTime:      now.Add(-5 * time.Minute),
				ExpirationTime: now.Add(55 * time.Minute),
			},
			want: session.Restoration{Status: session.StateActive, ShouldStartTimers: true},
		},
		{
			name: "remember-me session survives the normal timeout",
			md: &session.Metadata{
				LoginTime:      now.Add(-48 * time.Hour),
				ExpirationTime: now.Add(88 * 24 * time.Hour),
				RememberMe:     true,
			},
			want: session.Restoration{Status: session.StateActive, ShouldStartTimers: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, session.DetermineRestorationStatus(tc.md, cfg, now))
		})
	}
}

func TestDetermineRestorationStatusIsDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := restoreConfig()
	md := &session.Metadata{
		LoginTime:      now.Add(-30 * time.Minute),
		ExpirationTime: now.Add(30 * time.Minute),
	}

	first := session.DetermineRestorationStatus(md, cfg, now)
	second := session.DetermineRestorationStatus(md, cfg, now)
	require.Equal(t, first, second)
}

func TestDetermineRestorationStatusIgnoresRememberMeWhenDisabled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := restoreConfig()
	cfg.RememberMeEnabled = false

	md := &session.Metadata{
		LoginTime:  now.Add(-48 * time.Hour),
		RememberMe: true,
	}
	require.Equal(t, session.StateExpired, session.DetermineRestorationStatus(md, cfg, now).Status)
}
