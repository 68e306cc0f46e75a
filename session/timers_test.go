package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-manager/session"
)

func TestTimersFireWarningThenExpiry(t *testing.T) {
	warnings := make(chan time.Time, 1)
	expiries := make(chan struct{}, 1)

	timers := session.NewTimers(
		func(expiresAt time.Time) { warnings <- expiresAt },
		func() { expiries <- struct{}{} },
	)
	defer timers.Stop()

	started := time.Now()
	timers.Start(session.Config{
		SessionTimeout: 100 * time.Millisecond,
		WarningTime:    60 * time.Millisecond,
	})

	select {
	case expiresAt := <-warnings:
		require.WithinDuration(t, started.Add(100*time.Millisecond), expiresAt, 20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("warning timer did not fire")
	}
	require.Empty(t, expiries, "expiry must not fire before the warning window ends")

	select {
	case <-expiries:
	case <-time.After(time.Second):
		t.Fatal("expiry timer did not fire")
	}
}

func TestWarningFiresImmediatelyWhenWarningExceedsTimeout(t *testing.T) {
	warnings := make(chan time.Time, 1)

	timers := session.NewTimers(
		func(expiresAt time.Time) { warnings <- expiresAt },
		func() {},
	)
	defer timers.Stop()

	// Caller configuration error, accepted as-is: the warning delay is
	// negative so the warning fires straight away.
	timers.Start(session.Config{
		SessionTimeout: 50 * time.Millisecond,
		WarningTime:    200 * time.Millisecond,
	})

	select {
	case <-warnings:
	case <-time.After(time.Second):
		t.Fatal("immediate warning did not fire")
	}
}

func TestStopCancelsBothTimers(t *testing.T) {
	fired := make(chan string, 2)

	timers := session.NewTimers(
		func(time.Time) { fired <- "warning" },
		func() { fired <- "expiry" },
	)

	timers.Start(session.Config{
		SessionTimeout: 50 * time.Millisecond,
		WarningTime:    25 * time.Millisecond,
	})
	timers.Stop()

	select {
	case which := <-fired:
		t.Fatalf("%s timer fired after Stop", which)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestResetRearmsAgainstNewConfig(t *testing.T) {
	expiries := make(chan struct{}, 2)

	timers := session.NewTimers(
		func(time.Time) {},
		func() { expiries <- struct{}{} },
	)
	defer timers.Stop()

	timers.Start(session.Config{SessionTimeout: 40 * time.Millisecond, WarningTime: 10 * time.Millisecond})
	timers.Reset(session.Config{SessionTimeout: 300 * time.Millisecond, WarningTime: 10 * time.Millisecond})

	// The original 40ms schedule was cancelled by the reset.
	select {
	case <-expiries:
		t.Fatal("stale expiry fired")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-expiries:
	case <-time.After(time.Second):
		t.Fatal("rescheduled expiry did not fire")
	}
}

func TestCalculateExpiryTimeIsPure(t *testing.T) {
	cfg := session.Config{SessionTimeout: time.Hour}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := session.CalculateExpiryTime(cfg, from)
	second := session.CalculateExpiryTime(cfg, from)
	require.True(t, first.Equal(second))
	require.True(t, first.Equal(from.Add(time.Hour)))
}
