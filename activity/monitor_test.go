package activity_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-manager/activity"
	"github.com/stretchr/testify/require"
)

func TestBurstCoalescesToOneCallback(t *testing.T) {
	m := activity.New(
		activity.WithThrottleWindow(500*time.Millisecond),
		activity.WithDebounce(10*time.Millisecond),
	)
	m.Start()
	defer m.Stop()

	var calls atomic.Int32
	unsubscribe := m.OnActivity(func(time.Time) { calls.Add(1) })
	defer unsubscribe()

	for i := 0; i < 50; i++ {
		m.Record()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Still inside the throttle window: more raw events, no more callbacks.
	for i := 0; i < 50; i++ {
		m.Record()
	}
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestDispatchesAgainAfterThrottleWindow(t *testing.T) {
	m := activity.New(
		activity.WithThrottleWindow(50*time.Millisecond),
		activity.WithDebounce(time.Millisecond),
	)
	m.Start()
	defer m.Stop()

	var calls atomic.Int32
	m.OnActivity(func(time.Time) { calls.Add(1) })

	m.Record()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	m.Record()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestRecordIgnoredWhenStopped(t *testing.T) {
	m := activity.New(activity.WithDebounce(time.Millisecond))

	var calls atomic.Int32
	m.OnActivity(func(time.Time) { calls.Add(1) })

	m.Record() // not started yet
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, calls.Load())
	require.True(t, m.LastActivity().IsZero())

	m.Start()
	m.Stop()
	m.Record()
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, calls.Load())
}

func TestPanickingSubscriberDoesNotBreakOthers(t *testing.T) {
	m := activity.New(
		activity.WithThrottleWindow(10*time.Millisecond),
		activity.WithDebounce(time.Millisecond),
	)
	m.Start()
	defer m.Stop()

	var calls atomic.Int32
	m.OnActivity(func(time.Time) { panic("misbehaving subscriber") })
	m.OnActivity(func(time.Time) { calls.Add(1) })

	m.Record()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestIsUserActive(t *testing.T) {
	now := time.Now()
	m := activity.New(activity.WithNowTime(func() time.Time { return now }))
	m.Start()

	require.False(t, m.IsUserActive(time.Minute))

	m.Record()
	require.True(t, m.IsUserActive(time.Minute))

	now = now.Add(2 * time.Minute)
	require.False(t, m.IsUserActive(time.Minute))
	require.True(t, m.IsUserActive(5*time.Minute))
}
