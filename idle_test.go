package studenthub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The scenario runs the production ratios scaled down: 30s timeout with a 5s
// warning window instead of 30 and 5 minutes.
func TestIdleMonitorLifecycle(t *testing.T) {
	base := time.Now()
	current := base
	clock := func() time.Time { return current }

	timeouts := 0
	var warnedRemaining time.Duration
	m := NewIdleMonitor(30*time.Second, 5*time.Second,
		func() { timeouts++ },
		WithIdleClock(clock),
		WithTouchThrottle(0),
		WithWarningHandler(func(remaining time.Duration) { warnedRemaining = remaining }),
	)

	t.Run("active until the warning window opens", func(t *testing.T) {
		current = base.Add(24 * time.Second)
		assert.Equal(t, IdleStateActive, m.check(current))
		assert.Zero(t, warnedRemaining)
	})

	t.Run("warning fires inside the window", func(t *testing.T) {
		current = base.Add(25 * time.Second)
		assert.Equal(t, IdleStateWarned, m.check(current))
		assert.Equal(t, 5*time.Second, warnedRemaining)
		assert.Zero(t, timeouts)
	})

	t.Run("activity clears the warning and restarts the clock", func(t *testing.T) {
		m.Touch()
		assert.Equal(t, IdleStateActive, m.State())

		current = current.Add(24 * time.Second)
		assert.Equal(t, IdleStateActive, m.check(current))
	})

	t.Run("timeout forces the logout exactly once", func(t *testing.T) {
		current = current.Add(7 * time.Second)
		assert.Equal(t, IdleStateExpired, m.check(current))
		assert.Equal(t, 1, timeouts)

		current = current.Add(time.Hour)
		assert.Equal(t, IdleStateExpired, m.check(current))
		assert.Equal(t, 1, timeouts)
	})

	t.Run("activity after expiry is ignored", func(t *testing.T) {
		m.Touch()
		assert.Equal(t, IdleStateExpired, m.State())
	})
}

func TestIdleMonitorTouchThrottle(t *testing.T) {
	base := time.Now()
	current := base
	clock := func() time.Time { return current }

	m := NewIdleMonitor(30*time.Second, 5*time.Second, func() {},
		WithIdleClock(clock),
		WithTouchThrottle(time.Second),
	)

	m.Touch()
	first := m.lastActivity

	// Rapid-fire signals inside the throttle window collapse into the
	// first write.
	current = current.Add(100 * time.Millisecond)
	m.Touch()
	assert.Equal(t, first, m.lastActivity)

	current = current.Add(time.Second)
	m.Touch()
	assert.Equal(t, current, m.lastActivity)
}

func TestIdleMonitorAffirmBypassesThrottle(t *testing.T) {
	base := time.Now()
	current := base
	clock := func() time.Time { return current }

	m := NewIdleMonitor(30*time.Second, 5*time.Second, func() {},
		WithIdleClock(clock),
		WithTouchThrottle(time.Minute),
	)

	current = base.Add(26 * time.Second)
	assert.Equal(t, IdleStateWarned, m.check(current))

	current = current.Add(10 * time.Millisecond)
	m.Affirm()
	assert.Equal(t, IdleStateActive, m.State())
	assert.Equal(t, current, m.lastActivity)
}

func TestIdleMonitorStopIsIdempotent(t *testing.T) {
	m := NewIdleMonitor(time.Minute, time.Second, func() {})
	m.Start()
	m.Stop()
	m.Stop()
}
