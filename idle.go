package studenthub

import (
	"sync"
	"time"
)

// IdleState reports where the monitor sits relative to the timeout.
type IdleState int

const (
	// IdleStateActive means recent activity was observed.
	IdleStateActive IdleState = iota
	// IdleStateWarned means the pre-expiry warning has been emitted and not
	// yet affirmed.
	IdleStateWarned
	// IdleStateExpired means the timeout elapsed and the logout fired.
	IdleStateExpired
)

// IdleMonitor enforces a fixed inactivity timeout independent of token
// expiry. Input signals call Touch; a periodic check emits a warning inside
// the warning window and forces a logout once the full timeout elapses with
// no affirmation. The forced logout fires exactly once.
type IdleMonitor struct {
	timeout       time.Duration
	warningWindow time.Duration
	interval      time.Duration
	throttle      time.Duration
	now           func() time.Time
	logger        Logger
	onWarning     func(remaining time.Duration)
	onTimeout     func()

	mu           sync.Mutex
	lastActivity time.Time
	lastTouch    time.Time
	state        IdleState

	done     chan struct{}
	stopOnce sync.Once
}

// IdleOption customizes an IdleMonitor.
type IdleOption func(*IdleMonitor)

// WithIdleClock injects a custom clock (useful for tests).
func WithIdleClock(clock func() time.Time) IdleOption {
	return func(m *IdleMonitor) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithCheckInterval overrides how often the monitor evaluates idleness.
func WithCheckInterval(d time.Duration) IdleOption {
	return func(m *IdleMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTouchThrottle bounds how often Touch records activity; high-frequency
// signals like pointer moves collapse into one write per window.
func WithTouchThrottle(d time.Duration) IdleOption {
	return func(m *IdleMonitor) {
		if d >= 0 {
			m.throttle = d
		}
	}
}

// WithWarningHandler sets the callback invoked when the warning window opens.
func WithWarningHandler(fn func(remaining time.Duration)) IdleOption {
	return func(m *IdleMonitor) {
		m.onWarning = fn
	}
}

// WithIdleLogger overrides the monitor logger.
func WithIdleLogger(logger Logger) IdleOption {
	return func(m *IdleMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewIdleMonitor builds a monitor that calls onTimeout once the timeout
// elapses without activity. The warning fires warningWindow before expiry.
func NewIdleMonitor(timeout, warningWindow time.Duration, onTimeout func(), opts ...IdleOption) *IdleMonitor {
	m := &IdleMonitor{
		timeout:       timeout,
		warningWindow: warningWindow,
		interval:      time.Minute,
		throttle:      time.Second,
		now:           time.Now,
		logger:        defLogger{},
		onTimeout:     onTimeout,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivity = m.now()
	return m
}

// Start launches the periodic check. Stop cancels it; it is also cancelled
// automatically after the timeout fires so no timer outlives the session.
func (m *IdleMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				if m.check(m.now()) == IdleStateExpired {
					return
				}
			}
		}
	}()
}

// Stop cancels the periodic check. Idempotent; safe to call on teardown or
// right after a manual logout so no timer fires against a cleared session.
func (m *IdleMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// Touch records user activity, throttled. Activity clears a pending warning
// and restarts the idle clock.
func (m *IdleMonitor) Touch() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == IdleStateExpired {
		return
	}
	if m.throttle > 0 && now.Sub(m.lastTouch) < m.throttle && m.state != IdleStateWarned {
		return
	}
	m.lastTouch = now
	m.lastActivity = now
	m.state = IdleStateActive
}

// Affirm is the explicit "stay signed in" answer to the warning. It bypasses
// the touch throttle.
func (m *IdleMonitor) Affirm() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == IdleStateExpired {
		return
	}
	m.lastTouch = now
	m.lastActivity = now
	m.state = IdleStateActive
}

// State returns the current idle state.
func (m *IdleMonitor) State() IdleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// check evaluates idleness at the given instant. Exposed to the ticker loop;
// tests drive it directly with a fake clock.
func (m *IdleMonitor) check(now time.Time) IdleState {
	m.mu.Lock()
	if m.state == IdleStateExpired {
		m.mu.Unlock()
		return IdleStateExpired
	}

	idle := now.Sub(m.lastActivity)

	if idle >= m.timeout {
		m.state = IdleStateExpired
		m.mu.Unlock()

		m.logger.Info("idle timeout reached, forcing logout")
		m.Stop()
		if m.onTimeout != nil {
			m.onTimeout()
		}
		return IdleStateExpired
	}

	if idle >= m.timeout-m.warningWindow && m.state != IdleStateWarned {
		m.state = IdleStateWarned
		remaining := m.timeout - idle
		onWarning := m.onWarning
		m.mu.Unlock()

		if onWarning != nil {
			onWarning(remaining)
		}
		return IdleStateWarned
	}

	state := m.state
	m.mu.Unlock()
	return state
}
