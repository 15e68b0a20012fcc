package studenthub

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrLoginSuperseded is returned to a credential exchange whose result arrived
// after a newer exchange already changed the session. The stale result is
// discarded; state reflects the newer operation only.
var ErrLoginSuperseded = goerrors.New("Signed in from a newer request", goerrors.CategoryAuth).
	WithTextCode("LOGIN_SUPERSEDED").
	WithCode(goerrors.CodeUnauthorized)

// Controller owns the authentication state machine. It is the single writer
// of AuthState and of the SessionStore; everything else observes.
type Controller struct {
	transport Transport
	store     SessionStore
	logger    Logger
	sink      ActivitySink
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	maxHydrationAttempts int
	hydrationBackoff     time.Duration

	mu sync.Mutex
	// gen identifies the current session epoch. Every login, logout, restore,
	// or handoff adoption bumps it; async completions compare against it
	// before committing so a stale result can never overwrite newer state.
	gen        uint64
	hydrateSeq uint64
	state      AuthState
	subs       map[int]func(AuthState)
	nextSub    int
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithLogger overrides the controller logger.
func WithLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithHydrationPolicy bounds the automatic profile-fetch retries: at most
// maxAttempts fetches per hydration, a fixed backoff apart. Termination is
// guaranteed; after the last attempt the state moves to the give-up flag the
// route guard surfaces as a manual recovery affordance.
func WithHydrationPolicy(maxAttempts int, backoff time.Duration) ControllerOption {
	return func(c *Controller) {
		if maxAttempts > 0 {
			c.maxHydrationAttempts = maxAttempts
		}
		if backoff >= 0 {
			c.hydrationBackoff = backoff
		}
	}
}

// NewController returns a controller in its pre-boot state: no session, but
// Loading set, so observers see a placeholder rather than a signed-out
// verdict until Start resolves whether a persisted session exists. Every
// Start outcome clears the flag.
func NewController(transport Transport, store SessionStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		transport:            transport,
		store:                store,
		logger:               defLogger{},
		sink:                 noopActivitySink{},
		now:                  time.Now,
		sleep:                sleepCtx,
		maxHydrationAttempts: 3,
		hydrationBackoff:     2 * time.Second,
		state:                AuthState{Phase: PhaseSignedOut, Loading: true},
		subs:                 map[int]func(AuthState){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns a copy of the current AuthState.
func (c *Controller) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers an observer called after every state change with a
// snapshot. The returned function cancels the subscription.
func (c *Controller) Subscribe(fn func(AuthState)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(snapshot AuthState) {
	c.mu.Lock()
	observers := make([]func(AuthState), 0, len(c.subs))
	for _, fn := range c.subs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot.clone())
	}
}

func (c *Controller) emit(ctx context.Context, eventType ActivityEventType, subjectID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		SubjectID:  subjectID,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := c.sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

// commitPhase runs the requested phase change through the lifecycle graph,
// flagging any move the graph does not allow. Callers hold c.mu.
func (c *Controller) commitPhase(to Phase) Phase {
	if !canTransition(c.state.Phase, to) {
		c.logger.Warn("phase transition %s -> %s outside the lifecycle graph", c.state.Phase, to)
	}
	return to
}

// beginAuth opens a new session epoch and moves state to authenticating. The
// previous persisted session, if any, is cleared: a replacement exchange must
// never leave a stale token behind that a reload could resurrect.
func (c *Controller) beginAuth(ctx context.Context) (uint64, AuthState) {
	c.mu.Lock()
	c.gen++
	c.hydrateSeq++
	gen := c.gen
	c.state = AuthState{Phase: c.commitPhase(PhaseAuthenticating), Loading: true}
	snapshot := c.state.clone()
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear session store: %v", err)
	}
	c.mu.Unlock()
	return gen, snapshot
}

// failAuth returns state to signed-out with a user-visible message, unless a
// newer operation already took over.
func (c *Controller) failAuth(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = AuthState{Phase: c.commitPhase(PhaseSignedOut), Message: UserMessage(err)}
	snapshot := c.state.clone()
	c.mu.Unlock()
	c.notify(snapshot)
}

// establishSession commits a fresh grant: session plus the inline profile, so
// no separate hydration round-trip is needed on this path.
func (c *Controller) establishSession(ctx context.Context, gen uint64, grant *SessionGrant) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrLoginSuperseded
	}

	session := sessionFromGrant(grant, c.now())
	profile := grant.User
	c.state = AuthState{
		Phase:   c.commitPhase(PhaseActive),
		Session: session,
		Profile: &profile,
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		c.logger.Warn("failed to persist session: %v", err)
	}
	if err := c.store.SaveProfileHint(ctx, &profile); err != nil {
		c.logger.Warn("failed to persist profile hint: %v", err)
	}
	snapshot := c.state.clone()
	c.mu.Unlock()
	c.notify(snapshot)
	return nil
}

// Login exchanges credentials for a session. Empty fields fail locally with
// no network call; a rejected exchange leaves state signed out with a generic
// message that does not reveal whether the email exists.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	gen, snapshot := c.beginAuth(ctx)
	c.notify(snapshot)

	grant, err := c.transport.Login(ctx, email, password)
	if err != nil {
		c.failAuth(gen, err)
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return err
	}

	if err := c.establishSession(ctx, gen, grant); err != nil {
		return err
	}

	c.emit(ctx, ActivityEventLoginSuccess, grant.User.ID, map[string]any{
		"identifier": email,
	})
	return nil
}

// Register submits a new account. Depending on the role's backend policy the
// result either auto-logs-in (session established immediately) or lands in
// the approval queue: state stays signed out with the backend's notice until
// the account is activated and its verification handoff redeemed.
func (c *Controller) Register(ctx context.Context, req RegistrationRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithTextCode(textCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	gen, snapshot := c.beginAuth(ctx)
	c.notify(snapshot)

	result, err := c.transport.Register(ctx, req)
	if err != nil {
		c.failAuth(gen, err)
		c.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"identifier": req.Email,
			"error":      err.Error(),
		})
		return nil, err
	}

	if result.Pending {
		c.mu.Lock()
		if c.gen == gen {
			c.state = AuthState{Phase: c.commitPhase(PhaseSignedOut), Message: result.Message}
			snapshot = c.state.clone()
			c.mu.Unlock()
			c.notify(snapshot)
		} else {
			c.mu.Unlock()
		}
		c.emit(ctx, ActivityEventRegistered, "", map[string]any{
			"identifier": req.Email,
			"pending":    true,
		})
		return result, nil
	}

	if err := c.establishSession(ctx, gen, result.Grant); err != nil {
		return nil, err
	}

	c.emit(ctx, ActivityEventRegistered, result.Grant.User.ID, map[string]any{
		"identifier": req.Email,
		"pending":    false,
	})
	return result, nil
}

// Logout destroys the session. Calling it while signed out is a no-op.
func (c *Controller) Logout(ctx context.Context) {
	c.endSession(ctx, "You have been signed out", ActivityEventLogout)
}

// Expire destroys the session because it is no longer valid: inactivity
// timeout or a backend-reported invalid session. The message stays distinct
// from a manual sign-out so the user knows why they were thrown out.
func (c *Controller) Expire(ctx context.Context, cause error) {
	if cause == nil {
		cause = ErrSessionExpired
	}
	c.endSession(ctx, UserMessage(cause), ActivityEventSessionExpired)
}

func (c *Controller) endSession(ctx context.Context, message string, eventType ActivityEventType) {
	c.mu.Lock()
	if c.state.Session == nil && c.state.Phase == PhaseSignedOut {
		c.mu.Unlock()
		return
	}

	subjectID := ""
	if c.state.Session != nil {
		subjectID = c.state.Session.SubjectID
	}
	c.gen++
	c.hydrateSeq++
	c.state = AuthState{Phase: c.commitPhase(PhaseSignedOut), Message: message}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear session store: %v", err)
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.notify(snapshot)
	c.emit(ctx, eventType, subjectID, nil)
}

// Start runs the boot sequence for a navigation target. A pending handoff in
// the URL wins over a persisted session, because the two are mutually
// exclusive for a given load and the handoff is single-use. The returned URL
// has the handoff markers stripped so a reload does not repeat the exchange.
func (c *Controller) Start(ctx context.Context, navURL string) (string, error) {
	if handoff, cleaned, ok := ParseHandoffURL(navURL); ok {
		return cleaned, c.adoptHandoff(ctx, handoff)
	}

	session, err := c.store.LoadSession(ctx)
	if err != nil {
		c.logger.Error("failed to load persisted session: %v", err)
		c.mu.Lock()
		c.state = AuthState{Phase: c.commitPhase(PhaseSignedOut)}
		snapshot := c.state.clone()
		c.mu.Unlock()
		c.notify(snapshot)
		return navURL, err
	}
	if session == nil {
		c.mu.Lock()
		c.state = AuthState{Phase: c.commitPhase(PhaseSignedOut)}
		snapshot := c.state.clone()
		c.mu.Unlock()
		c.notify(snapshot)
		return navURL, nil
	}

	// The cached profile is only a pre-render hint; the live fetch below
	// supersedes it.
	hint, err := c.store.LoadProfileHint(ctx)
	if err != nil {
		c.logger.Warn("failed to load profile hint: %v", err)
		hint = nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = AuthState{
		Phase:   c.commitPhase(PhaseHydrating),
		Session: session,
		Profile: hint,
		Loading: true,
	}
	snapshot := c.state.clone()
	c.mu.Unlock()
	c.notify(snapshot)
	c.emit(ctx, ActivityEventSessionRestored, session.SubjectID, nil)

	return navURL, c.hydrate(ctx, gen, session.Token)
}

func (c *Controller) adoptHandoff(ctx context.Context, handoff Handoff) error {
	gen, snapshot := c.beginAuth(ctx)
	c.notify(snapshot)

	grant, err := c.transport.RedeemHandoff(ctx, handoff)
	if err != nil {
		c.failAuth(gen, err)
		return err
	}

	if err := c.establishSession(ctx, gen, grant); err != nil {
		return err
	}
	c.emit(ctx, ActivityEventHandoffRedeemed, grant.User.ID, nil)
	return nil
}

// RefreshProfile re-runs profile hydration for the current session without
// touching the session itself. No-op while signed out.
func (c *Controller) RefreshProfile(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Session == nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	token := c.state.Session.Token
	c.state.Phase = c.commitPhase(PhaseHydrating)
	c.state.Loading = true
	c.state.HydrationFailed = false
	snapshot := c.state.clone()
	c.mu.Unlock()
	c.notify(snapshot)

	return c.hydrate(ctx, gen, token)
}

// hydrate fetches the profile for the session identified by gen, retrying up
// to the configured bound. Completions are committed only while both the
// session epoch and the hydration sequence are still current, which makes the
// operation single-flight: a newer hydration or login silently supersedes
// this one.
func (c *Controller) hydrate(ctx context.Context, gen uint64, token string) error {
	c.mu.Lock()
	c.hydrateSeq++
	seq := c.hydrateSeq
	maxAttempts := c.maxHydrationAttempts
	backoff := c.hydrationBackoff
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		profile, err := c.transport.FetchProfile(ctx, token)
		if err == nil {
			c.mu.Lock()
			if c.gen != gen || c.hydrateSeq != seq {
				c.mu.Unlock()
				return nil
			}
			c.state.Profile = profile
			c.state.Phase = c.commitPhase(PhaseActive)
			c.state.Loading = false
			c.state.HydrationAttempts = 0
			c.state.HydrationFailed = false
			if err := c.store.SaveProfileHint(ctx, profile); err != nil {
				c.logger.Warn("failed to persist profile hint: %v", err)
			}
			snapshot := c.state.clone()
			c.mu.Unlock()
			c.notify(snapshot)
			return nil
		}

		if IsSessionExpired(err) {
			c.mu.Lock()
			current := c.gen == gen
			c.mu.Unlock()
			if current {
				c.Expire(ctx, ErrSessionExpired)
			}
			return err
		}

		lastErr = err
		c.logger.Warn("profile hydration attempt %d/%d failed: %v", attempt, maxAttempts, err)

		c.mu.Lock()
		if c.gen == gen && c.hydrateSeq == seq {
			c.state.HydrationAttempts = attempt
			snapshot := c.state.clone()
			c.mu.Unlock()
			c.notify(snapshot)
		} else {
			c.mu.Unlock()
			return nil
		}

		if attempt < maxAttempts {
			if err := c.sleep(ctx, backoff); err != nil {
				break
			}
		}
	}

	// Give up: the session survives with no profile, and the route guard
	// offers a manual retry instead of forcing a re-login.
	c.mu.Lock()
	if c.gen == gen && c.hydrateSeq == seq {
		c.state.Loading = false
		c.state.HydrationFailed = true
		c.state.Message = UserMessage(lastErr)
		snapshot := c.state.clone()
		c.mu.Unlock()
		c.notify(snapshot)
	} else {
		c.mu.Unlock()
		return nil
	}
	return lastErr
}
