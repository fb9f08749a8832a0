package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/uuid"
)

const (
	// DefaultSafetyMargin is how long before the token's expiry the
	// session is torn down.
	DefaultSafetyMargin = 30 * time.Second
	// DefaultLoginRoute is where a forced expiry sends the user.
	DefaultLoginRoute = "/login"
)

// Navigator moves the application to a route.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, target string) error

func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSafetyMargin sets how long before expiry the session is torn down.
// Negative values are treated as zero.
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d < 0 {
			d = 0
		}
		m.safetyMargin = d
	}
}

// WithLoginRoute sets the route a forced expiry navigates to.
func WithLoginRoute(route string) Option {
	return func(m *Manager) {
		if route != "" {
			m.loginRoute = route
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithNavigator binds the navigator at construction time. See SetNavigator
// for late binding.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		m.nav = n
	}
}

// Manager is the single authority over the current session. All methods are
// safe for concurrent use.
type Manager struct {
	store        Store
	clock        Clock
	safetyMargin time.Duration
	loginRoute   string

	// persist serializes store mutations with the state change they
	// record. It is always taken before mu.
	persist sync.Mutex

	mu          sync.Mutex
	nav         Navigator
	token       string
	claims      *Claims
	identity    *Identity
	instance    uuid.UUID
	timer       Timer
	generation  uint64
	tearingDown bool
	expired     bool

	navigations sync.WaitGroup
}

// NewManager creates a manager persisting through store. Call Restore to pick
// up a session saved by a previous run.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		clock:        SystemClock,
		safetyMargin: DefaultSafetyMargin,
		loginRoute:   DefaultLoginRoute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNavigator binds the navigator used by forced expiry.
func (m *Manager) SetNavigator(n Navigator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nav = n
}

// SafetyMargin returns the configured margin.
func (m *Manager) SafetyMargin() time.Duration {
	return m.safetyMargin
}

// LoginRoute returns the route forced expiry navigates to.
func (m *Manager) LoginRoute() string {
	return m.loginRoute
}

// Restore loads the persisted token and identity and schedules expiry. A
// persisted token that is already within the safety margin is torn down
// immediately.
func (m *Manager) Restore(ctx context.Context) error {
	token, identity, err := m.store.Load(ctx)
	if err != nil {
		return ErrUnableToRestore.Err(err)
	}
	if token == "" {
		if identity != nil {
			// an identity without a token is never retained
			m.persist.Lock()
			defer m.persist.Unlock()
			if err := m.store.SaveIdentity(ctx, nil); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("unable to drop orphaned identity")
			}
		}
		return nil
	}

	m.mu.Lock()
	m.identity = identity
	m.mu.Unlock()

	if expireNow := m.install(ctx, token); expireNow {
		m.ForceSessionExpired(ctx)
	}
	return nil
}

// SetToken replaces the current token, persists it and reschedules expiry.
// Any timer derived from a previous token is cancelled first. A token that
// cannot be decoded, lacks an expiry or is already within the safety margin
// triggers ForceSessionExpired before SetToken returns. The returned error
// only reports persistence failures; the in-memory state is updated either
// way. A token that is expired on arrival is never persisted.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	m.persist.Lock()
	expireNow := m.install(ctx, token)

	var err error
	if expireNow {
		if serr := m.store.Clear(ctx); serr != nil {
			log.Ctx(ctx).Error().Err(serr).Msg("unable to clear persisted session")
			err = ErrUnableToPersist.Err(serr)
		}
	} else if serr := m.store.SaveToken(ctx, token); serr != nil {
		log.Ctx(ctx).Error().Err(serr).Msg("unable to persist token")
		err = ErrUnableToPersist.Err(serr)
	}
	m.persist.Unlock()

	if expireNow {
		m.ForceSessionExpired(ctx)
	}
	return err
}

// install swaps the in-memory token and schedules the expiry timer. It
// reports whether the token must be expired right away.
func (m *Manager) install(ctx context.Context, token string) bool {
	claims, ok := DecodeClaims(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.token = token
	m.claims = claims
	m.instance = uuid.New()

	logger := m.loggerLocked(ctx)
	if !ok {
		logger.Warn().Msg("token has no usable expiry")
		m.dropIfTearingDownLocked()
		return true
	}

	delay := claims.ExpiresAt.Sub(m.clock.Now()) - m.safetyMargin
	if delay <= 0 {
		logger.Info().Time("expires_at", claims.ExpiresAt).Msg("token expires within the safety margin")
		m.dropIfTearingDownLocked()
		return true
	}

	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() {
		m.forceExpire(context.Background(), gen, true)
	})
	logger.Debug().Dur("delay", delay).Time("expires_at", claims.ExpiresAt).Msg("session expiry scheduled")
	return false
}

// stopTimerLocked cancels the pending timer. Bumping the generation makes a
// callback that already started a no-op.
func (m *Manager) stopTimerLocked() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// dropIfTearingDownLocked discards a token that must expire while a teardown
// is still navigating. That teardown absorbs the follow-up
// ForceSessionExpired, so the token would otherwise survive it.
func (m *Manager) dropIfTearingDownLocked() {
	if m.tearingDown {
		m.clearLocked()
	}
}

func (m *Manager) clearLocked() {
	m.stopTimerLocked()
	m.token = ""
	m.claims = nil
	m.identity = nil
}

func (m *Manager) loggerLocked(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx).With().Str("session", uuid.ShortID(m.instance)).Logger()
	return &l
}

// GetToken returns the current token, or "" when none is held. The token is
// returned even when stale; callers decide validity with IsAuthenticated.
func (m *Manager) GetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// ExpiresAt returns the token's expiry, if a decodable token is held.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil {
		return time.Time{}, false
	}
	return m.claims.ExpiresAt, true
}

// Claims returns a copy of the decoded claims, or nil.
func (m *Manager) Claims() *Claims {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil {
		return nil
	}
	c := *m.claims
	c.Permissions = slices.Clone(m.claims.Permissions)
	return &c
}

// IsAuthenticated recomputes validity from the token and the clock. It has
// no side effects.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked()
}

func (m *Manager) authenticatedLocked() bool {
	return m.token != "" && m.claims != nil && !m.claims.ExpiredAt(m.clock.Now())
}

// HasStaleToken reports whether a token is held that no longer
// authenticates.
func (m *Manager) HasStaleToken() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != "" && !m.authenticatedLocked()
}

// State reports the lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.tearingDown:
		return Expiring
	case m.token == "":
		return Anonymous
	case m.authenticatedLocked():
		return Authenticated
	default:
		return Expiring
	}
}

// Logout clears the token and identity and cancels the expiry timer. It does
// not navigate and does not raise the session-expired flag.
func (m *Manager) Logout(ctx context.Context) error {
	m.persist.Lock()
	defer m.persist.Unlock()

	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to clear persisted session")
		return ErrUnableToPersist.Err(err)
	}
	return nil
}

// ForceSessionExpired tears the session down because the system decided it
// is no longer valid. It clears all state, raises the session-expired flag
// and navigates to the login route. Calls made while a previous teardown is
// still navigating do nothing and return false.
func (m *Manager) ForceSessionExpired(ctx context.Context) bool {
	return m.forceExpire(ctx, 0, false)
}

func (m *Manager) forceExpire(ctx context.Context, gen uint64, fromTimer bool) bool {
	m.persist.Lock()
	m.mu.Lock()
	if (fromTimer && gen != m.generation) || m.tearingDown {
		m.mu.Unlock()
		m.persist.Unlock()
		return false
	}
	m.tearingDown = true
	logger := m.loggerLocked(ctx)
	m.clearLocked()
	m.expired = true
	nav := m.nav
	target := m.loginRoute
	m.navigations.Add(1)
	m.mu.Unlock()

	logger.Info().Bool("timer", fromTimer).Msg("session expired")
	if err := m.store.Clear(ctx); err != nil {
		logger.Error().Err(err).Msg("unable to clear persisted session")
	}
	m.persist.Unlock()

	go m.navigate(context.WithoutCancel(ctx), nav, target)
	return true
}

func (m *Manager) navigate(ctx context.Context, nav Navigator, target string) {
	defer m.navigations.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().Str("panic", fmt.Sprint(r)).Msg("navigation to login panicked")
		}
		m.mu.Lock()
		m.tearingDown = false
		m.mu.Unlock()
	}()

	if nav == nil {
		return
	}
	if err := nav.Navigate(ctx, target); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("route", target).Msg("navigation to login failed")
	}
}

// ConsumeSessionExpired returns the session-expired flag and clears it.
func (m *Manager) ConsumeSessionExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.expired
	m.expired = false
	return v
}

// SetIdentity caches the user's profile. Passing nil removes it. A non-nil
// identity is rejected when no token is held.
func (m *Manager) SetIdentity(ctx context.Context, id *Identity) error {
	m.persist.Lock()
	defer m.persist.Unlock()

	m.mu.Lock()
	if id != nil && m.token == "" {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	m.identity = id.Clone()
	m.mu.Unlock()

	if err := m.store.SaveIdentity(ctx, id); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to persist identity")
		return ErrUnableToPersist.Err(err)
	}
	return nil
}

// Identity returns a copy of the cached identity, or nil.
func (m *Manager) Identity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.Clone()
}

// IsLoggedIn reports whether an identity is cached and the token still
// authenticates.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil && m.authenticatedLocked()
}

// Role returns the cached role, or "" without an identity.
func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return ""
	}
	return m.identity.Role
}

// IsAdmin reports whether the cached identity is ADMIN or SUPERADMIN.
func (m *Manager) IsAdmin() bool {
	return m.Role().IsAdmin()
}

// Permissions returns a copy of the cached permission list.
func (m *Manager) Permissions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	return slices.Clone(m.identity.Permissions)
}

// HasPermission reports whether the identity holds p. False without an
// identity.
func (m *Manager) HasPermission(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return false
	}
	return slices.Contains(m.identity.Permissions, p)
}

// HasAllPermissions reports whether the identity holds every permission in
// ps. An empty list is trivially satisfied; without an identity the answer
// is false.
func (m *Manager) HasAllPermissions(ps []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return false
	}
	for _, p := range ps {
		if !slices.Contains(m.identity.Permissions, p) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether the identity holds at least one
// permission in ps. An empty list is never satisfied.
func (m *Manager) HasAnyPermission(ps []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return false
	}
	for _, p := range ps {
		if slices.Contains(m.identity.Permissions, p) {
			return true
		}
	}
	return false
}

// Close cancels the expiry timer and waits for in-flight navigations.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.mu.Unlock()
	m.navigations.Wait()
}

// Settle waits for in-flight navigations without touching the timer.
func (m *Manager) Settle() {
	m.navigations.Wait()
}
