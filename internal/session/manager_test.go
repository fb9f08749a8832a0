package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codigos/codigos/internal/storage"
)

func TestSetTokenSchedulesExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token := tokenExpiringIn(t, 10*time.Minute)
	require.NoError(t, f.m.SetToken(ctx, token))
	assert.Equal(t, token, f.m.GetToken())
	assert.True(t, f.m.IsAuthenticated())
	assert.Equal(t, Authenticated, f.m.State())
	assert.Equal(t, 1, f.clock.Pending())

	exp, ok := f.m.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(epoch.Add(10*time.Minute)))

	stored, ok, err := f.kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.m.GetToken(), stored)

	// the timer fires one safety margin before exp
	f.clock.Advance(10*time.Minute - DefaultSafetyMargin - time.Second)
	assert.True(t, f.m.IsAuthenticated())
	assert.Empty(t, f.nav.Targets())

	f.clock.Advance(time.Second)
	assert.False(t, f.m.IsAuthenticated())
	assert.Empty(t, f.m.GetToken())
	f.m.Settle()

	assert.Equal(t, []string{DefaultLoginRoute}, f.nav.Targets())
	assert.True(t, f.m.ConsumeSessionExpired())
	assert.False(t, f.m.ConsumeSessionExpired())
	assert.Equal(t, Anonymous, f.m.State())

	_, ok, err = f.kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSafetyMarginOption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithSafetyMargin(2*time.Minute), WithLoginRoute("/entrar"))

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))
	f.clock.Advance(8*time.Minute - time.Second)
	assert.True(t, f.m.IsAuthenticated())

	f.clock.Advance(time.Second)
	f.m.Settle()
	assert.False(t, f.m.IsAuthenticated())
	assert.Equal(t, []string{"/entrar"}, f.nav.Targets())
}

func TestSetTokenWithinMarginExpiresImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Second)))
	assert.False(t, f.m.IsAuthenticated())
	assert.Empty(t, f.m.GetToken())
	assert.Equal(t, 0, f.clock.Pending())

	f.m.Settle()
	assert.Equal(t, []string{DefaultLoginRoute}, f.nav.Targets())
	assert.True(t, f.m.ConsumeSessionExpired())
}

func TestSetTokenMalformed(t *testing.T) {
	tokens := map[string]string{
		"empty":      "",
		"garbage":    "abc",
		"two parts":  "a.b",
		"four parts": "a.b.c.d",
		"not json":   rawToken("hello", base64.RawURLEncoding),
		"no exp":     rawToken(`{"sub":"1"}`, base64.RawURLEncoding),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.m.SetToken(context.Background(), token))
			assert.False(t, f.m.IsAuthenticated())
			f.m.Settle()
			assert.Len(t, f.nav.Targets(), 1)
			assert.True(t, f.m.ConsumeSessionExpired())
		})
	}
}

func TestReplacingTokenCancelsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 5*time.Minute)))
	first := f.clock.Last()
	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(10 * time.Minute)
	assert.True(t, f.m.IsAuthenticated())
	assert.Empty(t, f.nav.Targets())

	// a callback from the replaced token that slipped past Stop is inert
	first.f()
	f.m.Settle()
	assert.True(t, f.m.IsAuthenticated())
	assert.Empty(t, f.nav.Targets())
	assert.False(t, f.m.ConsumeSessionExpired())
}

func TestLogoutDoesNotFlagOrNavigate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))
	require.NoError(t, f.m.SetIdentity(ctx, &Identity{ID: 7, Email: "ana@example.com", Role: RoleAdmin}))
	require.NoError(t, f.m.Logout(ctx))

	assert.False(t, f.m.IsAuthenticated())
	assert.Nil(t, f.m.Identity())
	assert.Equal(t, Anonymous, f.m.State())
	assert.Equal(t, 0, f.clock.Pending())

	f.clock.Advance(time.Hour)
	f.m.Settle()
	assert.Empty(t, f.nav.Targets())
	assert.False(t, f.m.ConsumeSessionExpired())

	_, ok, err := f.kv.Get(ctx, IdentityKey)
	require.NoError(t, err)
	assert.False(t, ok)

	// logging out twice is harmless
	require.NoError(t, f.m.Logout(ctx))
}

func TestForceSessionExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.nav.release = make(chan struct{})

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))

	assert.True(t, f.m.ForceSessionExpired(ctx))
	assert.False(t, f.m.ForceSessionExpired(ctx))
	assert.Equal(t, Expiring, f.m.State())
	assert.False(t, f.m.IsAuthenticated())

	close(f.nav.release)
	f.m.Settle()
	assert.Equal(t, []string{DefaultLoginRoute}, f.nav.Targets())
	assert.Equal(t, Anonymous, f.m.State())

	// once settled a new teardown is possible
	assert.True(t, f.m.ForceSessionExpired(ctx))
	f.m.Settle()
	assert.Len(t, f.nav.Targets(), 2)
}

func TestForceSessionExpiredConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.nav.release = make(chan struct{})

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.m.ForceSessionExpired(ctx) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	close(f.nav.release)
	f.m.Settle()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, f.nav.Targets(), 1)
}

func TestExpiredTokenDuringTeardownIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.nav.release = make(chan struct{})

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))
	require.True(t, f.m.ForceSessionExpired(ctx))

	// a fresh token lands while the login navigation is still pending
	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))
	_, ok, err := f.kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, -time.Minute)))
	assert.Empty(t, f.m.GetToken())
	assert.False(t, f.m.HasStaleToken())
	assert.Equal(t, 0, f.clock.Pending())
	_, ok, err = f.kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.m.SetToken(ctx, "garbage"))
	assert.Empty(t, f.m.GetToken())

	close(f.nav.release)
	f.m.Settle()
	assert.Equal(t, Anonymous, f.m.State())
	assert.Equal(t, []string{DefaultLoginRoute}, f.nav.Targets())
	_, ok, err = f.kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNavigationFailureReleasesTeardown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.nav.err = errors.New("router gone")

	assert.True(t, f.m.ForceSessionExpired(ctx))
	f.m.Settle()
	assert.Equal(t, Anonymous, f.m.State())
	assert.True(t, f.m.ForceSessionExpired(ctx))
	f.m.Settle()
	assert.Len(t, f.nav.Targets(), 2)
}

func TestNavigationPanicReleasesTeardown(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewStore(storage.NewMemory()), WithClock(newFakeClock()),
		WithNavigator(NavigatorFunc(func(context.Context, string) error {
			panic("boom")
		})))
	defer m.Close()

	assert.True(t, m.ForceSessionExpired(ctx))
	m.Settle()
	assert.Equal(t, Anonymous, m.State())
	assert.True(t, m.ConsumeSessionExpired())
}

func TestForceSessionExpiredWithoutNavigator(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewStore(storage.NewMemory()), WithClock(newFakeClock()))
	defer m.Close()

	assert.True(t, m.ForceSessionExpired(ctx))
	m.Settle()
	assert.True(t, m.ConsumeSessionExpired())

	var got []string
	m.SetNavigator(NavigatorFunc(func(_ context.Context, target string) error {
		got = append(got, target)
		return nil
	}))
	assert.True(t, m.ForceSessionExpired(ctx))
	m.Settle()
	assert.Equal(t, []string{DefaultLoginRoute}, got)
}

func TestIsAuthenticatedIsComputedFromClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, 10*time.Minute)))

	// the timer never fired, yet validity follows the clock
	f.clock.Jump(10 * time.Minute)
	assert.False(t, f.m.IsAuthenticated())
	assert.True(t, f.m.HasStaleToken())
	assert.Equal(t, Expiring, f.m.State())
	assert.NotEmpty(t, f.m.GetToken())
	assert.Empty(t, f.nav.Targets())
	assert.False(t, f.m.ConsumeSessionExpired())
}

func TestSetIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.m.SetIdentity(ctx, &Identity{ID: 1, Email: "ana@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Nil(t, f.m.Identity())
	assert.False(t, f.m.IsLoggedIn())

	require.NoError(t, f.m.SetIdentity(ctx, nil))

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))
	id := &Identity{ID: 1, Email: "ana@example.com", Role: RoleEmployee, Permissions: []string{"users.read"}}
	require.NoError(t, f.m.SetIdentity(ctx, id))
	id.Permissions[0] = "mutated"

	assert.True(t, f.m.IsLoggedIn())
	assert.Equal(t, []string{"users.read"}, f.m.Permissions())
	assert.Equal(t, RoleEmployee, f.m.Role())

	raw, ok, err := f.kv.Get(ctx, IdentityKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":1,"email":"ana@example.com","role":"EMPLOYEE","permissions":["users.read"]}`, raw)

	// a stale token keeps the identity cached but is no longer logged in
	f.clock.Jump(time.Hour)
	assert.NotNil(t, f.m.Identity())
	assert.False(t, f.m.IsAuthenticated())
	assert.False(t, f.m.IsLoggedIn())
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.False(t, f.m.HasPermission("users.read"))
	assert.False(t, f.m.HasAllPermissions(nil))
	assert.False(t, f.m.HasAnyPermission([]string{"users.read"}))
	assert.False(t, f.m.IsAdmin())
	assert.Equal(t, Role(""), f.m.Role())

	require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))
	require.NoError(t, f.m.SetIdentity(ctx, &Identity{
		ID:          1,
		Role:        RoleEmployee,
		Permissions: []string{"customers.read", "suppliers.read"},
	}))

	assert.True(t, f.m.HasPermission("customers.read"))
	assert.False(t, f.m.HasPermission("users.read"))
	assert.True(t, f.m.HasAllPermissions([]string{"customers.read", "suppliers.read"}))
	assert.False(t, f.m.HasAllPermissions([]string{"customers.read", "users.read"}))
	assert.True(t, f.m.HasAllPermissions(nil))
	assert.True(t, f.m.HasAnyPermission([]string{"users.read", "suppliers.read"}))
	assert.False(t, f.m.HasAnyPermission([]string{"users.read"}))
	assert.False(t, f.m.HasAnyPermission(nil))
	assert.False(t, f.m.IsAdmin())
}

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	for role, want := range map[Role]bool{
		RoleSuperAdmin: true,
		RoleAdmin:      true,
		RoleEmployee:   false,
		Role("GUEST"):  false,
	} {
		f := newFixture(t)
		require.NoError(t, f.m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))
		require.NoError(t, f.m.SetIdentity(ctx, &Identity{ID: 1, Role: role}))
		assert.Equal(t, want, f.m.IsAdmin(), string(role))
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session", func(t *testing.T) {
		f := newFixture(t)
		token := tokenExpiringIn(t, time.Hour)
		require.NoError(t, f.kv.Set(ctx, TokenKey, token))
		require.NoError(t, f.kv.Set(ctx, IdentityKey, `{"id":3,"email":"luis@example.com","role":"ADMIN","permissions":["users.read"]}`))

		require.NoError(t, f.m.Restore(ctx))
		assert.True(t, f.m.IsAuthenticated())
		assert.True(t, f.m.IsAdmin())
		assert.Equal(t, "luis@example.com", f.m.Identity().Email)
		assert.Equal(t, 1, f.clock.Pending())

		f.clock.Advance(time.Hour)
		f.m.Settle()
		assert.False(t, f.m.IsAuthenticated())
		assert.True(t, f.m.ConsumeSessionExpired())
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(ctx, TokenKey, tokenExpiringIn(t, -time.Minute)))
		require.NoError(t, f.kv.Set(ctx, IdentityKey, `{"id":3}`))

		require.NoError(t, f.m.Restore(ctx))
		f.m.Settle()
		assert.False(t, f.m.IsAuthenticated())
		assert.Nil(t, f.m.Identity())
		assert.True(t, f.m.ConsumeSessionExpired())

		_, ok, err := f.kv.Get(ctx, IdentityKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("orphaned identity", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(ctx, IdentityKey, `{"id":3}`))

		require.NoError(t, f.m.Restore(ctx))
		assert.Nil(t, f.m.Identity())
		assert.Equal(t, Anonymous, f.m.State())
		assert.False(t, f.m.ConsumeSessionExpired())

		_, ok, err := f.kv.Get(ctx, IdentityKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty store", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.m.Restore(ctx))
		assert.Equal(t, Anonymous, f.m.State())
	})
}

type failingKV struct {
	storage.KV
}

func (failingKV) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestSetTokenReportsPersistenceFailure(t *testing.T) {
	m := NewManager(NewStore(failingKV{storage.NewMemory()}), WithClock(newFakeClock()))
	defer m.Close()

	err := m.SetToken(context.Background(), tokenExpiringIn(t, time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnableToPersist)
	assert.True(t, m.IsAuthenticated())
}

// gatedKV blocks the first Delete until release is closed.
type gatedKV struct {
	storage.KV
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Delete(ctx context.Context, keys ...string) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.KV.Delete(ctx, keys...)
}

func TestLogoutDoesNotEraseLaterToken(t *testing.T) {
	ctx := context.Background()
	kv := &gatedKV{KV: storage.NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(NewStore(kv), WithClock(newFakeClock()))
	defer m.Close()

	require.NoError(t, m.SetToken(ctx, tokenExpiringIn(t, time.Hour)))

	loggedOut := make(chan error, 1)
	go func() { loggedOut <- m.Logout(ctx) }()
	<-kv.entered

	next := tokenExpiringIn(t, 2*time.Hour)
	saved := make(chan error, 1)
	go func() { saved <- m.SetToken(ctx, next) }()

	select {
	case <-saved:
		t.Fatal("SetToken finished while logout was still clearing the store")
	case <-time.After(20 * time.Millisecond):
	}

	close(kv.release)
	require.NoError(t, <-loggedOut)
	require.NoError(t, <-saved)

	assert.Equal(t, next, m.GetToken())
	stored, ok, err := kv.Get(ctx, TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, stored)
}
