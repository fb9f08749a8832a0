package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codigos/codigos/internal/mockapi"
	"github.com/codigos/codigos/internal/session"
	"github.com/codigos/codigos/internal/storage"
)

type manualTimer struct {
	clock *manualClock
	at    time.Time
	f     func()
	done  bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// manualClock fires timers only from Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type testEnv struct {
	server *mockapi.Server
	kv     *storage.Memory
	clock  *manualClock
	app    *App
	out    *bytes.Buffer
	shell  *Shell
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv, err := mockapi.CreateNewServer(mockapi.DefaultConfig())
	require.NoError(t, err)
	srv.MountHandlers()

	e := &testEnv{
		server: srv,
		kv:     storage.NewMemory(),
		clock:  &manualClock{now: time.Now()},
		out:    &bytes.Buffer{},
	}
	e.app = e.newApp(t)
	e.shell = NewShell(e.app, e.out)
	return e
}

func (e *testEnv) newApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), NewConfig("http://codigos.test"),
		WithStorage(e.kv),
		WithBackend(e.server.Router),
		WithSessionClock(e.clock),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

// run executes lines and returns what they printed.
func (e *testEnv) run(lines ...string) string {
	start := e.out.Len()
	for _, l := range lines {
		e.shell.Exec(context.Background(), l)
	}
	e.app.Session.Settle()
	return e.out.String()[start:]
}

func TestShellAnonymous(t *testing.T) {
	e := newTestEnv(t)
	err := e.shell.Run(context.Background(), strings.NewReader("go /cuentas\ngo /users\nbogus\nexit\n"))
	require.NoError(t, err)

	out := e.out.String()
	assert.Contains(t, out, "== Correo (/correo) ==")
	assert.Contains(t, out, "== Iniciar sesión (/login) ==")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.NotContains(t, out, sessionExpiredBanner)
	assert.Equal(t, "/login", e.app.Router.Current().URL())
}

func TestShellAdminNavigation(t *testing.T) {
	e := newTestEnv(t)

	out := e.run("login admin@codigos.test admin-pass")
	assert.Contains(t, out, "Logged in as Ana Admin (ADMIN)")
	assert.Contains(t, out, "== Correo privado (/correo-privado) ==")

	out = e.run("go /login")
	assert.Contains(t, out, "(/correo-privado)", "guests only")

	out = e.run("go /users")
	assert.Contains(t, out, "== Usuarios (/users) ==")

	out = e.run("go /customers")
	assert.Contains(t, out, "== Empresas (/companies) ==", "no company selected")

	out = e.run("company 1", "go /customers")
	assert.Contains(t, out, "Using company Streaming Norte (1)")
	assert.Contains(t, out, "== Clientes (/customers) ==")

	out = e.run("go /suppliers")
	assert.Contains(t, out, "== Correo (/correo) ==", "missing SUPPLIERS:READ")

	out = e.run("company 42")
	assert.Contains(t, out, "company 42 is not available to you")

	out = e.run("whoami")
	assert.Contains(t, out, "User: Ana Admin <admin@codigos.test>")
	assert.Contains(t, out, "Company: Streaming Norte (1)")
}

func TestShellEmployeeIsKeptOutOfAdminScreens(t *testing.T) {
	e := newTestEnv(t)
	e.run("login empleado@codigos.test empleado-pass")

	out := e.run("go /users")
	assert.Contains(t, out, "== Correo (/correo) ==")
	assert.NotContains(t, out, "Usuarios")
}

func TestShellLoginFailure(t *testing.T) {
	e := newTestEnv(t)
	out := e.run("login admin@codigos.test wrong")
	assert.Contains(t, out, "Login failed: invalid credentials")
	assert.False(t, e.app.Session.IsAuthenticated())
	assert.NotContains(t, out, sessionExpiredBanner)
}

func TestShellTimerExpiry(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass")

	start := e.out.Len()
	e.clock.Advance(15 * time.Minute)
	e.app.Session.Settle()
	out := e.out.String()[start:]

	assert.Contains(t, out, "== Iniciar sesión (/login) ==")
	assert.Contains(t, out, sessionExpiredBanner)
	assert.Empty(t, e.app.Session.GetToken())
	assert.False(t, e.app.Session.ConsumeSessionExpired(), "the login view consumed the flag")

	out = e.run("go /login")
	assert.NotContains(t, out, sessionExpiredBanner, "banner shows once")
}

func TestShellStaleTokenOnNavigation(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass")

	e.clock.Jump(16 * time.Minute)
	out := e.run("go /cuentas")
	assert.Contains(t, out, sessionExpiredBanner)
	assert.Contains(t, out, "Access denied: /cuentas")
	assert.Equal(t, "/login", e.app.Router.Current().URL())
}

func TestShellServerRejectsSession(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass")
	require.NoError(t, e.server.Directory().DeleteUser(2))

	out := e.run("company 1")
	assert.Contains(t, out, "== Iniciar sesión (/login) ==")
	assert.Contains(t, out, sessionExpiredBanner)
	assert.Contains(t, out, "Error: invalid authorization. login required")
	assert.False(t, e.app.Session.IsLoggedIn())
}

func TestShellLogout(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass")

	out := e.run("logout")
	assert.Contains(t, out, "== Iniciar sesión (/login) ==")
	assert.NotContains(t, out, sessionExpiredBanner)

	out = e.run("whoami")
	assert.Contains(t, out, "Not logged in")
}

func TestShellRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.run("go /correo")
	out := e.run("routes")
	assert.Contains(t, out, "* /correo")
	assert.Contains(t, out, "/                  -> /correo")
	assert.Contains(t, out, "/customers         Clientes")
}

func TestSessionSurvivesRestart(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass", "company 2")
	e.app.Close()

	next := e.newApp(t)
	assert.True(t, next.Session.IsAuthenticated())
	assert.Equal(t, "admin@codigos.test", next.Session.Identity().Email)
	assert.Equal(t, int64(2), next.Companies.CompanyID())
	assert.False(t, next.ConsumeExpiredNotice())
}

func TestExpiredSessionOnRestart(t *testing.T) {
	e := newTestEnv(t)
	e.run("login admin@codigos.test admin-pass")
	e.app.Close()

	e.clock.Jump(20 * time.Minute)
	next := e.newApp(t)
	assert.False(t, next.Session.IsAuthenticated())
	assert.Nil(t, next.Session.Identity())
	assert.True(t, next.ConsumeExpiredNotice())
	assert.False(t, next.ConsumeExpiredNotice())
}
