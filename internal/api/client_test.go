package api

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codigos/codigos/internal/common/httpclient"
	"github.com/codigos/codigos/internal/companyctx"
	"github.com/codigos/codigos/internal/mockapi"
	"github.com/codigos/codigos/internal/session"
	"github.com/codigos/codigos/internal/storage"
)

type testConfig struct{}

func (testConfig) GetServerURL() string { return "http://codigos.test/api" }
func (testConfig) GetLoginPath() string { return LoginPath }

type navLog struct {
	mu      sync.Mutex
	targets []string
}

func (n *navLog) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

func (n *navLog) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

type env struct {
	server    *mockapi.Server
	sess      *session.Manager
	nav       *navLog
	companies *companyctx.Store
	client    *Client
}

func newEnv(t *testing.T, handler ...http.Handler) *env {
	t.Helper()
	ctx := context.Background()
	s, err := mockapi.CreateNewServer(mockapi.DefaultConfig())
	require.NoError(t, err)
	s.MountHandlers()

	kv := storage.NewMemory()
	nav := &navLog{}
	sess := session.NewManager(session.NewStore(kv), session.WithNavigator(nav))
	t.Cleanup(sess.Close)
	companies, err := companyctx.Load(ctx, kv)
	require.NoError(t, err)

	var h http.Handler = s.Router
	if len(handler) > 0 {
		h = handler[0]
	}
	hc := httpclient.NewTestClient(testConfig{}, http.StripPrefix("/api", h), httpclient.ClientOptions{
		Tokens:         sess,
		OnUnauthorized: sess,
		Companies:      companies,
	})
	return &env{server: s, sess: sess, nav: nav, companies: companies, client: New(hc)}
}

func (e *env) signIn(t *testing.T, email, password string) *session.Identity {
	t.Helper()
	me, err := SignIn(context.Background(), e.client, e.sess, email, password)
	require.NoError(t, err)
	return me
}

func TestSignIn(t *testing.T) {
	e := newEnv(t)
	me := e.signIn(t, "admin@codigos.test", "admin-pass")

	assert.Equal(t, int64(2), me.ID)
	assert.Equal(t, session.RoleAdmin, me.Role)
	assert.Equal(t, "Ana Admin", me.DisplayName())
	assert.True(t, e.sess.IsAuthenticated())
	assert.True(t, e.sess.IsAdmin())
	assert.True(t, e.sess.HasPermission("USERS:READ"))
	assert.NotEmpty(t, e.sess.GetToken())

	claims := e.sess.Claims()
	require.NotNil(t, claims)
	assert.Equal(t, "admin@codigos.test", claims.Email)

	require.NoError(t, SignOut(context.Background(), e.sess))
	assert.Empty(t, e.sess.GetToken())
	assert.False(t, e.sess.ConsumeSessionExpired(), "logout is not an expiry")
}

func TestSignInWrongPassword(t *testing.T) {
	e := newEnv(t)
	_, err := SignIn(context.Background(), e.client, e.sess, "admin@codigos.test", "bad")
	require.Error(t, err)
	assert.True(t, httpclient.IsUnauthorized(err))
	assert.Equal(t, "invalid credentials", err.Error())

	e.sess.Settle()
	assert.False(t, e.sess.ConsumeSessionExpired(), "a rejected login is not a session failure")
	assert.Empty(t, e.nav.Targets())
}

func TestUnauthorizedForcesExpiry(t *testing.T) {
	e := newEnv(t)
	e.signIn(t, "empleado@codigos.test", "empleado-pass")

	require.NoError(t, e.server.Directory().DeleteUser(3))
	_, err := e.client.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))

	e.sess.Settle()
	assert.Empty(t, e.sess.GetToken())
	assert.Nil(t, e.sess.Identity())
	assert.True(t, e.sess.ConsumeSessionExpired())
	assert.Equal(t, []string{session.DefaultLoginRoute}, e.nav.Targets())
}

func TestCompaniesAndScopedUsers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signIn(t, "admin@codigos.test", "admin-pass")

	companies, err := e.client.Companies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Streaming Norte", companies[0].Name)

	users, err := e.client.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	require.NoError(t, e.companies.SetCompanyID(ctx, companies[1].ID, companies[1].Name))
	users, err = e.client.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@codigos.test", users[0].Email)

	require.NoError(t, e.companies.SetCompanyID(ctx, 99, ""))
	_, err = e.client.Users(ctx)
	assert.Equal(t, http.StatusForbidden, httpclient.StatusCode(err))
	assert.True(t, e.sess.IsAuthenticated(), "403 keeps the session")
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signIn(t, "root@codigos.test", "root-pass")

	catalogue, err := e.client.Permissions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, catalogue)
	assert.Equal(t, "USERS:CREATE", catalogue[0].Key)

	perms, err := e.client.SetUserPermissions(ctx, 3, []int64{catalogue[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"USERS:READ"}, perms)

	perms, err = e.client.AddUserPermissions(ctx, 3, []int64{catalogue[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"USERS:CREATE", "USERS:READ"}, perms)

	perms, err = e.client.RemoveUserPermissions(ctx, 3, []int64{catalogue[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"USERS:CREATE"}, perms)

	perms, err = e.client.UserPermissions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"USERS:CREATE"}, perms)

	perms, err = e.client.SetUserPermissions(ctx, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signIn(t, "root@codigos.test", "root-pass")

	created, err := e.client.CreateUser(ctx, &NewUser{
		Email:    "nuevo@codigos.test",
		Password: "secret1",
		Nombre:   "Nuevo",
		BaseRole: "EMPLOYEE",
	})
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", created.Nombre)
	assert.Equal(t, "ACTIVE", created.Status)

	name := "Renombrado"
	updated, err := e.client.UpdateUser(ctx, created.ID, UserPatch{Nombre: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renombrado", updated.Nombre)
	assert.Equal(t, "nuevo@codigos.test", updated.Email, "absent fields are untouched")
	assert.Equal(t, "EMPLOYEE", updated.Role)

	require.NoError(t, e.client.DeleteUser(ctx, created.ID))
	err = e.client.DeleteUser(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, httpclient.StatusCode(err))

	_, err = e.client.CreateUser(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestForbiddenForEmployee(t *testing.T) {
	e := newEnv(t)
	e.signIn(t, "empleado@codigos.test", "empleado-pass")

	_, err := e.client.Users(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httpclient.StatusCode(err))
	assert.Equal(t, "missing permission USERS:READ", err.Error())
}

func TestLoginResponseVariants(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		token   string
		wantErr error
	}{
		{"access_token", `{"access_token":"a.b.c","role":"ADMIN"}`, "a.b.c", nil},
		{"legacy token", `{"token":"x.y.z","role":"EMPLOYEE"}`, "x.y.z", nil},
		{"no token", `{"role":"ADMIN"}`, "", ErrMissingToken},
		{"not json", `<html>`, "", ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, LoginPath, r.URL.Path)
				assert.Empty(t, r.Header.Get(httpclient.HeaderAuthorization))
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			}))
			res, err := e.client.Login(context.Background(), "a@b.test", "pw")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, res.Token)
		})
	}
}

func TestSignInRejectsUnusableToken(t *testing.T) {
	e := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"not-a-jwt"}`))
	}))
	_, err := SignIn(context.Background(), e.client, e.sess, "a@b.test", "pw")
	assert.ErrorIs(t, err, ErrMalformedResponse)
	e.sess.Settle()
	assert.True(t, e.sess.ConsumeSessionExpired())
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	v, err := e.client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mockapi.APIVersion, v.ApiVersion)
	assert.NoError(t, CheckVersion(v))

	assert.NoError(t, CheckVersion(&ServerVersion{ApiVersion: "0.1.9"}))
	assert.ErrorIs(t, CheckVersion(&ServerVersion{ApiVersion: "0.2.0"}), ErrIncompatibleVersion)
	assert.ErrorIs(t, CheckVersion(&ServerVersion{ApiVersion: "garbage"}), ErrIncompatibleVersion)
	assert.ErrorIs(t, CheckVersion(nil), ErrMalformedResponse)
}
