package mockapi

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/httpx"
)

type userContextKey string

const currentUserKey userContextKey = "CodigosUser"

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, ok := ctx.Value(currentUserKey).(*User)
	if !ok {
		return nil
	}
	return u
}

// userAuthMiddleware verifies the bearer token and loads the current state
// of its subject. Deleted or deactivated users are rejected even when their
// token is still valid.
func (s *Server) userAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).Warn().Msg("missing or invalid authorization header")
			httpx.ErrUnAuthorized("missing or invalid authorization header").Send(w)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := s.tokens.Verify(token)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
			httpx.ErrUnAuthorized("invalid authorization. login required").Send(w)
			return
		}
		id, _ := claims.UserID()
		u, err := s.directory.User(id)
		if err != nil || u.Status != StatusActive {
			log.Ctx(ctx).Warn().Int64("user_id", id).Msg("token subject is no longer active")
			httpx.ErrUnAuthorized("invalid authorization. login required").Send(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
	})
}

// requirePermission rejects users lacking key. SUPERADMIN holds every
// permission.
func requirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				httpx.ErrUnAuthorized().Send(w)
				return
			}
			if u.Role != RoleSuperAdmin && !slices.Contains(u.Permissions, key) {
				log.Ctx(r.Context()).Info().Int64("user_id", u.ID).Str("permission", key).Msg("permission denied")
				httpx.ErrForbidden("missing permission " + key).Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
