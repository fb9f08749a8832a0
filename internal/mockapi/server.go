// Package mockapi is an in-process stand-in for the Codigos REST backend. It
// issues HS256 access tokens, serves the profile, company, user and
// permission endpoints the client consumes, and answers errors in the same
// {statusCode, message, error} shape as the real service.
package mockapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/httpx"
	"github.com/codigos/codigos/internal/common/logtrace"
	"github.com/codigos/codigos/internal/common/middleware"
)

// CompanyHeader scopes a request to one company.
const CompanyHeader = "x-company-id"

// Server is the mock backend HTTP server.
type Server struct {
	Router *chi.Mux

	cfg       *ConfigParam
	directory *Directory
	tokens    *TokenIssuer
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithTokenIssuer replaces the issuer built from the configuration.
func WithTokenIssuer(t *TokenIssuer) ServerOption {
	return func(s *Server) {
		s.tokens = t
	}
}

// CreateNewServer builds a server and its seeded directory from cfg.
func CreateNewServer(cfg *ConfigParam, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, ErrMockAPI.New("configuration is required")
	}
	directory, err := NewDirectory(cfg)
	if err != nil {
		return nil, err
	}
	expiry, err := cfg.Auth.GetTokenExpiry()
	if err != nil {
		return nil, ErrMockAPI.MsgErr("invalid token expiry", err)
	}
	s := &Server{
		Router:    chi.NewRouter(),
		cfg:       cfg,
		directory: directory,
		tokens:    NewTokenIssuer(cfg.Auth.JWTSecret, expiry, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Directory exposes the backing store.
func (s *Server) Directory() *Directory {
	return s.directory
}

// Tokens exposes the token issuer.
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// MountHandlers sets up all HTTP routes and middleware for the server.
func (s *Server) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.SetTimeout(s.cfg.GetRequestTimeout()))
	if s.cfg.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in mock backend router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

func (s *Server) mountResourceHandlers(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrNotFound("Cannot " + r.Method + " " + r.URL.Path).Send(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrReqMethodNotSupported().Send(w)
	})

	r.Post("/auth/login", httpx.WrapHttpRsp(s.login))
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuthMiddleware)
		r.Get("/auth/me", httpx.WrapHttpRsp(s.me))
		r.With(requirePermission("COMPANIES:READ")).Get("/companies", httpx.WrapHttpRsp(s.listCompanies))
		r.Get("/permissions", httpx.WrapHttpRsp(s.listPermissions))
		r.Route("/users", func(r chi.Router) {
			r.With(requirePermission("USERS:READ")).Get("/", httpx.WrapHttpRsp(s.listUsers))
			r.With(requirePermission("USERS:CREATE")).Post("/", httpx.WrapHttpRsp(s.createUser))
			r.Route("/{id}", func(r chi.Router) {
				r.With(requirePermission("USERS:READ")).Get("/", httpx.WrapHttpRsp(s.getUser))
				r.With(requirePermission("USERS:UPDATE")).Patch("/", httpx.WrapHttpRsp(s.updateUser))
				r.With(requirePermission("USERS:DELETE")).Delete("/", httpx.WrapHttpRsp(s.deleteUser))
				r.With(requirePermission("USERS:READ")).Get("/permissions", httpx.WrapHttpRsp(s.userPermissions))
				r.Group(func(r chi.Router) {
					r.Use(requirePermission("USERS:UPDATE"))
					r.Post("/permissions/set", httpx.WrapHttpRsp(s.mutatePermissions(PermissionsSet)))
					r.Post("/permissions/add", httpx.WrapHttpRsp(s.mutatePermissions(PermissionsAdd)))
					r.Post("/permissions/remove", httpx.WrapHttpRsp(s.mutatePermissions(PermissionsRemove)))
				})
			})
		})
	})
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Codigos Mock Backend: " + Version,
		ApiVersion:    APIVersion,
	}
	httpx.SendJSON(r.Context(), w, http.StatusOK, rsp)
}

func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// HandleCORS provides CORS middleware for browser clients of the mock backend.
func (s *Server) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding", CompanyHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Location", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
