package mockapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/httpx"
)

func (s *Server) login(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	req := &LoginRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	u, err := s.directory.Authenticate(req.Email, req.Password)
	if err != nil {
		log.Ctx(ctx).Info().Str("email", req.Email).Err(err).Msg("login rejected")
		return nil, err
	}
	token, expiry, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("user_id", u.ID).Time("expires_at", expiry).Msg("login")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &LoginResponse{AccessToken: token, Role: u.Role},
	}, nil
}

func (s *Server) me(r *http.Request) (*httpx.Response, error) {
	u := UserFromContext(r.Context())
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &Me{
			ID:          u.ID,
			Email:       u.Email,
			Role:        u.Role,
			Nombre:      u.Nombre,
			Permissions: u.Permissions,
		},
	}, nil
}

func (s *Server) listCompanies(r *http.Request) (*httpx.Response, error) {
	u := UserFromContext(r.Context())
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   s.directory.CompaniesFor(u),
	}, nil
}

func (s *Server) listPermissions(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   s.directory.Permissions(),
	}, nil
}

// listUsers returns every user, or with x-company-id the owner and members
// of that company. The caller must be able to see the company.
func (s *Server) listUsers(r *http.Request) (*httpx.Response, error) {
	u := UserFromContext(r.Context())
	users := s.directory.Users()

	if raw := strings.TrimSpace(r.Header.Get(CompanyHeader)); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || companyID <= 0 {
			return nil, httpx.ErrInvalidRequest("invalid " + CompanyHeader)
		}
		var scope *Company
		for _, c := range s.directory.CompaniesFor(u) {
			if c.ID == companyID {
				scope = &c
				break
			}
		}
		if scope == nil {
			return nil, httpx.ErrForbidden("company not accessible")
		}
		scoped := users[:0]
		for _, member := range users {
			if s.directory.InCompany(scope.ID, member.ID) {
				scoped = append(scoped, member)
			}
		}
		users = scoped
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   users,
	}, nil
}

func (s *Server) createUser(r *http.Request) (*httpx.Response, error) {
	req := &CreateUserRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	created, err := s.directory.CreateUser(req)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Int64("user_id", created.ID).Msg("user created")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/users/" + strconv.FormatInt(created.ID, 10),
		Response:   created,
	}, nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

func (s *Server) getUser(r *http.Request) (*httpx.Response, error) {
	id, err := userIDParam(r)
	if err != nil {
		return nil, err
	}
	u, err := s.directory.User(id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: u}, nil
}

func (s *Server) updateUser(r *http.Request) (*httpx.Response, error) {
	id, err := userIDParam(r)
	if err != nil {
		return nil, err
	}
	req := &UpdateUserRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	u, err := s.directory.UpdateUser(id, req)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: u}, nil
}

func (s *Server) deleteUser(r *http.Request) (*httpx.Response, error) {
	id, err := userIDParam(r)
	if err != nil {
		return nil, err
	}
	if caller := UserFromContext(r.Context()); caller != nil && caller.ID == id {
		return nil, httpx.ErrInvalidRequest("cannot delete the current user")
	}
	if err := s.directory.DeleteUser(id); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (s *Server) userPermissions(r *http.Request) (*httpx.Response, error) {
	id, err := userIDParam(r)
	if err != nil {
		return nil, err
	}
	u, err := s.directory.User(id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: u.Permissions}, nil
}

func (s *Server) mutatePermissions(mode PermissionMode) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		id, err := userIDParam(r)
		if err != nil {
			return nil, err
		}
		req := &PermissionIDsRequest{}
		if err := httpx.GetRequestData(r, req); err != nil {
			return nil, err
		}
		perms, err := s.directory.UpdatePermissions(id, req.PermissionIDs, mode)
		if err != nil {
			return nil, err
		}
		return &httpx.Response{StatusCode: http.StatusOK, Response: perms}, nil
	}
}
