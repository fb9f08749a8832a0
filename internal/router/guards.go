package router

import (
	"context"

	"github.com/codigos/codigos/internal/session"
)

// Verdict is the outcome kind of a guard.
type Verdict int

const (
	Allowed Verdict = iota
	Denied
	Redirected
)

// Decision is what a guard answers for a requested route.
type Decision struct {
	Verdict Verdict
	Target  string
}

func Allow() Decision {
	return Decision{Verdict: Allowed}
}

// Deny stops navigation and leaves the current route in place.
func Deny() Decision {
	return Decision{Verdict: Denied}
}

// RedirectTo abandons the requested route in favour of target.
func RedirectTo(target string) Decision {
	return Decision{Verdict: Redirected, Target: target}
}

// Guard decides whether the route may be entered. Guards are plain
// predicates over the route and the session; they never navigate.
type Guard func(ctx context.Context, r *Route, s *session.Manager) Decision

// Landing routes used by the guards.
const (
	PublicHome  = "/correo"
	PrivateHome = "/correo-privado"
	Companies   = "/companies"
	Root        = "/"
)

// AuthGuard admits authenticated users. A token that is held but no longer
// valid triggers a forced expiry, which itself navigates to the login route,
// so the guard only denies. Without any token the user is sent to login.
func AuthGuard(ctx context.Context, _ *Route, s *session.Manager) Decision {
	if s.IsAuthenticated() {
		return Allow()
	}
	if s.HasStaleToken() {
		s.ForceSessionExpired(ctx)
		return Deny()
	}
	return RedirectTo(s.LoginRoute())
}

// AdminGuard admits authenticated ADMIN and SUPERADMIN users.
func AdminGuard(ctx context.Context, r *Route, s *session.Manager) Decision {
	if d := AuthGuard(ctx, r, s); d.Verdict != Allowed {
		return d
	}
	if !s.IsAdmin() {
		return RedirectTo(PublicHome)
	}
	return Allow()
}

// GuestGuard keeps authenticated users away from the login screen.
func GuestGuard(_ context.Context, _ *Route, s *session.Manager) Decision {
	if s.IsAuthenticated() {
		return RedirectTo(PrivateHome)
	}
	return Allow()
}

// PermissionGuard requires every permission listed on the route.
func PermissionGuard(_ context.Context, r *Route, s *session.Manager) Decision {
	if len(r.Permissions) == 0 || s.HasAllPermissions(r.Permissions) {
		return Allow()
	}
	return RedirectTo(Root)
}

// CompanyScope reports whether a company has been selected.
type CompanyScope interface {
	HasCompany() bool
}

// CompanySelectedGuard requires an active company.
func CompanySelectedGuard(companies CompanyScope) Guard {
	return func(_ context.Context, _ *Route, _ *session.Manager) Decision {
		if companies != nil && companies.HasCompany() {
			return Allow()
		}
		return RedirectTo(Companies)
	}
}
