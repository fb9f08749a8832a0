// Package router maps paths to views and runs the guards attached to each
// route before letting the user in. It is the Navigator a session.Manager
// uses to show the login screen after a forced expiry.
package router

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/logtrace"
	"github.com/codigos/codigos/internal/session"
)

// Wildcard matches any path no other route claims.
const Wildcard = "**"

// DefaultMaxRedirects bounds redirect chains within one navigation.
const DefaultMaxRedirects = 8

// Route is one entry of the route table. A route either redirects or is a
// view guarded by Guards, evaluated in order.
type Route struct {
	Path        string
	RedirectTo  string
	Title       string
	Guards      []Guard
	Permissions []string
}

// URL returns the route's path with a leading slash.
func (r *Route) URL() string {
	if r.Path == Wildcard {
		return Wildcard
	}
	return "/" + r.Path
}

// Listener is notified after a navigation lands on a view.
type Listener func(ctx context.Context, r *Route)

// Router resolves paths against a route table. It is safe for concurrent
// use.
type Router struct {
	sess         *session.Manager
	routes       []*Route
	maxRedirects int

	mu        sync.RWMutex
	current   *Route
	listeners []Listener
}

// New builds a router over routes. Paths are normalised; duplicates and
// routes that neither redirect nor render are rejected.
func New(sess *session.Manager, routes []*Route) (*Router, error) {
	seen := make(map[string]bool, len(routes))
	table := make([]*Route, 0, len(routes))
	for _, r := range routes {
		if r == nil {
			continue
		}
		cp := *r
		cp.Path = Clean(r.Path)
		if seen[cp.Path] {
			return nil, ErrInvalidRouteTable.Msg("duplicate route " + cp.URL())
		}
		seen[cp.Path] = true
		table = append(table, &cp)
	}
	return &Router{
		sess:         sess,
		routes:       table,
		maxRedirects: DefaultMaxRedirects,
	}, nil
}

// Clean strips the query, fragment and surrounding slashes from a path.
func Clean(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.Trim(path, "/")
}

// Match returns the route for path, falling back to the wildcard route.
func (r *Router) Match(path string) *Route {
	p := Clean(path)
	var wildcard *Route
	for _, rt := range r.routes {
		if rt.Path == p {
			return rt
		}
		if rt.Path == Wildcard {
			wildcard = rt
		}
	}
	return wildcard
}

// Routes returns the route table in declaration order.
func (r *Router) Routes() []*Route {
	return append([]*Route(nil), r.routes...)
}

// Current returns the route last navigated to, or nil.
func (r *Router) Current() *Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnNavigate registers a listener for successful navigations.
func (r *Router) OnNavigate(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Navigate resolves path, following redirects from the table and from
// guards, and makes the resulting view current. A guard denial leaves the
// current route untouched and returns ErrNavigationDenied.
func (r *Router) Navigate(ctx context.Context, path string) error {
	target := path
	for hop := 0; hop <= r.maxRedirects; hop++ {
		rt := r.Match(target)
		if rt == nil {
			return ErrRouteNotFound.Msg("route not found: " + target)
		}
		if rt.RedirectTo != "" {
			r.trace(ctx, target, rt.RedirectTo, "table")
			target = rt.RedirectTo
			continue
		}

		d := r.check(ctx, rt)
		switch d.Verdict {
		case Denied:
			log.Ctx(ctx).Debug().Str("route", rt.URL()).Msg("navigation denied")
			return ErrNavigationDenied.Msg("navigation to " + rt.URL() + " denied")
		case Redirected:
			r.trace(ctx, target, d.Target, "guard")
			target = d.Target
			continue
		}

		r.mu.Lock()
		r.current = rt
		listeners := append([]Listener(nil), r.listeners...)
		r.mu.Unlock()

		for _, l := range listeners {
			l(ctx, rt)
		}
		return nil
	}
	return ErrTooManyRedirects.Msg("too many redirects navigating to " + path)
}

func (r *Router) check(ctx context.Context, rt *Route) Decision {
	for _, g := range rt.Guards {
		if d := g(ctx, rt, r.sess); d.Verdict != Allowed {
			return d
		}
	}
	return Allow()
}

func (r *Router) trace(ctx context.Context, from, to, by string) {
	if !logtrace.IsTraceEnabled() {
		return
	}
	log.Ctx(ctx).Debug().Str("from", from).Str("to", to).Str("by", by).Msg("redirect")
}
