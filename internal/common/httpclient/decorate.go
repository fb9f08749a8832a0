package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/codigos/codigos/internal/common/logtrace"
	"github.com/codigos/codigos/internal/common/uuid"
)

// Headers set on outgoing requests.
const (
	HeaderAuthorization = "Authorization"
	HeaderCompanyID     = "x-company-id"
	HeaderRequestID     = "X-Codigos-Request-ID"
)

// decorator turns RequestOptions into authenticated, company-scoped requests
// and reacts to the responses. It is shared by the network and the
// in-process clients.
type decorator struct {
	config         Configurator
	tokens         TokenSource
	companies      CompanyScope
	onUnauthorized UnauthorizedHandler
}

func newDecorator(config Configurator, opts ClientOptions) decorator {
	return decorator{
		config:         config,
		tokens:         opts.Tokens,
		companies:      opts.Companies,
		onUnauthorized: opts.OnUnauthorized,
	}
}

func cleanPath(p string) string {
	return "/" + strings.Trim(p, "/")
}

// isLogin reports whether p is the login endpoint. The login request never
// carries a bearer and its 401 only means wrong credentials.
func (d *decorator) isLogin(p string) bool {
	login := d.config.GetLoginPath()
	return login != "" && cleanPath(p) == cleanPath(login)
}

// isAuthRoute reports whether p belongs to the authentication endpoints,
// which are never scoped to a company.
func isAuthRoute(p string) bool {
	p = cleanPath(p)
	return strings.Contains(p, "/auth") || strings.Contains(p, "/login")
}

func (d *decorator) newRequest(ctx context.Context, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(d.config.GetServerURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidServerURL.Msg("invalid server URL: " + d.config.GetServerURL())
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, ErrRequestFailed.MsgErr("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestID := logtrace.RequestIdFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set(HeaderRequestID, requestID)

	if d.tokens != nil && !d.isLogin(opts.Path) {
		if token := d.tokens.GetToken(); token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
	}
	if d.companies != nil && !isAuthRoute(opts.Path) {
		if id := d.companies.CompanyID(); id > 0 {
			req.Header.Set(HeaderCompanyID, strconv.FormatInt(id, 10))
		}
	}
	return req, nil
}

// readResponse maps a completed exchange to the caller's result. A 401
// outside the login endpoint forces the session to expire; it is never
// retried.
func (d *decorator) readResponse(ctx context.Context, opts RequestOptions, status int, header http.Header, body []byte) ([]byte, string, error) {
	logger := log.Ctx(ctx)
	logger.Debug().
		Str("method", opts.Method).
		Str("path", cleanPath(opts.Path)).
		Int("status", status).
		Msg("api response")

	if status < 400 {
		return body, header.Get("Location"), nil
	}

	if status == http.StatusUnauthorized && d.onUnauthorized != nil && !d.isLogin(opts.Path) {
		if d.onUnauthorized.ForceSessionExpired(ctx) {
			logger.Info().Str("path", cleanPath(opts.Path)).Msg("server rejected the session")
		}
	}
	return nil, "", &HTTPError{
		StatusCode: status,
		Message:    errorMessage(status, body),
	}
}

// errorMessage extracts a human readable message from an error body. The
// backend reports it under "message" or "error", as a string or a list of
// strings.
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error"} {
			r := gjson.GetBytes(body, key)
			if r.IsArray() {
				var parts []string
				for _, item := range r.Array() {
					if s := item.String(); s != "" {
						parts = append(parts, s)
					}
				}
				if len(parts) > 0 {
					return strings.Join(parts, "; ")
				}
				continue
			}
			if r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	if len(bytes.TrimSpace(body)) == 0 || gjson.ValidBytes(body) {
		if status == http.StatusNotFound {
			return "server doesn't implement this endpoint"
		}
		return http.StatusText(status)
	}
	return string(body)
}
