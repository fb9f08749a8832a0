// Package httpclient provides the HTTP client used to talk to the reseller
// backend. Every request is decorated with the session's bearer token and the
// active company, and an unauthorized response tears the session down. The
// package requires a Configurator implementation for server configuration.
package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

// Configurator provides the server location and the login endpoint.
type Configurator interface {
	GetServerURL() string
	GetLoginPath() string
}

// TokenSource yields the bearer token to attach, or "" for none.
type TokenSource interface {
	GetToken() string
}

// UnauthorizedHandler is told when the server rejects the credential.
type UnauthorizedHandler interface {
	ForceSessionExpired(ctx context.Context) bool
}

// CompanyScope yields the active company id, or 0 for none.
type CompanyScope interface {
	CompanyID() int64
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	Tokens         TokenSource
	OnUnauthorized UnauthorizedHandler
	Companies      CompanyScope

	Timeout               time.Duration // per attempt; 0 means DefaultTimeout
	Retries               uint          // extra attempts for idempotent requests
	RetryDelay            time.Duration // base backoff delay
	DisableCertValidation bool          // If true, skips SSL certificate validation
}

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 2
	DefaultRetryDelay = 200 * time.Millisecond
)

// HTTPClient represents a client for making HTTP requests to a REST API server.
// It handles authentication, request building, and response processing.
type HTTPClient struct {
	resources
	decorator
	httpClient *http.Client
	retries    uint
	retryDelay time.Duration
}

// NewClient creates a new HTTP client using the provided configuration.
// The config parameter must implement the Configurator interface.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	var o ClientOptions
	if len(opts) > 0 {
		o = opts[0]
	} else {
		o.Retries = DefaultRetries
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}

	httpClient := &http.Client{Timeout: o.Timeout}
	if o.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	c := &HTTPClient{
		decorator:  newDecorator(config, o),
		httpClient: httpClient,
		retries:    o.Retries,
		retryDelay: o.RetryDelay,
	}
	c.resources = resources{do: c.DoRequest}
	return c
}

// RequestOptions contains options for making HTTP requests.
// Method and Path are required; QueryParams and Body are optional.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PATCH, DELETE)
	Path        string            // API endpoint path
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
}

func idempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// DoRequest makes an HTTP request with the given options.
// Returns the response body, Location header (if present), and any error that occurred.
// Transport failures of idempotent requests are retried with backoff; server
// responses, including errors, never are.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, string, error) {
	attempts := uint(1)
	if idempotent(opts.Method) {
		attempts += c.retries
	}

	var (
		status int
		header http.Header
		body   []byte
	)
	err := retry.Do(
		func() error {
			req, err := c.newRequest(ctx, opts)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return ErrRequestFailed.MsgErr("request failed: "+err.Error(), err)
			}
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return ErrRequestFailed.MsgErr("failed to read response body", err)
			}
			status, header, body = resp.StatusCode, resp.Header, b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().Uint("attempt", n+1).Err(err).Str("path", cleanPath(opts.Path)).Msg("retrying request")
		}),
	)
	if err != nil {
		return nil, "", err
	}
	return c.readResponse(ctx, opts, status, header, body)
}
