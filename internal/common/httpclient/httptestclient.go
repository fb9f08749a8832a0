package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
)

// TestHTTPClient serves requests in-process through an http.Handler, usually
// the mock backend's router. It uses httptest.NewRecorder to capture
// responses without making network calls, and decorates requests exactly like
// HTTPClient.
type TestHTTPClient struct {
	resources
	decorator
	handler http.Handler
}

// NewTestClient creates a test client that dispatches to handler.
func NewTestClient(config Configurator, handler http.Handler, opts ...ClientOptions) *TestHTTPClient {
	var o ClientOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	c := &TestHTTPClient{
		decorator: newDecorator(config, o),
		handler:   handler,
	}
	c.resources = resources{do: c.DoRequest}
	return c
}

// DoRequest makes an HTTP request with the given options directly to the handler.
// Returns the response body, Location header (if present), and any error that occurred.
func (c *TestHTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, string, error) {
	req, err := c.newRequest(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return c.readResponse(ctx, opts, rr.Code, rr.Header(), rr.Body.Bytes())
}
