package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/httpx"
)

// TimeoutHeader reports the server-side budget of a request.
const TimeoutHeader = "X-Codigos-Timeout"

// SetTimeout creates middleware that enforces a timeout for request handling. If the request
// exceeds the specified duration, it returns a timeout error response. Writes from the
// handler after the deadline are discarded.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			w.Header().Set(TimeoutHeader, timeout.String())
			tw := &timeoutWriter{rw: httpx.NewResponseWriter(w)}
			r = r.WithContext(ctx)

			done := make(chan struct{})
			go func() {
				defer func() {
					if p := recover(); p != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
						tw.fail(httpx.ErrApplicationError())
					}
					close(done)
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				tw.fail(httpx.ErrRequestTimeout())
				log.Ctx(ctx).Error().Msg("request timed out")
				return
			}
		})
	}
}

// timeoutWriter serialises the handler's writes with the timeout response.
type timeoutWriter struct {
	mu       sync.Mutex
	rw       *httpx.ResponseWriter
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.rw.Header()
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.rw.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	return tw.rw.Write(b)
}

// fail sends e unless the handler already started the response.
func (tw *timeoutWriter) fail(e *httpx.Error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.rw.Written() {
		tw.timedOut = true
		return
	}
	tw.timedOut = true
	e.Send(tw.rw)
}
