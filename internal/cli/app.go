package cli

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/api"
	"github.com/codigos/codigos/internal/common/httpclient"
	"github.com/codigos/codigos/internal/companyctx"
	"github.com/codigos/codigos/internal/router"
	"github.com/codigos/codigos/internal/session"
	"github.com/codigos/codigos/internal/storage"
)

const sessionExpiredBanner = "Your session expired. Please log in again."

// App wires the session, the company scope, the route table and the API
// client for one CLI run.
type App struct {
	Config    *Config
	KV        storage.KV
	Session   *session.Manager
	Companies *companyctx.Store
	Router    *router.Router
	API       *api.Client

	closeOnce sync.Once
}

type appOptions struct {
	kv      storage.KV
	handler http.Handler
	clock   session.Clock
}

// AppOption customises NewApp.
type AppOption func(*appOptions)

// WithStorage uses kv instead of the backend named in the config.
func WithStorage(kv storage.KV) AppOption {
	return func(o *appOptions) {
		o.kv = kv
	}
}

// WithBackend serves requests in-process through h instead of the network.
func WithBackend(h http.Handler) AppOption {
	return func(o *appOptions) {
		o.handler = h
	}
}

// WithSessionClock replaces the clock driving session expiry.
func WithSessionClock(c session.Clock) AppOption {
	return func(o *appOptions) {
		o.clock = c
	}
}

// NewApp builds the application for cfg and restores the saved session. A
// saved token that has run out is torn down before NewApp returns.
func NewApp(ctx context.Context, cfg *Config, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	margin, err := cfg.GetSafetyMargin()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.GetRequestTimeout()
	if err != nil {
		return nil, err
	}

	kv := o.kv
	if kv == nil {
		if kv, err = storage.Open(cfg.StorageOptions()); err != nil {
			return nil, err
		}
	}

	sessOpts := []session.Option{session.WithSafetyMargin(margin)}
	if o.clock != nil {
		sessOpts = append(sessOpts, session.WithClock(o.clock))
	}
	sess := session.NewManager(session.NewStore(kv), sessOpts...)

	companies, err := companyctx.Load(ctx, kv)
	if err != nil {
		return nil, err
	}
	rt, err := router.New(sess, router.DefaultRoutes(companies))
	if err != nil {
		return nil, err
	}
	sess.SetNavigator(rt)

	retries := cfg.Retries
	if retries == 0 {
		retries = httpclient.DefaultRetries
	}
	clientOpts := httpclient.ClientOptions{
		Tokens:                sess,
		OnUnauthorized:        sess,
		Companies:             companies,
		Timeout:               timeout,
		Retries:               retries,
		DisableCertValidation: cfg.Insecure,
	}
	var hc httpclient.HTTPClientInterface
	if o.handler != nil {
		hc = httpclient.NewTestClient(cfg, o.handler, clientOpts)
	} else {
		hc = httpclient.NewClient(cfg, clientOpts)
	}

	app := &App{
		Config:    cfg,
		KV:        kv,
		Session:   sess,
		Companies: companies,
		Router:    rt,
		API:       api.New(hc),
	}
	if err := sess.Restore(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("unable to restore session")
	}
	sess.Settle()
	return app, nil
}

// ConsumeExpiredNotice reports, once, that the session ended on its own.
func (a *App) ConsumeExpiredNotice() bool {
	return a.Session.ConsumeSessionExpired()
}

// Close stops the session timer and releases the storage backend.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Session.Close()
		if c, ok := a.KV.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("unable to close storage")
			}
		}
	})
}

type appContextKey string

const appKey appContextKey = "CodigosApp"

func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

func appFromContext(ctx context.Context) *App {
	if ctx == nil {
		return nil
	}
	app, _ := ctx.Value(appKey).(*App)
	return app
}
