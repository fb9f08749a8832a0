package api

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/session"
)

// SignIn logs in, installs the token in sess and loads the profile. A
// profile failure leaves the token installed; the caller can retry Me.
func SignIn(ctx context.Context, c *Client, sess *session.Manager, email, password string) (*session.Identity, error) {
	res, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := sess.SetToken(ctx, res.Token); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("token not persisted")
	}
	if !sess.IsAuthenticated() {
		return nil, ErrMalformedResponse.Msg("server issued an unusable token")
	}
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.SetIdentity(ctx, me); err != nil {
		return nil, err
	}
	return sess.Identity(), nil
}

// SignOut clears the session. Signing out is purely local.
func SignOut(ctx context.Context, sess *session.Manager) error {
	return sess.Logout(ctx)
}
