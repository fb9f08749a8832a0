// Package session owns the client's bearer token and the identity cached
// next to it. A Manager decodes the token's claims, schedules a proactive
// logout shortly before the token expires and answers the authentication and
// permission questions asked by the router and the REST client.
//
// Authentication is never stored as a flag. It is recomputed from the token
// and the clock on every call, so readers that poll between timer ticks still
// see the right answer.
//
// Teardown comes in two flavours. Logout is user initiated: it clears state
// and nothing else. ForceSessionExpired is system initiated (timer, stale
// token, or a 401 from the backend): it clears state, raises a one-shot
// "session expired" flag for the login view and asks the Navigator to show
// the login route. Forced expiry is idempotent while a teardown is in flight.
package session
