// Package oidcconnect embeds an OpenID Connect relying party into a
// reverse proxy. It authenticates users against an external Identity
// Provider, keeps token material in a server-side session store keyed by
// an opaque cookie, and transparently refreshes expired sessions.
//
// The HTTP surface is small: a callback endpoint that exchanges the
// authorization code, a validation endpoint answering 204 or 403, and a
// middleware that wraps the proxied application and decides per request
// whether to pass it through, refresh the session in place, or start a
// fresh login.
//
// The flow logic itself lives in the gateway package; this package owns
// configuration, cookies and the HTTP wiring.
package oidcconnect
