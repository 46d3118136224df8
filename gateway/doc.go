// Package gateway implements the relying-party core of the OpenID Connect
// Authorization Code flow: the authorization-code exchange, the
// refresh-token exchange, and ID Token claim validation.
//
// The two flows share the same collaborators but apply opposite failure
// policies. An authorization code is single-use, so every code-exchange
// failure is terminal for the request and surfaces as an HTTP error. A
// session can always be re-established through a fresh login, so every
// refresh failure is masked: the stored refresh token is tombstoned and
// the client is redirected back to its original request, which replays and
// falls through into a new login.
//
// Outbound calls are strictly sequential within one request: the claims
// verifier is never invoked until the token-endpoint call has resolved, so
// validation always sees the token just obtained from the IdP.
package gateway
