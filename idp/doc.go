// Package idp implements the outbound interface to the Identity Provider:
// the token-endpoint exchanges (authorization code and refresh token) and
// the claims-verification capability.
//
// The package deliberately talks to the token endpoint over plain HTTP
// rather than through an OAuth2 client library, because the gateway's
// failure handling depends on distinguishing transport failures from
// structured protocol errors and malformed success responses, including a
// 200 response whose body carries an error field. The error taxonomy is
// expressed as the TransportError, ProtocolError and MalformedResponseError
// types.
//
// Signature and expiry verification of ID Tokens is delegated to an
// external validation capability behind the ClaimsVerifier interface; this
// package never verifies signatures itself.
package idp
