// Package auth attaches bearer tokens to outbound requests.
//
// JWTSource mints short-lived HS256 tokens and reuses each one until it is
// close to expiry. Transport and Doer add the token to every request; Verifier
// checks tokens on the receiving side and RequireBearer guards handlers with
// it.
package auth
