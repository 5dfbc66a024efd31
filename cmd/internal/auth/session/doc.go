// Package session issues and verifies the signed session tokens carried in
// the "token" cookie.
//
// Tokens are stateless: they bind a user id and username and are checked by
// signature (and expiry, when a TTL is configured). Two formats are supported:
// HS256 JWTs with "_id"/"username" claims, compatible with tokens minted by
// earlier deployments, and PASETO v4.public.
package session
