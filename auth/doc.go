// Package auth authenticates callers of the tool HTTP surface.
//
// Two methods are supported: HMAC-signed JWT bearer tokens and static API
// keys stored as SHA-256 hashes. Authenticators are tried in order by a
// Chain, and Middleware attaches the resulting Identity to the request
// context.
package auth
