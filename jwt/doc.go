// Package jwt reads the claims of access tokens handed to the client so the session
// manager can schedule reconciliation before the token expires.
//
// Tokens are parsed WITHOUT signature verification. The client never holds the
// signing key; verification is the backend's job. Nothing returned by this package
// may be used for an authorization decision.
package jwt
