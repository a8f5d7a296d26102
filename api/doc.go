// Package api is an HTTP implementation of goSession.AuthAPI and
// permission.Source.
//
// The client speaks the JSON auth backend: /auth/login, /auth/verify-otp,
// /auth/logout, /auth/me and /permissions/my. It keeps the access token and
// the last known user in memory, holds the refresh cookie in a cookie jar, and
// classifies every non-2xx status into a *goSession.APIError.
//
// # Architecture boundaries
//
// api depends on goSession and permission for its result types. It does not
// touch the Manager; the Manager reaches it only through the AuthAPI,
// AccessTokenSource and permission.Source interfaces.
//
// # What this package must NOT do
//
//   - Log request bodies, passwords, OTP codes or tokens.
//   - Retry requests. Retry policy belongs to the caller.
package api
