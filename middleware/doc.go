// Package middleware adapts a goSession.Manager to HTTP, in both directions.
//
// # Guards
//
//   - [Guard] runs a [Rule] against the current session state.
//   - [RequireAuthenticated] admits requests while the session is authenticated.
//   - [RequireModule] additionally checks a module permission level.
//
// Guards protect handlers served locally by the client process (a CLI callback
// server, a desktop shell). They read the Manager; they do not parse tokens.
// The admitted state is injected into the request context.
//
// # Transport
//
// [FeatureGateTransport] wraps outgoing requests to the backend and publishes
// events.FeatureAccessDenied whenever a 403 carries a feature-access code.
//
// # What this package must NOT do
//
//   - Mutate the Manager directly (events go through the bridge).
//   - Perform authorization beyond the cached session and permission snapshot.
package middleware
