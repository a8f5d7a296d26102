// Package goSession provides a client-side authentication session manager: login
// orchestration with OTP and MFA gating, a TTL-bounded permission cache, an event
// bridge for out-of-band authorization signals, and versioned persistence of the
// session projections.
//
// A [Manager] is built once with [Builder.Build] and shared by reference. All
// methods are safe for concurrent use.
//
// # State machine
//
//	Anonymous → Authenticating → {OtpPending, MfaPending, Authenticated, Failed}
//	OtpPending → Authenticating (VerifyOTP) → {MfaPending, Authenticated, Failed}
//	MfaPending → Authenticated (SetUser, driven by an external MFA step)
//
// IsAuthenticated is derived on every read: a user is held and the backend did not
// report it MFA-pending.
//
// # Architecture boundaries
//
// goSession is the public surface. The backend, the permissions endpoint, the
// storage backend, and diagnostics are collaborators behind interfaces ([AuthAPI],
// permission.Source, session.Backend, [Diagnostics]). Reference implementations live
// in the api, session, and middleware packages.
//
// # What this package must NOT do
//
//   - Import api or middleware (they import goSession).
//   - Hold the Manager lock across backend I/O.
//   - Log or persist passwords, OTP codes, or login session tokens.
package goSession
