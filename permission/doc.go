// Package permission provides the ordered permission levels, immutable permission
// snapshots, and the TTL-bounded cache consulted by goSession authorization checks.
//
// # Levels
//
// Module grants form a total order: none < view < edit < full. Every check compares
// levels with that order, so an edit grant satisfies a view check.
//
// # Cache population
//
// A [Cache] is filled in one of two ways: [Cache.Fetch] calls the firm-scoped
// [Source] when the current snapshot is absent or older than the TTL, and
// [Cache.DeriveFromLogin] synthesizes a snapshot from the login payload of a solo
// operator without any I/O.
//
// # Architecture boundaries
//
// This package owns snapshot construction and the query surface. It does NOT
// decide when to populate the cache (the Manager does) and it does NOT persist
// snapshots (the Manager mirrors them through the session package).
//
// # What this package must NOT do
//
//   - Import goSession, session, or any transport package.
//   - De-duplicate concurrent fetches; concurrent misses may both reach the Source.
//   - Mutate a snapshot after it has been published.
package permission
