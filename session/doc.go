// Package session provides the persistence adapter for goSession: a small key-value
// [Backend] abstraction with Redis and in-memory implementations, and a [Store] that
// writes versioned JSON envelopes under stable, namespaced keys.
//
// # Envelope encoding
//
// Every persisted projection is wrapped as {"version":N,"savedAt":ms,"data":...}.
// [CurrentSchemaVersion] is written on save; [Decode] rejects versions it does not
// know so a future migration can be added without misreading old blobs.
//
// # Architecture boundaries
//
// This package owns keys, encoding, and backend I/O. It does NOT decide which
// fields are persisted or when; the Manager chooses the projections and calls
// [Store.Save] after each mutation.
//
// # What this package must NOT do
//
//   - Import goSession (no upward imports).
//   - Persist transient request bookkeeping such as loading or error flags.
//   - Store credentials, OTP codes, or login session tokens.
package session
