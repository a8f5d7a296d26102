// Package audit implements async delivery of session-lifecycle events.
//
// # Components
//
//   - [Sink] — interface for event consumers: [ChannelSink], [JSONWriterSink], [LogSink] (zerolog), [NoOpSink].
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//     Credential-bearing metadata values are replaced with [Redacted] before enqueueing.
//   - [Event] — structured record with timestamp, type, manager instance, login attempt, user, firm, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Manager does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goSession or any sibling internal package.
//   - Carry credentials, OTP codes, or tokens in Metadata.
package audit
