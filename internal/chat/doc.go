// Package chat implements the session registry and broadcast protocol of the
// relay: the Roster of connected sessions, the bounded History Log, the
// Broadcast Engine and the Protocol Handler that turns inbound client frames
// into roster/history mutations and outbound events.
//
// None of the types in this package are safe for concurrent use. They are
// meant to be driven from a single event loop goroutine, which serializes
// every transition and makes locking unnecessary.
package chat
