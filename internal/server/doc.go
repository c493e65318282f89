// Package server implements the HTTP and WebSocket transport of the chat relay.
//
// The Hub is the connection lifecycle manager: it owns the single event loop
// that feeds accepts, inbound frames and disconnections to the protocol
// handler in internal/chat. Clients run their read and write pumps on their
// own goroutines and only exchange bytes with the loop over channels.
package server
