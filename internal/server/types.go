package server

import "strings"

// inboundFrame is a raw client frame on its way to the event loop.
type inboundFrame struct {
	client  *Client
	payload []byte
}

// disconnect asks the event loop to deregister a client. cause is nil for an
// orderly close and carries the transport error otherwise.
type disconnect struct {
	client *Client
	cause  error
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
