package chat

import (
	"strconv"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ConnID identifies a transport connection. It is assigned at accept time and
// is independent of the transport library's own object identity.
type ConnID string

// Conn is the transport-level handle a Session sends through.
type Conn interface {
	// ID returns the identifier assigned to the connection at accept time.
	ID() ConnID
	// Open reports whether the connection can still accept frames.
	Open() bool
	// Send queues a serialized frame and reports whether it was accepted.
	Send(frame []byte) bool
}

// Participant is the public view of a Session as it appears on the wire.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Session is the server-side record of one connected participant.
type Session struct {
	ID          string
	DisplayName string
	Conn        Conn
}

// Participant returns the wire representation of the session.
func (s *Session) Participant() Participant {
	return Participant{ID: s.ID, Username: s.DisplayName}
}

const placeholderPrefix = "Usuario"

// NewConnID returns a fresh random connection identifier.
func NewConnID() ConnID {
	return ConnID(gonanoid.Must())
}

func newSessionID() string {
	return uuid.New().String()
}

// placeholderName returns "Usuario<n>" with n in [0, 999].
func placeholderName() string {
	digits, err := gonanoid.Generate("0123456789", 3)
	if err != nil {
		return placeholderPrefix + "0"
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return placeholderPrefix + "0"
	}
	return placeholderPrefix + strconv.Itoa(n)
}
