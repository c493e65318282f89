package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// RenameResult describes the outcome of a Roster.Rename call.
type RenameResult int

const (
	// Renamed means the display name was changed.
	Renamed RenameResult = iota
	// RenameIgnored means the request was empty, unchanged or for an unknown
	// connection. Nothing changed.
	RenameIgnored
	// RenameRejected means the requested name exceeded the configured maximum.
	RenameRejected
)

// Roster is the live registry of connected sessions keyed by connection id.
// Registration order is preserved so snapshots are deterministic.
type Roster struct {
	sessions map[ConnID]*Session
	order    []ConnID
	maxName  int
}

// NewRoster creates an empty Roster whose display names are limited to
// maxNameLength characters.
func NewRoster(maxNameLength int) *Roster {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxUsernameLength
	}
	return &Roster{
		sessions: make(map[ConnID]*Session),
		maxName:  maxNameLength,
	}
}

// Register creates a Session with a fresh id and placeholder name for conn and
// inserts it. Registering an already known connection returns its Session.
func (r *Roster) Register(conn Conn) *Session {
	if s, ok := r.sessions[conn.ID()]; ok {
		return s
	}
	s := &Session{
		ID:          newSessionID(),
		DisplayName: placeholderName(),
		Conn:        conn,
	}
	r.sessions[conn.ID()] = s
	r.order = append(r.order, conn.ID())
	return s
}

// Deregister removes and returns the Session for id. The second return value
// is false when the connection was never registered or was already removed.
func (r *Roster) Deregister(id ConnID) (*Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return s, true
}

// Get returns the Session registered for id.
func (r *Roster) Get(id ConnID) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Roster) Len() int {
	return len(r.order)
}

// Sessions returns the registered sessions in registration order.
func (r *Roster) Sessions() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// Snapshot returns the current participant list in registration order. It is
// recomputed on every call.
func (r *Roster) Snapshot() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].Participant())
	}
	return out
}

// Rename validates newName and applies it to the session registered for id.
// The name is trimmed first; an empty or unchanged name is ignored and a name
// longer than the maximum is rejected with ErrUsernameTooLong.
func (r *Roster) Rename(id ConnID, newName string) (RenameResult, error) {
	s, ok := r.sessions[id]
	if !ok {
		return RenameIgnored, nil
	}
	name := strings.TrimSpace(newName)
	if name == "" || name == s.DisplayName {
		return RenameIgnored, nil
	}
	if n := utf8.RuneCountInString(name); n > r.maxName {
		return RenameRejected, fmt.Errorf("%w: %d characters, limit is %d", ErrUsernameTooLong, n, r.maxName)
	}
	s.DisplayName = name
	return Renamed, nil
}
