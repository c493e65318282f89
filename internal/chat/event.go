package chat

import "time"

// Kind is the wire discriminator carried in the "type" field of every frame.
type Kind string

// Server to client kinds.
const (
	KindChatMessage     Kind = "chat_message"
	KindUserJoined      Kind = "user_joined"
	KindUserLeft        Kind = "user_left"
	KindUsernameChanged Kind = "username_changed"
	KindUserTyping      Kind = "user_typing"
	KindUserInfo        Kind = "user_info"
	KindMessageHistory  Kind = "message_history"
	KindActiveUsersList Kind = "active_users_list"
	KindError           Kind = "error"
)

// Client to server kinds. chat_message is shared with the outbound set.
const (
	KindChangeUsername Kind = "change_username"
	KindTyping         Kind = "typing"
	KindGetActiveUsers Kind = "get_active_users"
)

// Persisted reports whether events of this kind are kept in the History Log.
func (k Kind) Persisted() bool {
	switch k {
	case KindChatMessage, KindUserJoined, KindUserLeft, KindUsernameChanged:
		return true
	default:
		return false
	}
}

// timestampLayout renders ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Event is an outbound server event. The set of implementations is closed:
// only types in this package satisfy it.
type Event interface {
	Kind() Kind
	isEvent()
}

// ChatMessage is a chat line relayed to every participant.
type ChatMessage struct {
	Type      Kind        `json:"type"`
	ID        string      `json:"id"`
	User      Participant `json:"user"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Room      string      `json:"room"`
}

// UserJoined announces a new session with the roster after the join.
type UserJoined struct {
	Type        Kind          `json:"type"`
	User        Participant   `json:"user"`
	Message     string        `json:"message"`
	ActiveUsers []Participant `json:"activeUsers"`
	Timestamp   string        `json:"timestamp"`
}

// UserLeft announces a departed session with the roster after the removal.
type UserLeft struct {
	Type        Kind          `json:"type"`
	User        Participant   `json:"user"`
	Message     string        `json:"message"`
	ActiveUsers []Participant `json:"activeUsers"`
	Timestamp   string        `json:"timestamp"`
}

// UsernameChanged announces a rename. User carries the new name.
type UsernameChanged struct {
	Type        Kind          `json:"type"`
	User        Participant   `json:"user"`
	OldUsername string        `json:"oldUsername"`
	Message     string        `json:"message"`
	ActiveUsers []Participant `json:"activeUsers"`
	Timestamp   string        `json:"timestamp"`
}

// UserTyping relays a typing indicator. Never persisted.
type UserTyping struct {
	Type     Kind        `json:"type"`
	User     Participant `json:"user"`
	IsTyping bool        `json:"isTyping"`
}

// UserInfo tells a new session who it is.
type UserInfo struct {
	Type Kind        `json:"type"`
	User Participant `json:"user"`
}

// MessageHistory replays the History Log to a new session.
type MessageHistory struct {
	Type Kind    `json:"type"`
	Data []Event `json:"data"`
}

// ActiveUsersList answers a get_active_users request.
type ActiveUsersList struct {
	Type        Kind          `json:"type"`
	ActiveUsers []Participant `json:"activeUsers"`
}

// ErrorEvent reports a rejected application-level request to its sender.
type ErrorEvent struct {
	Type    Kind   `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ChatMessage) Kind() Kind     { return KindChatMessage }
func (UserJoined) Kind() Kind      { return KindUserJoined }
func (UserLeft) Kind() Kind        { return KindUserLeft }
func (UsernameChanged) Kind() Kind { return KindUsernameChanged }
func (UserTyping) Kind() Kind      { return KindUserTyping }
func (UserInfo) Kind() Kind        { return KindUserInfo }
func (MessageHistory) Kind() Kind  { return KindMessageHistory }
func (ActiveUsersList) Kind() Kind { return KindActiveUsersList }
func (ErrorEvent) Kind() Kind      { return KindError }

func (ChatMessage) isEvent()     {}
func (UserJoined) isEvent()      {}
func (UserLeft) isEvent()        {}
func (UsernameChanged) isEvent() {}
func (UserTyping) isEvent()      {}
func (UserInfo) isEvent()        {}
func (MessageHistory) isEvent()  {}
func (ActiveUsersList) isEvent() {}
func (ErrorEvent) isEvent()      {}
