package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request is a decoded client frame. The set of implementations is closed.
type Request interface {
	Kind() Kind
	isRequest()
}

// SendChatMessage asks the server to relay a chat line.
type SendChatMessage struct {
	Content string `json:"content"`
	Room    string `json:"room,omitempty"`
}

// ChangeUsername asks the server to rename the sender.
type ChangeUsername struct {
	NewUsername string `json:"newUsername"`
}

// SetTyping reports the sender's typing state.
type SetTyping struct {
	IsTyping bool `json:"isTyping"`
}

// GetActiveUsers asks for the current participant list.
type GetActiveUsers struct{}

func (SendChatMessage) Kind() Kind { return KindChatMessage }
func (ChangeUsername) Kind() Kind  { return KindChangeUsername }
func (SetTyping) Kind() Kind       { return KindTyping }
func (GetActiveUsers) Kind() Kind  { return KindGetActiveUsers }

func (SendChatMessage) isRequest() {}
func (ChangeUsername) isRequest()  {}
func (SetTyping) isRequest()       {}
func (GetActiveUsers) isRequest()  {}

var requestSchemas = map[Kind]string{
	KindChatMessage: `{
		"type": "object",
		"required": ["type", "content"],
		"properties": {
			"type": {"enum": ["chat_message"]},
			"content": {"type": "string"},
			"room": {"type": "string"}
		}
	}`,
	KindChangeUsername: `{
		"type": "object",
		"required": ["type", "newUsername"],
		"properties": {
			"type": {"enum": ["change_username"]},
			"newUsername": {"type": "string"}
		}
	}`,
	KindTyping: `{
		"type": "object",
		"required": ["type", "isTyping"],
		"properties": {
			"type": {"enum": ["typing"]},
			"isTyping": {"type": "boolean"}
		}
	}`,
	KindGetActiveUsers: `{
		"type": "object",
		"required": ["type"],
		"properties": {
			"type": {"enum": ["get_active_users"]}
		}
	}`,
}

var compiledSchemas = compileSchemas(requestSchemas)

func compileSchemas(src map[Kind]string) map[Kind]*gojsonschema.Schema {
	out := make(map[Kind]*gojsonschema.Schema, len(src))
	for kind, doc := range src {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			panic(fmt.Sprintf("chat: invalid schema for %s: %v", kind, err))
		}
		out[kind] = schema
	}
	return out
}

type envelope struct {
	Type *string `json:"type"`
}

// DecodeRequest parses and validates a client frame. It returns
// ErrMalformedFrame when the frame is not a JSON object with a string type,
// ErrUnknownKind for unsupported kinds and ErrInvalidFrame when a known kind
// does not match its schema.
func DecodeRequest(frame []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	kind := Kind(*env.Type)

	schema, ok := compiledSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidFrame, kind, strings.Join(details, "; "))
	}

	var req Request
	switch kind {
	case KindChatMessage:
		var r SendChatMessage
		err = json.Unmarshal(frame, &r)
		req = r
	case KindChangeUsername:
		var r ChangeUsername
		err = json.Unmarshal(frame, &r)
		req = r
	case KindTyping:
		var r SetTyping
		err = json.Unmarshal(frame, &r)
		req = r
	case KindGetActiveUsers:
		req = GetActiveUsers{}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return req, nil
}
