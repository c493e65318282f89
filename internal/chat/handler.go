package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Handler.
type Options struct {
	HistoryLimit      int
	MaxUsernameLength int
	Logger            zerolog.Logger
	Recorder          Recorder
	// Clock overrides time.Now for event timestamps.
	Clock func() time.Time
}

// Handler is the protocol state machine. It owns the Roster and the History
// Log and decides, for every connection event, which mutations happen and
// which events are emitted.
type Handler struct {
	roster      *Roster
	history     *History
	broadcaster *Broadcaster
	logger      zerolog.Logger
	recorder    Recorder
	now         func() time.Time
	maxName     int
}

// NewHandler creates a Handler with its own empty Roster and History Log.
func NewHandler(opts Options) *Handler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxUsernameLength <= 0 {
		opts.MaxUsernameLength = DefaultMaxUsernameLength
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	roster := NewRoster(opts.MaxUsernameLength)
	logger := opts.Logger.With().Str("component", "protocol").Logger()
	return &Handler{
		roster:      roster,
		history:     NewHistory(opts.HistoryLimit),
		broadcaster: NewBroadcaster(roster, logger, opts.Recorder),
		logger:      logger,
		recorder:    opts.Recorder,
		now:         opts.Clock,
		maxName:     opts.MaxUsernameLength,
	}
}

// Roster returns the live roster. Callers must stay on the handler's goroutine.
func (h *Handler) Roster() *Roster {
	return h.roster
}

// History returns the replay buffer. Callers must stay on the handler's goroutine.
func (h *Handler) History() *History {
	return h.history
}

// Connect registers conn, sends it its identity and the replay buffer, then
// announces the join to everyone with the post-join participant list.
// Connecting an already registered conn returns its Session and does nothing else.
func (h *Handler) Connect(conn Conn) *Session {
	if s, ok := h.roster.Get(conn.ID()); ok {
		return s
	}
	s := h.roster.Register(conn)
	h.logger.Info().
		Str("session", s.ID).
		Str("conn", string(conn.ID())).
		Str("username", s.DisplayName).
		Int("total", h.roster.Len()).
		Msg("Session registered")

	h.broadcaster.SendTo(conn, UserInfo{Type: KindUserInfo, User: s.Participant()})
	h.broadcaster.SendTo(conn, MessageHistory{Type: KindMessageHistory, Data: h.history.Snapshot()})

	joined := UserJoined{
		Type:        KindUserJoined,
		User:        s.Participant(),
		Message:     fmt.Sprintf("%s se ha unido al chat", s.DisplayName),
		ActiveUsers: h.roster.Snapshot(),
		Timestamp:   h.timestamp(),
	}
	h.broadcaster.BroadcastAll(joined)
	h.record(joined)
	h.recorder.SetActiveSessions(h.roster.Len())
	return s
}

// HandleFrame decodes a raw client frame and applies it. Malformed, invalid
// and unknown frames are logged and dropped; the connection stays usable.
// The returned error is informational only.
func (h *Handler) HandleFrame(id ConnID, frame []byte) error {
	s, ok := h.roster.Get(id)
	if !ok {
		return nil
	}

	req, err := DecodeRequest(frame)
	if err != nil {
		h.dropFrame(s, err)
		return err
	}
	return h.Dispatch(s, req)
}

// Dispatch applies a decoded request from session s.
func (h *Handler) Dispatch(s *Session, req Request) error {
	switch r := req.(type) {
	case SendChatMessage:
		h.chatMessage(s, r)
	case ChangeUsername:
		return h.changeUsername(s, r)
	case SetTyping:
		h.broadcaster.BroadcastAll(UserTyping{
			Type:     KindUserTyping,
			User:     s.Participant(),
			IsTyping: r.IsTyping,
		})
	case GetActiveUsers:
		h.broadcaster.SendTo(s.Conn, ActiveUsersList{
			Type:        KindActiveUsersList,
			ActiveUsers: h.roster.Snapshot(),
		})
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, req)
	}
	return nil
}

// Disconnect removes the session for id and announces the departure. It is
// idempotent: a second call for the same connection does nothing and returns
// false.
func (h *Handler) Disconnect(id ConnID) (*Session, bool) {
	s, ok := h.roster.Deregister(id)
	if !ok {
		return nil, false
	}
	h.logger.Info().
		Str("session", s.ID).
		Str("conn", string(id)).
		Str("username", s.DisplayName).
		Int("total", h.roster.Len()).
		Msg("Session deregistered")

	left := UserLeft{
		Type:        KindUserLeft,
		User:        s.Participant(),
		Message:     fmt.Sprintf("%s ha abandonado el chat", s.DisplayName),
		ActiveUsers: h.roster.Snapshot(),
		Timestamp:   h.timestamp(),
	}
	h.broadcaster.BroadcastAll(left)
	h.record(left)
	h.recorder.SetActiveSessions(h.roster.Len())
	return s, true
}

func (h *Handler) chatMessage(s *Session, r SendChatMessage) {
	if strings.TrimSpace(r.Content) == "" {
		h.recorder.FrameDropped(DropEmpty)
		return
	}
	room := r.Room
	if room == "" {
		room = DefaultRoom
	}
	msg := ChatMessage{
		Type:      KindChatMessage,
		ID:        uuid.New().String(),
		User:      s.Participant(),
		Content:   r.Content,
		Timestamp: h.timestamp(),
		Room:      room,
	}
	h.record(msg)
	h.broadcaster.BroadcastAll(msg)
}

func (h *Handler) changeUsername(s *Session, r ChangeUsername) error {
	oldName := s.DisplayName
	result, err := h.roster.Rename(s.Conn.ID(), r.NewUsername)
	switch result {
	case RenameRejected:
		h.logger.Warn().Err(err).Str("session", s.ID).Msg("Rename rejected")
		h.broadcaster.SendTo(s.Conn, ErrorEvent{
			Type:    KindError,
			Code:    "username_too_long",
			Message: fmt.Sprintf("El nombre de usuario no puede superar %d caracteres", h.maxName),
		})
		return err
	case RenameIgnored:
		return nil
	}

	h.logger.Info().Str("session", s.ID).Str("from", oldName).Str("to", s.DisplayName).Msg("Username changed")
	changed := UsernameChanged{
		Type:        KindUsernameChanged,
		User:        s.Participant(),
		OldUsername: oldName,
		Message:     fmt.Sprintf("%s ahora es %s", oldName, s.DisplayName),
		ActiveUsers: h.roster.Snapshot(),
		Timestamp:   h.timestamp(),
	}
	h.broadcaster.BroadcastAll(changed)
	h.record(changed)
	return nil
}

func (h *Handler) dropFrame(s *Session, err error) {
	switch {
	case errors.Is(err, ErrUnknownKind):
		h.logger.Debug().Err(err).Str("session", s.ID).Msg("Ignoring frame of unknown kind")
		h.recorder.FrameDropped(DropUnknownKind)
	case errors.Is(err, ErrInvalidFrame):
		h.logger.Warn().Err(err).Str("session", s.ID).Msg("Invalid frame dropped")
		h.recorder.FrameDropped(DropInvalid)
	default:
		h.logger.Warn().Err(err).Str("session", s.ID).Msg("Malformed frame dropped")
		h.recorder.FrameDropped(DropMalformed)
	}
}

func (h *Handler) record(ev Event) {
	h.history.Append(ev)
	h.recorder.SetHistorySize(h.history.Len())
}

func (h *Handler) timestamp() string {
	return formatTimestamp(h.now())
}
