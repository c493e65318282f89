package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 123000000, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *countingRecorder) {
	t.Helper()
	rec := newCountingRecorder()
	h := NewHandler(Options{
		Logger:   zerolog.Nop(),
		Recorder: rec,
		Clock:    func() time.Time { return fixedTime },
	})
	return h, rec
}

func activeUsers(t *testing.T, frame map[string]any) []any {
	t.Helper()
	users, ok := frame["activeUsers"].([]any)
	require.True(t, ok, "activeUsers missing in %v", frame)
	return users
}

func TestHandler_ConnectSendsIdentityAndHistory(t *testing.T) {
	h, rec := newTestHandler(t)
	a := newFakeConn("a")

	s := h.Connect(a)

	frames := a.decoded(t)
	require.Len(t, frames, 3)
	assert.Equal(t, string(KindUserInfo), frames[0]["type"])
	user := frames[0]["user"].(map[string]any)
	assert.Equal(t, s.ID, user["id"])
	assert.Equal(t, s.DisplayName, user["username"])

	assert.Equal(t, string(KindMessageHistory), frames[1]["type"])
	assert.Equal(t, []any{}, frames[1]["data"])

	assert.Equal(t, string(KindUserJoined), frames[2]["type"])
	assert.Equal(t, s.DisplayName+" se ha unido al chat", frames[2]["message"])
	assert.Len(t, activeUsers(t, frames[2]), 1)
	assert.Equal(t, "2024-03-09T14:05:07.123Z", frames[2]["timestamp"])

	assert.Equal(t, 1, rec.active)
}

func TestHandler_JoinAndLeaveCarryPostMutationSnapshot(t *testing.T) {
	h, rec := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Connect(a)
	a.reset()

	sb := h.Connect(b)

	joined := a.ofKind(t, KindUserJoined)
	require.Len(t, joined, 1)
	assert.Len(t, activeUsers(t, joined[0]), 2)
	require.Len(t, b.ofKind(t, KindUserJoined), 1)
	assert.Len(t, activeUsers(t, b.ofKind(t, KindUserJoined)[0]), 2)

	a.reset()
	b.closed = true
	_, ok := h.Disconnect("b")
	require.True(t, ok)

	left := a.ofKind(t, KindUserLeft)
	require.Len(t, left, 1)
	users := activeUsers(t, left[0])
	require.Len(t, users, 1)
	assert.NotEqual(t, sb.ID, users[0].(map[string]any)["id"])
	assert.Equal(t, sb.DisplayName+" ha abandonado el chat", left[0]["message"])
	assert.Equal(t, 1, rec.active)
}

func TestHandler_ConnectTwiceAnnouncesOnce(t *testing.T) {
	h, _ := newTestHandler(t)
	a := newFakeConn("a")

	first := h.Connect(a)
	second := h.Connect(a)

	assert.Same(t, first, second)
	assert.Equal(t, 1, h.Roster().Len())
	assert.Len(t, a.ofKind(t, KindUserInfo), 1)
	assert.Len(t, a.ofKind(t, KindMessageHistory), 1)
	assert.Len(t, a.ofKind(t, KindUserJoined), 1)
	assert.Equal(t, 1, h.History().Len())
}

func TestHandler_DisconnectIsIdempotent(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Connect(a)
	h.Connect(b)
	a.reset()
	historyBefore := h.History().Len()

	_, first := h.Disconnect("b")
	_, second := h.Disconnect("b")

	assert.True(t, first)
	assert.False(t, second)
	assert.Len(t, a.ofKind(t, KindUserLeft), 1)
	assert.Equal(t, historyBefore+1, h.History().Len())
}

func TestHandler_ChatMessageBroadcastToAll(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	sa := h.Connect(a)
	h.Connect(b)
	a.reset()
	b.reset()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"hi"}`)))

	for _, c := range []*fakeConn{a, b} {
		msgs := c.ofKind(t, KindChatMessage)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hi", msgs[0]["content"])
		assert.Equal(t, "general", msgs[0]["room"])
		assert.Equal(t, "2024-03-09T14:05:07.123Z", msgs[0]["timestamp"])
		assert.NotEmpty(t, msgs[0]["id"])
		assert.Equal(t, sa.ID, msgs[0]["user"].(map[string]any)["id"])
	}

	last := h.History().Snapshot()[h.History().Len()-1]
	assert.Equal(t, KindChatMessage, last.Kind())
}

func TestHandler_ChatMessageKeepsRoomAndIgnoresClientTimestamp(t *testing.T) {
	h, _ := newTestHandler(t)
	a := newFakeConn("a")
	h.Connect(a)
	a.reset()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"x","room":"dev","timestamp":"1999-01-01T00:00:00Z"}`)))

	msgs := a.ofKind(t, KindChatMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "dev", msgs[0]["room"])
	assert.Equal(t, "2024-03-09T14:05:07.123Z", msgs[0]["timestamp"])
}

func TestHandler_EmptyChatMessageIsDropped(t *testing.T) {
	h, rec := newTestHandler(t)
	a := newFakeConn("a")
	h.Connect(a)
	a.reset()
	before := h.History().Len()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"   "}`)))

	assert.Empty(t, a.frames)
	assert.Equal(t, before, h.History().Len())
	assert.Equal(t, 1, rec.dropped[DropEmpty])
}

func TestHandler_RenameBroadcastsAndRecords(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	sa := h.Connect(a)
	h.Connect(b)
	sa.DisplayName = "Usuario42"
	a.reset()
	b.reset()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"change_username","newUsername":"Ana"}`)))

	for _, c := range []*fakeConn{a, b} {
		changed := c.ofKind(t, KindUsernameChanged)
		require.Len(t, changed, 1)
		assert.Equal(t, "Usuario42 ahora es Ana", changed[0]["message"])
		assert.Equal(t, "Usuario42", changed[0]["oldUsername"])
		assert.Equal(t, "Ana", changed[0]["user"].(map[string]any)["username"])

		users := activeUsers(t, changed[0])
		require.Len(t, users, 2)
		assert.Equal(t, "Ana", users[0].(map[string]any)["username"])
	}

	last := h.History().Snapshot()[h.History().Len()-1]
	assert.Equal(t, KindUsernameChanged, last.Kind())
}

func TestHandler_InvalidRenameIsSilent(t *testing.T) {
	for _, name := range []string{"", "   "} {
		h, _ := newTestHandler(t)
		a := newFakeConn("a")
		s := h.Connect(a)
		original := s.DisplayName
		a.reset()
		before := h.History().Len()

		require.NoError(t, h.HandleFrame("a", []byte(`{"type":"change_username","newUsername":"`+name+`"}`)))

		assert.Equal(t, original, s.DisplayName)
		assert.Empty(t, a.frames)
		assert.Equal(t, before, h.History().Len())
	}
}

func TestHandler_UnchangedRenameIsSilent(t *testing.T) {
	h, _ := newTestHandler(t)
	a := newFakeConn("a")
	s := h.Connect(a)
	a.reset()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"change_username","newUsername":"`+s.DisplayName+`"}`)))
	assert.Empty(t, a.frames)
}

func TestHandler_TooLongRenameReportsErrorToSenderOnly(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	s := h.Connect(a)
	h.Connect(b)
	original := s.DisplayName
	a.reset()
	b.reset()

	err := h.HandleFrame("a", []byte(`{"type":"change_username","newUsername":"`+strings.Repeat("x", 21)+`"}`))

	assert.ErrorIs(t, err, ErrUsernameTooLong)
	assert.Equal(t, original, s.DisplayName)
	errs := a.ofKind(t, KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "username_too_long", errs[0]["code"])
	assert.Empty(t, b.frames)
}

func TestHandler_TypingReachesSenderToo(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Connect(a)
	h.Connect(b)
	a.reset()
	b.reset()
	before := h.History().Len()

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"typing","isTyping":true}`)))

	for _, c := range []*fakeConn{a, b} {
		typing := c.ofKind(t, KindUserTyping)
		require.Len(t, typing, 1)
		assert.Equal(t, true, typing[0]["isTyping"])
	}
	assert.Equal(t, before, h.History().Len(), "typing is never persisted")
}

func TestHandler_GetActiveUsersRepliesToRequesterOnly(t *testing.T) {
	h, _ := newTestHandler(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Connect(a)
	h.Connect(b)
	a.reset()
	b.reset()

	require.NoError(t, h.HandleFrame("b", []byte(`{"type":"get_active_users"}`)))

	assert.Empty(t, a.frames)
	list := b.ofKind(t, KindActiveUsersList)
	require.Len(t, list, 1)
	assert.Len(t, activeUsers(t, list[0]), 2)
}

func TestHandler_MalformedFramesAreDropped(t *testing.T) {
	h, rec := newTestHandler(t)
	a := newFakeConn("a")
	h.Connect(a)
	a.reset()

	assert.ErrorIs(t, h.HandleFrame("a", []byte(`{not json`)), ErrMalformedFrame)
	assert.ErrorIs(t, h.HandleFrame("a", []byte(`{"type":"wave"}`)), ErrUnknownKind)
	assert.ErrorIs(t, h.HandleFrame("a", []byte(`{"type":"typing"}`)), ErrInvalidFrame)
	assert.Empty(t, a.frames)
	assert.Equal(t, 1, rec.dropped[DropMalformed])
	assert.Equal(t, 1, rec.dropped[DropUnknownKind])
	assert.Equal(t, 1, rec.dropped[DropInvalid])

	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"still here"}`)))
	assert.Len(t, a.ofKind(t, KindChatMessage), 1)
}

func TestHandler_FramesFromUnknownConnectionsAreIgnored(t *testing.T) {
	h, _ := newTestHandler(t)
	assert.NoError(t, h.HandleFrame("ghost", []byte(`{"type":"chat_message","content":"boo"}`)))
	assert.Equal(t, 0, h.History().Len())
}

func TestHandler_ReplayForLateJoiner(t *testing.T) {
	h, _ := newTestHandler(t)
	a := newFakeConn("a")
	sa := h.Connect(a)
	sa.DisplayName = "Usuario42"
	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"first"}`)))
	require.NoError(t, h.HandleFrame("a", []byte(`{"type":"change_username","newUsername":"Ana"}`)))

	b := newFakeConn("b")
	h.Connect(b)

	replay := b.ofKind(t, KindMessageHistory)
	require.Len(t, replay, 1)
	data := replay[0]["data"].([]any)
	require.Len(t, data, 3)
	assert.Equal(t, string(KindUserJoined), data[0].(map[string]any)["type"])
	chat := data[1].(map[string]any)
	assert.Equal(t, string(KindChatMessage), chat["type"])
	assert.Equal(t, "Usuario42", chat["user"].(map[string]any)["username"], "history is not rewritten on rename")
	assert.Equal(t, string(KindUsernameChanged), data[2].(map[string]any)["type"])
}

func TestHandler_HistoryBoundedUnderTraffic(t *testing.T) {
	rec := newCountingRecorder()
	h := NewHandler(Options{Logger: zerolog.Nop(), Recorder: rec, HistoryLimit: 100})
	a := newFakeConn("a")
	h.Connect(a)

	for i := 0; i < 150; i++ {
		require.NoError(t, h.HandleFrame("a", []byte(`{"type":"chat_message","content":"spam"}`)))
	}

	assert.Equal(t, 100, h.History().Len())
	assert.Equal(t, 100, rec.history)
	for _, ev := range h.History().Snapshot() {
		assert.Equal(t, KindChatMessage, ev.Kind())
	}
}
