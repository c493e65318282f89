package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn records every frame it is sent.
type fakeConn struct {
	id       ConnID
	closed   bool
	capacity int
	frames   [][]byte
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: ConnID(id)}
}

func (c *fakeConn) ID() ConnID { return c.id }
func (c *fakeConn) Open() bool { return !c.closed }

func (c *fakeConn) Send(frame []byte) bool {
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

// decoded returns the recorded frames as generic JSON objects.
func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

// ofKind returns the decoded frames whose type is kind.
func (c *fakeConn) ofKind(t *testing.T, kind Kind) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.decoded(t) {
		if m["type"] == string(kind) {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.frames = nil
}

type countingRecorder struct {
	active    int
	history   int
	delivered map[Kind]int
	dropped   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{delivered: map[Kind]int{}, dropped: map[string]int{}}
}

func (r *countingRecorder) SetActiveSessions(n int)         { r.active = n }
func (r *countingRecorder) SetHistorySize(n int)            { r.history = n }
func (r *countingRecorder) EventDelivered(kind Kind, n int) { r.delivered[kind] += n }
func (r *countingRecorder) FrameDropped(reason string)      { r.dropped[reason]++ }
