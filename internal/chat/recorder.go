package chat

// Recorder receives relay statistics. Implementations must not block.
type Recorder interface {
	SetActiveSessions(n int)
	SetHistorySize(n int)
	EventDelivered(kind Kind, recipients int)
	FrameDropped(reason string)
}

// Frame drop reasons reported to Recorder.FrameDropped.
const (
	DropMalformed   = "malformed"
	DropInvalid     = "invalid"
	DropUnknownKind = "unknown_kind"
	DropEmpty       = "empty_content"
	DropClosed      = "closed"
	DropQueueFull   = "queue_full"
)

type nopRecorder struct{}

func (nopRecorder) SetActiveSessions(int)    {}
func (nopRecorder) SetHistorySize(int)       {}
func (nopRecorder) EventDelivered(Kind, int) {}
func (nopRecorder) FrameDropped(string)      {}
