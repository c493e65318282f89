package chat

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Broadcaster serializes events and hands them to session connections.
// Delivery is best-effort: closed connections and full queues are skipped
// and never retried. Removing dead sessions is left to the lifecycle manager.
type Broadcaster struct {
	roster   *Roster
	logger   zerolog.Logger
	recorder Recorder
}

// NewBroadcaster creates a Broadcaster fanning out to the sessions in roster.
func NewBroadcaster(roster *Roster, logger zerolog.Logger, recorder Recorder) *Broadcaster {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Broadcaster{
		roster:   roster,
		logger:   logger,
		recorder: recorder,
	}
}

// SendTo delivers ev to a single connection and reports whether it was queued.
func (b *Broadcaster) SendTo(conn Conn, ev Event) bool {
	payload, ok := b.encode(ev)
	if !ok {
		return false
	}
	if !b.deliver(conn, payload) {
		return false
	}
	b.recorder.EventDelivered(ev.Kind(), 1)
	return true
}

// BroadcastAll delivers ev to every open connection in the roster, sender
// included, and returns the number of connections that accepted it.
func (b *Broadcaster) BroadcastAll(ev Event) int {
	payload, ok := b.encode(ev)
	if !ok {
		return 0
	}

	delivered := 0
	for _, s := range b.roster.Sessions() {
		if b.deliver(s.Conn, payload) {
			delivered++
		}
	}

	b.logger.Debug().
		Str("kind", string(ev.Kind())).
		Int("recipients", delivered).
		Int("sessions", b.roster.Len()).
		Msg("Broadcast complete")
	b.recorder.EventDelivered(ev.Kind(), delivered)
	return delivered
}

func (b *Broadcaster) encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Str("kind", string(ev.Kind())).Msg("Failed to marshal event")
		return nil, false
	}
	return payload, true
}

func (b *Broadcaster) deliver(conn Conn, payload []byte) bool {
	if conn == nil || !conn.Open() {
		b.recorder.FrameDropped(DropClosed)
		return false
	}
	if !conn.Send(payload) {
		b.logger.Warn().Str("conn", string(conn.ID())).Msg("Send queue full; dropping frame")
		b.recorder.FrameDropped(DropQueueFull)
		return false
	}
	return true
}
