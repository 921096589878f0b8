package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/uistream"
)

// Frame is the wire envelope for one broadcast UI event. Seq is the
// gateway's own monotonic counter; the embedded event keeps its source
// sequence so observers can reconcile both orderings.
type Frame struct {
	Type      string         `json:"type"`
	Seq       int64          `json:"seq"`
	Timestamp int64          `json:"timestamp"`
	Event     uistream.Event `json:"event"`
}

// EventBroadcaster fans UI events out to every connected observer.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a broadcaster over the given registry.
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{clients: clients, logger: logger}
}

// Broadcast serializes the event once and enqueues it to every client.
// Clients whose buffers are full get disconnected.
func (b *EventBroadcaster) Broadcast(ev uistream.Event) {
	frame := Frame{
		Type:      "ui_event",
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
		Timestamp: time.Now().UnixMilli(),
		Event:     ev,
	}

	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("kind", string(ev.Kind)).
			Int64("seq", frame.Seq).
			Msg("failed to marshal frame")
		return
	}

	for _, client := range b.clients.GetAll() {
		if client.enqueue(data) {
			continue
		}
		b.logger.Warn().
			Str("client_id", client.ID).
			Int64("seq", frame.Seq).
			Msg("dropping slow client")
		b.clients.Remove(client.ID)
		client.close()
	}
}
