// Package server implements the broadcast engine that fans outbound events
// to room members.
package server

import "log/slog"

// Broadcaster delivers events to rooms and to single connections. Delivery
// is best-effort: a recipient that cannot accept an event is logged and
// skipped, and never aborts delivery to the remaining recipients.
type Broadcaster struct {
	registry *Registry
	sessions *SessionTable
	log      *slog.Logger
}

// NewBroadcaster wires the engine to the registry it snapshots membership
// from and the session table it resolves sinks through.
func NewBroadcaster(registry *Registry, sessions *SessionTable, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, sessions: sessions, log: log}
}

// Room delivers an event to every current member of a room except exclude
// (pass "" to include everyone). The recipient set is an atomic membership
// snapshot, so a connection that concurrently left the room within the same
// logical operation is never delivered to. Per-recipient ordering of events
// issued by one operation is preserved by the sinks' FIFO queues.
func (b *Broadcaster) Room(roomID string, e Envelope, exclude string) {
	for _, connID := range b.registry.memberConns(roomID) {
		if connID == exclude {
			continue
		}
		b.Direct(connID, e)
	}
}

// Direct delivers an event to exactly one connection. A sink that panics is
// treated the same as one that refused delivery.
func (b *Broadcaster) Direct(connID string, e Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("recovered from panic delivering event", "conn", connID, "event", e.Event, "panic", r)
		}
	}()

	sink, ok := b.sessions.sink(connID)
	if !ok {
		b.log.Debug("dropping event for unknown connection", "conn", connID, "event", e.Event)
		return
	}
	if !sink.Deliver(e) {
		b.log.Warn("failed to deliver event", "conn", connID, "event", e.Event)
	}
}
