// Package server implements the connection-event dispatcher: the state
// machine that turns inbound transport events into registry mutations and
// outbound broadcasts.
package server

import (
	"fmt"
	"log/slog"
)

// Dispatcher routes join, message, leave and disconnect events for all live
// connections. Each connection delivers its events from a single goroutine;
// the shared registry and session table serialize internally, so concurrent
// events from different connections interleave safely.
type Dispatcher struct {
	registry  *Registry
	sessions  *SessionTable
	broadcast *Broadcaster
	log       *slog.Logger
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(registry *Registry, sessions *SessionTable, broadcast *Broadcaster, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		sessions:  sessions,
		broadcast: broadcast,
		log:       log,
	}
}

// Register creates an Unjoined session for a newly accepted connection.
func (d *Dispatcher) Register(connID string, sink Sink) {
	d.sessions.add(&Session{ID: connID, state: stateUnjoined, sink: sink})
	d.log.Debug("session registered", "conn", connID)
}

// ConnectionCount reports the number of live sessions.
func (d *Dispatcher) ConnectionCount() int {
	return d.sessions.Count()
}

// Join handles a join-room event. On success the caller receives a
// room-joined confirmation and a welcome notice, the rest of the room a
// user-joined notice, and the whole room a fresh occupancy message. On
// validation failure the session stays as it was and only the caller hears
// about it.
func (d *Dispatcher) Join(connID string, req JoinRequest) {
	defer d.recoverEvent(connID, EventJoinRoom)

	s, ok := d.sessions.get(connID)
	if !ok {
		return
	}

	// Validate before the implicit leave below so a malformed second join
	// does not eject the connection from its current room.
	if err := ValidateJoin(req); err != nil {
		d.broadcast.Direct(connID, Envelope{Event: EventRoomJoinFailed, Data: JoinFailed{Message: err.Error()}})
		return
	}

	// A second join while joined leaves the old room first, so a connection
	// is never a member of two rooms at once.
	if s.state == stateJoined {
		d.leave(s)
	}

	snap, err := d.registry.Join(connID, req)
	if err != nil {
		d.broadcast.Direct(connID, Envelope{Event: EventRoomJoinFailed, Data: JoinFailed{Message: err.Error()}})
		return
	}

	s.Name = req.UserName
	s.Room = snap.RoomID
	s.state = stateJoined

	d.broadcast.Direct(connID, Envelope{Event: EventRoomJoined, Data: RoomJoined{
		RoomID:   snap.RoomID,
		UserName: req.UserName,
		Users:    snap.Members,
	}})
	d.broadcast.Direct(connID, Envelope{Event: EventMessage, Data: ChatMessage{
		Message:   fmt.Sprintf("Welcome to %s, %s!", snap.RoomID, req.UserName),
		Timestamp: timestamp(),
		IsSystem:  true,
	}})
	d.broadcast.Room(snap.RoomID, Envelope{Event: EventUserJoined, Data: UserEvent{
		UserName:  req.UserName,
		Timestamp: timestamp(),
	}}, connID)
	d.broadcast.Room(snap.RoomID, Envelope{Event: EventMessage, Data: occupancyNotice(len(snap.Members))}, "")

	d.log.Info("user joined room", "conn", connID, "user", req.UserName, "room", snap.RoomID)
}

// Message handles an inbound chat message. The sanitized message is echoed to
// the whole room including the sender, so every member shares the same view.
func (d *Dispatcher) Message(connID string, body string) {
	defer d.recoverEvent(connID, EventMessage)

	s, ok := d.sessions.get(connID)
	if !ok {
		return
	}
	if s.state != stateJoined {
		perr := &ProtocolError{Reason: "You must join a room first"}
		d.broadcast.Direct(connID, Envelope{Event: EventError, Data: ErrorEvent{Message: perr.Error()}})
		return
	}
	if err := ValidateMessage(body); err != nil {
		d.broadcast.Direct(connID, Envelope{Event: EventError, Data: ErrorEvent{Message: err.Error()}})
		return
	}

	d.broadcast.Room(s.Room, Envelope{Event: EventMessage, Data: ChatMessage{
		Message:   Sanitize(body),
		Timestamp: timestamp(),
		UserName:  s.Name,
		RoomID:    s.Room,
		IsSystem:  false,
	}}, "")
}

// Leave handles an explicit leave-room event. The session survives and may
// join another room later. A leave while Unjoined is a no-op.
func (d *Dispatcher) Leave(connID string) {
	defer d.recoverEvent(connID, EventLeaveRoom)

	s, ok := d.sessions.get(connID)
	if !ok || s.state != stateJoined {
		return
	}
	d.leave(s)
}

// Disconnect tears the session down when the transport connection closes.
// Calling it again for the same connection finds no session and does
// nothing, so cleanup runs exactly once however the disconnect arrives.
func (d *Dispatcher) Disconnect(connID string, reason string) {
	defer d.recoverEvent(connID, "disconnect")

	s, ok := d.sessions.remove(connID)
	if !ok {
		return
	}
	if s.state == stateJoined {
		d.leave(s)
	}
	s.state = stateTerminated
	d.log.Info("session terminated", "conn", connID, "reason", reason)
}

// leave runs the shared leave-room semantics: registry removal, a user-left
// notice to the remaining members and, if any are left, a fresh occupancy
// message.
func (d *Dispatcher) leave(s *Session) {
	dep, ok := d.registry.Leave(s.ID)
	if ok {
		d.broadcast.Room(dep.RoomID, Envelope{Event: EventUserLeft, Data: UserEvent{
			UserName:  dep.UserName,
			Timestamp: timestamp(),
		}}, s.ID)
		if dep.Remaining > 0 {
			d.broadcast.Room(dep.RoomID, Envelope{Event: EventMessage, Data: occupancyNotice(dep.Remaining)}, "")
		}
		d.log.Info("user left room", "conn", s.ID, "user", dep.UserName, "room", dep.RoomID)
	}
	s.Room = ""
	s.state = stateUnjoined
}

// occupancyNotice formats the "N users online" system message.
func occupancyNotice(n int) ChatMessage {
	text := fmt.Sprintf("%d users online", n)
	if n == 1 {
		text = "1 user online"
	}
	return ChatMessage{Message: text, Timestamp: timestamp(), IsSystem: true}
}

// recoverEvent converts a panic inside event handling into a logged internal
// error plus a generic error event to the originating connection. One
// connection's failure never reaches another session.
func (d *Dispatcher) recoverEvent(connID, event string) {
	if r := recover(); r != nil {
		d.log.Error("panic in event handler", "conn", connID, "event", event, "panic", r)
		d.broadcast.Direct(connID, Envelope{Event: EventError, Data: ErrorEvent{Message: "internal server error"}})
	}
}
