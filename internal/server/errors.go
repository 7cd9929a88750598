// Package server defines the error kinds surfaced by the room protocol so
// the dispatcher can translate failures into the right outbound event.
package server

// ValidationError reports a join request or chat message that failed the
// validation gate. It is user-facing and never fatal; no room or session
// state changes when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ProtocolError reports an event received out of sequence, such as a chat
// message from a connection that has not joined a room.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}
