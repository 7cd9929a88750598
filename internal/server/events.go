// Package server declares the wire events exchanged with connected clients.
package server

import (
	"encoding/json"
	"time"
)

// Inbound event names accepted from clients.
const (
	EventJoinRoom  = "join-room"
	EventMessage   = "message"
	EventLeaveRoom = "leave-room"
)

// Outbound event names delivered to clients.
const (
	EventRoomJoined     = "room-joined"
	EventRoomJoinFailed = "room-join-failed"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventError          = "error"
)

// Envelope is the outbound wire frame. Data holds one of the typed payload
// structs below and is marshalled as-is.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame is the raw inbound counterpart of Envelope; the payload stays
// undecoded until the event name selects a payload type.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRequest is the payload of a join-room event.
type JoinRequest struct {
	UserName string `json:"userName" validate:"required,max=30"`
	RoomID   string `json:"roomId" validate:"required,max=20"`
}

// MessageRequest is the payload of an inbound message event.
type MessageRequest struct {
	Message string `json:"message"`
}

// RoomJoined confirms a successful join to the joining connection and lists
// the room's current members.
type RoomJoined struct {
	RoomID   string   `json:"roomId"`
	UserName string   `json:"userName"`
	Users    []string `json:"users"`
}

// JoinFailed tells the joining connection why its join was rejected.
type JoinFailed struct {
	Message string `json:"message"`
}

// UserEvent announces a membership change to the rest of a room.
type UserEvent struct {
	UserName  string `json:"userName"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage is an outbound message body. IsSystem distinguishes welcome and
// occupancy notices from user-authored content.
type ChatMessage struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	UserName  string `json:"userName,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	IsSystem  bool   `json:"isSystem"`
}

// ErrorEvent is a private error notice for the originating connection.
type ErrorEvent struct {
	Message string `json:"message"`
}

// timestamp returns the ISO-8601 instant stamped onto outbound events.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
