// Package server tracks per-connection sessions in a side table keyed by
// connection id, instead of hanging protocol state off the transport object.
package server

import "sync"

// sessionState tracks where a connection is in the join lifecycle.
type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateTerminated
)

// Sink delivers one outbound envelope to a single connection. Delivery is
// best-effort: a false return means the connection could not accept the
// event. Implementations must not block.
type Sink interface {
	Deliver(e Envelope) bool
}

// Session is the per-connection state held on behalf of the dispatcher:
// connection identity, display name, current room and the delivery sink.
// Fields other than ID are only touched from the connection's own event
// stream, so they need no lock of their own.
type Session struct {
	ID    string
	Name  string
	Room  string
	state sessionState
	sink  Sink
}

// SessionTable is the side table of live sessions. The map itself is guarded;
// session field mutation stays with each connection's single event stream.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

func (t *SessionTable) add(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID] = s
}

func (t *SessionTable) get(connID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[connID]
	return s, ok
}

// remove deletes and returns the session, reporting false when it was already
// gone so disconnect cleanup runs at most once.
func (t *SessionTable) remove(connID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[connID]
	if ok {
		delete(t.sessions, connID)
	}
	return s, ok
}

// sink resolves a connection id to its delivery sink.
func (t *SessionTable) sink(connID string) (Sink, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[connID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// Count reports the number of live sessions.
func (t *SessionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
