package queue

import "encoding/json"

// Message types published by the API and consumed by the worker.
const (
	TypeMark          = "mark"
	TypeSessionClosed = "session_closed"
)

// MarkEvent is emitted when a presence record is created.
type MarkEvent struct {
	SessionID int64  `json:"session_id"`
	StudentID int64  `json:"student_id"`
	Status    string `json:"status"`
}

// SessionClosedEvent is emitted when a session closes, carrying the number
// of absences backfilled.
type SessionClosedEvent struct {
	SessionID  int64 `json:"session_id"`
	Backfilled int64 `json:"backfilled"`
}

// NewMarkMessage wraps a MarkEvent in a queue message.
func NewMarkMessage(evt MarkEvent) Message {
	body, _ := json.Marshal(evt)
	return Message{Type: TypeMark, Body: body}
}

// NewSessionClosedMessage wraps a SessionClosedEvent in a queue message.
func NewSessionClosedMessage(evt SessionClosedEvent) Message {
	body, _ := json.Marshal(evt)
	return Message{Type: TypeSessionClosed, Body: body}
}
