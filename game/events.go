package game

// Event is one outbound message for connected clients. Data must be
// JSON-serializable; the transport layer decides the wire encoding.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// Broadcaster delivers events to connections. Implemented by the websocket
// hub; sessions and the matchmaker never touch the transport directly.
// Implementations must not block: a slow consumer is the transport's problem.
type Broadcaster interface {
	// ToConn sends an addressed event to a single connection.
	ToConn(connID string, event Event)
	// ToSession multicasts an event to every connection subscribed to the
	// session (or pre-session room) with the given id.
	ToSession(sessionID string, event Event)
	// Subscribe adds a connection to a session's multicast group.
	Subscribe(sessionID, connID string)
	// Unsubscribe removes a connection from a session's multicast group.
	Unsubscribe(sessionID, connID string)
}

// ResultRecorder persists a finished match. Called on its own goroutine
// relative to session teardown; failures stay inside the implementation.
type ResultRecorder interface {
	RecordResult(config MatchConfig, names [2]string, scores [2]int)
}

// ParticipantInfo is the public shape of a bound slot, used in
// session_started and room_ready payloads.
type ParticipantInfo struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Broadcast event types consumed by clients.
const (
	EventSessionStarted = "session_started"
	EventStateTick      = "state_tick"
	EventScoreChanged   = "score_changed"
	EventSessionEnded   = "session_ended"
	EventPlayerLeft     = "player_left"
	EventRoomReady      = "room_ready"
	EventRoomRejected   = "room_rejected"
)
