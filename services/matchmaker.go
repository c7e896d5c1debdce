package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pong-arena/game"
)

// Room pairing failures surfaced to the requesting connection.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room already started")
	ErrOwnRoom      = errors.New("cannot join your own room")
)

const (
	RoomModeDirect = "direct"
	RoomModeQueue  = "queue"
)

// RoomParticipant is one connection waiting in a pre-session room.
type RoomParticipant struct {
	ConnID string `json:"-"`
	Name   string `json:"name"`
}

// Room is a pre-session pairing record: it exists from the first player's
// request until a session is materialized, after which it only serves
// disconnect bookkeeping until the sweeper or a disconnect clears it.
type Room struct {
	ID           string
	Mode         string
	Config       game.MatchConfig
	CreatedAt    time.Time
	Participants []RoomParticipant
	SessionID    string // empty until the room is started
}

// MatchmakerService pairs connections into rooms and turns full rooms into
// running sessions. Two modes: direct join by room id (private challenges)
// and an open queue holding at most one waiting connection.
type MatchmakerService struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	waitingID string // room id of the current open-queue waiter

	registry *game.Registry
	events   game.Broadcaster
}

func NewMatchmakerService(registry *game.Registry, events game.Broadcaster) *MatchmakerService {
	return &MatchmakerService{
		rooms:    make(map[string]*Room),
		registry: registry,
		events:   events,
	}
}

// HostChallenge opens a direct room for a private challenge and returns its
// id for the host to share.
func (m *MatchmakerService) HostChallenge(connID, name string, config game.MatchConfig) string {
	room := &Room{
		ID:           uuid.NewString(),
		Mode:         RoomModeDirect,
		Config:       config,
		CreatedAt:    time.Now(),
		Participants: []RoomParticipant{{ConnID: connID, Name: name}},
	}

	m.mu.Lock()
	m.rooms[room.ID] = room
	m.mu.Unlock()

	log.Printf("[Matchmaker] direct room %s opened by %s", room.ID, name)
	return room.ID
}

// JoinChallenge pairs a connection into a known direct room and starts the
// match.
func (m *MatchmakerService) JoinChallenge(roomID, connID, name string) error {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return ErrRoomNotFound
	}
	if room.SessionID != "" || len(room.Participants) >= 2 {
		m.mu.Unlock()
		return ErrRoomFull
	}
	if room.Participants[0].ConnID == connID {
		m.mu.Unlock()
		return ErrOwnRoom
	}
	room.Participants = append(room.Participants, RoomParticipant{ConnID: connID, Name: name})
	m.mu.Unlock()

	m.materialize(room)
	return nil
}

// QueueMatch enters the open queue. The first caller waits; the next arrival
// is paired with them immediately. Queueing twice from the same connection
// just refreshes the waiting room's config.
func (m *MatchmakerService) QueueMatch(connID, name string, config game.MatchConfig) {
	m.mu.Lock()
	if m.waitingID != "" {
		waiting := m.rooms[m.waitingID]
		if waiting != nil && waiting.Participants[0].ConnID == connID {
			waiting.Config = config
			m.mu.Unlock()
			return
		}
		if waiting != nil {
			m.waitingID = ""
			waiting.Participants = append(waiting.Participants, RoomParticipant{ConnID: connID, Name: name})
			m.mu.Unlock()
			m.materialize(waiting)
			return
		}
		m.waitingID = ""
	}

	room := &Room{
		ID:           uuid.NewString(),
		Mode:         RoomModeQueue,
		Config:       config,
		CreatedAt:    time.Now(),
		Participants: []RoomParticipant{{ConnID: connID, Name: name}},
	}
	m.rooms[room.ID] = room
	m.waitingID = room.ID
	m.mu.Unlock()

	log.Printf("[Matchmaker] %s waiting in open queue (room %s)", name, room.ID)
}

// LeaveQueue withdraws the connection's waiting queue entry, if any.
func (m *MatchmakerService) LeaveQueue(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waitingID == "" {
		return
	}
	if room, ok := m.rooms[m.waitingID]; ok && room.Participants[0].ConnID == connID {
		delete(m.rooms, m.waitingID)
		m.waitingID = ""
		log.Printf("[Matchmaker] %s left the open queue", connID)
	}
}

// materialize turns a full room into a running session: create, subscribe
// both connections to the session's multicast group, announce the pairing
// with a synchronized start timestamp, then bind both slots (the second join
// starts the simulation).
func (m *MatchmakerService) materialize(room *Room) {
	session := m.registry.Create(false, room.Config)

	m.mu.Lock()
	room.SessionID = session.ID
	participants := append([]RoomParticipant(nil), room.Participants...)
	m.mu.Unlock()

	info := make([]game.ParticipantInfo, len(participants))
	for i, p := range participants {
		m.events.Subscribe(session.ID, p.ConnID)
		info[i] = game.ParticipantInfo{Name: p.Name, Index: i}
	}

	ready := game.Event{Type: game.EventRoomReady, Data: map[string]any{
		"room_id":      room.ID,
		"session_id":   session.ID,
		"participants": info,
		"config":       room.Config,
		"starts_at":    time.Now().Add(time.Second).UnixMilli(),
	}}
	for _, p := range participants {
		m.events.ToConn(p.ConnID, ready)
	}

	for _, p := range participants {
		if _, err := m.registry.Join(session.ID, p.ConnID, p.Name); err != nil {
			log.Printf("[Matchmaker] failed to bind %s to session %s: %v", p.Name, session.ID, err)
		}
	}

	log.Printf("[Matchmaker] room %s started session %s (%s vs %s)",
		room.ID, session.ID, participants[0].Name, participants[1].Name)
}

// HandleDisconnect clears any pairing state the connection left behind: a
// waiting queue slot, a half-filled direct room, or a started room kept for
// bookkeeping.
func (m *MatchmakerService) HandleDisconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, room := range m.rooms {
		for _, p := range room.Participants {
			if p.ConnID == connID {
				delete(m.rooms, id)
				if m.waitingID == id {
					m.waitingID = ""
				}
				break
			}
		}
	}
}

// GetRoom looks up a room by id.
func (m *MatchmakerService) GetRoom(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// RoomCount returns the number of tracked rooms.
func (m *MatchmakerService) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// SweepExpiredRooms drops rooms that never filled within the TTL, telling
// the lone occupant, and clears bookkeeping rooms whose session is gone.
func (m *MatchmakerService) SweepExpiredRooms(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var expired []*Room
	for id, room := range m.rooms {
		if room.SessionID == "" && room.CreatedAt.Before(cutoff) {
			expired = append(expired, room)
			delete(m.rooms, id)
			if m.waitingID == id {
				m.waitingID = ""
			}
			continue
		}
		if room.SessionID != "" {
			if _, ok := m.registry.Get(room.SessionID); !ok {
				delete(m.rooms, id)
			}
		}
	}
	m.mu.Unlock()

	for _, room := range expired {
		for _, p := range room.Participants {
			m.events.ToConn(p.ConnID, game.Event{Type: game.EventRoomRejected, Data: map[string]any{
				"room_id": room.ID,
				"reason":  "room expired",
			}})
		}
		log.Printf("[Matchmaker] room %s expired after %s with no opponent", room.ID, ttl)
	}
}
