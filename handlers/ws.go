package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"pong-arena/game"
	"pong-arena/services"
)

// ClientMessage is the envelope for everything a client sends over the
// socket. Fields beyond Type are populated per message type.
type ClientMessage struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	RoomID      string          `json:"room_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Direction   game.Direction  `json:"direction,omitempty"`
	Slot        *int            `json:"slot,omitempty"` // local-duo paddle hint
	IsLocal     bool            `json:"is_local,omitempty"`
	Difficulty  game.Difficulty `json:"difficulty,omitempty"`
	ScoreLimit  int             `json:"score_limit,omitempty"`
}

// Gateway owns the per-connection message loop: decode, dispatch to the
// matchmaker or the session registry, reply.
type Gateway struct {
	Hub        *Hub
	Registry   *game.Registry
	Matchmaker *services.MatchmakerService
}

func NewGateway(hub *Hub, registry *game.Registry, matchmaker *services.MatchmakerService) *Gateway {
	return &Gateway{Hub: hub, Registry: registry, Matchmaker: matchmaker}
}

// Handle runs for the lifetime of one websocket connection. The read loop is
// the connection's single dispatcher; the transport close (error return from
// ReadMessage) is the disconnect notification the engine reacts to.
func (g *Gateway) Handle(conn *websocket.Conn) {
	client := g.Hub.Register(conn)
	defer func() {
		g.Matchmaker.HandleDisconnect(client.ID)
		g.Registry.HandleDisconnect(client.ID)
		g.Hub.Unregister(client.ID)
		log.Printf("[Gateway] connection %s closed", client.ID)
	}()

	log.Printf("[Gateway] connection %s opened", client.ID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.reject(client.ID, "invalid JSON")
			continue
		}
		g.dispatch(client.ID, msg)
	}
}

func (g *Gateway) dispatch(connID string, msg ClientMessage) {
	name := msg.DisplayName
	if name == "" {
		name = "anonymous"
	}
	slotHint := -1
	if msg.Slot != nil {
		slotHint = *msg.Slot
	}

	switch msg.Type {
	case "create_session":
		config := game.NewMatchConfig(msg.Difficulty, msg.ScoreLimit)
		session := g.Registry.Create(msg.IsLocal, config)
		g.Hub.ToConn(connID, game.Event{Type: "session_created", Data: map[string]any{
			"session_id": session.ID,
			"config":     config,
		}})

	case "join_session":
		g.Hub.Subscribe(msg.SessionID, connID)
		slot, err := g.Registry.Join(msg.SessionID, connID, name)
		if err != nil {
			g.Hub.Unsubscribe(msg.SessionID, connID)
			g.Hub.ToConn(connID, game.Event{Type: "joined", Data: map[string]any{
				"ok":     false,
				"reason": err.Error(),
			}})
			return
		}
		g.Hub.ToConn(connID, game.Event{Type: "joined", Data: map[string]any{
			"ok":   true,
			"slot": slot,
		}})

	case "input":
		g.Registry.RouteInput(msg.SessionID, connID, slotHint, msg.Direction)

	case "pause":
		if err := g.Registry.RoutePause(msg.SessionID, connID, slotHint); err != nil {
			g.reject(connID, err.Error())
		}

	case "resume":
		if err := g.Registry.RouteResume(msg.SessionID, connID, slotHint); err != nil {
			g.reject(connID, err.Error())
		}

	case "reset_session":
		err := g.Registry.Reset(msg.SessionID)
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		g.Hub.ToConn(connID, game.Event{Type: "reset_result", Data: map[string]any{
			"ok":     err == nil,
			"reason": reason,
		}})

	case "queue_match":
		config := game.NewMatchConfig(msg.Difficulty, msg.ScoreLimit)
		g.Matchmaker.QueueMatch(connID, name, config)

	case "leave_queue":
		g.Matchmaker.LeaveQueue(connID)

	case "host_challenge":
		config := game.NewMatchConfig(msg.Difficulty, msg.ScoreLimit)
		roomID := g.Matchmaker.HostChallenge(connID, name, config)
		g.Hub.ToConn(connID, game.Event{Type: "challenge_created", Data: map[string]any{
			"room_id": roomID,
		}})

	case "direct_challenge_join":
		if err := g.Matchmaker.JoinChallenge(msg.RoomID, connID, name); err != nil {
			g.Hub.ToConn(connID, game.Event{Type: game.EventRoomRejected, Data: map[string]any{
				"room_id": msg.RoomID,
				"reason":  err.Error(),
			}})
		}

	default:
		g.reject(connID, "unknown message type: "+msg.Type)
	}
}

func (g *Gateway) reject(connID, reason string) {
	g.Hub.ToConn(connID, game.Event{Type: "error", Data: map[string]any{
		"reason": reason,
	}})
}
