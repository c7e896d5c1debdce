package game

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide table of active sessions. It exclusively owns
// every session's lifetime: sessions enter through Create and leave through
// the post-end eviction callback. The table is the only structure mutated
// from multiple call paths, so every access goes through the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	broadcaster Broadcaster
	recorder    ResultRecorder
}

// NewRegistry wires the collaborators every session it creates will use.
func NewRegistry(b Broadcaster, r ResultRecorder) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		broadcaster: b,
		recorder:    r,
	}
}

// Create allocates a session in the Created state and returns it.
func (g *Registry) Create(isLocalDuo bool, config MatchConfig) *Session {
	id := uuid.NewString()
	session := NewSession(id, config, isLocalDuo, g.broadcaster, g.recorder, g.remove)

	g.mu.Lock()
	g.sessions[id] = session
	g.mu.Unlock()

	log.Printf("[Registry] session %s created (local_duo=%v)", id, isLocalDuo)
	return session
}

// Join binds a connection to the session's next free slot and starts the
// session once it has everyone it needs (first join for local duos, second
// join otherwise).
func (g *Registry) Join(sessionID, connID, name string) (slot int, err error) {
	session, ok := g.Get(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	slot, ready, err := session.Join(connID, name)
	if err != nil {
		return 0, err
	}
	if ready {
		session.Start()
	}
	return slot, nil
}

// Get looks up a session by id.
func (g *Registry) Get(sessionID string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	session, ok := g.sessions[sessionID]
	return session, ok
}

// RouteInput forwards a directional intent. Unknown session ids are silently
// dropped: a tick or message may legitimately arrive after eviction.
func (g *Registry) RouteInput(sessionID, connID string, slotHint int, dir Direction) {
	if session, ok := g.Get(sessionID); ok {
		session.RecordInput(connID, slotHint, dir)
	}
}

// RoutePause forwards a pause request to the addressed session.
func (g *Registry) RoutePause(sessionID, connID string, slotHint int) error {
	session, ok := g.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return session.Pause(connID, slotHint)
}

// RouteResume forwards a resume request to the addressed session.
func (g *Registry) RouteResume(sessionID, connID string, slotHint int) error {
	session, ok := g.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return session.Resume(connID, slotHint)
}

// Reset asks an ended session to rebuild itself for a rematch.
func (g *Registry) Reset(sessionID string) error {
	session, ok := g.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return session.RequestReset()
}

// HandleDisconnect fans a transport-level close out to whichever session the
// connection was bound to.
func (g *Registry) HandleDisconnect(connID string) {
	g.mu.RLock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.RUnlock()

	for _, s := range sessions {
		if s.HandleDisconnect(connID) {
			return
		}
	}
}

// Count returns the number of live sessions.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// Shutdown stops every session's drivers. Used on process exit.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	for _, s := range g.sessions {
		s.Stop()
	}
	g.sessions = make(map[string]*Session)
	g.mu.Unlock()
}

// remove drops an evicted session from the table.
func (g *Registry) remove(sessionID string) {
	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()
	log.Printf("[Registry] session %s evicted", sessionID)
}
