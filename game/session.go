package game

import (
	"log"
	"sync"
	"time"
)

const (
	simulationInterval = time.Second / 60
	broadcastInterval  = time.Second / 30

	// How long an ended session stays in the registry so late observers
	// can still read the final state.
	evictionGrace = 5 * time.Second
)

// RunState is the session lifecycle.
type RunState string

const (
	RunStateCreated         RunState = "created"
	RunStateAwaitingPlayers RunState = "awaiting_players"
	RunStateRunning         RunState = "running"
	RunStateEnded           RunState = "ended"
)

// Participant is one bound slot. A slot binds exactly once; on disconnect it
// is marked vacated, never reassigned.
type Participant struct {
	ConnID  string
	Name    string
	Vacated bool
}

// Session wraps one Simulation with its two participant bindings and the two
// fixed-rate drivers: the simulation ticker (60 Hz) and the broadcast ticker
// (30 Hz). Both run in a single goroutine so every broadcast observes a
// completed tick, never a partial one.
type Session struct {
	ID         string
	Config     MatchConfig
	IsLocalDuo bool

	broadcaster Broadcaster
	recorder    ResultRecorder
	evict       func(sessionID string)

	mu           sync.Mutex
	sim          *Simulation
	runState     RunState
	participants [2]*Participant
	lastScores   [2]int

	// endedOnce latches end-of-session for the current simulation
	// generation: scoring out, disconnects and racing broadcast ticks all
	// funnel through it, and only the first trigger runs teardown.
	// RequestReset re-arms it together with a fresh Simulation.
	endedOnce  bool
	stopCh     chan struct{}
	evictTimer *time.Timer
}

// NewSession builds a session in the Created state. evict is invoked (once,
// after the grace delay) when the session should leave the registry.
func NewSession(id string, config MatchConfig, isLocalDuo bool, b Broadcaster, r ResultRecorder, evict func(string)) *Session {
	return &Session{
		ID:          id,
		Config:      config,
		IsLocalDuo:  isLocalDuo,
		broadcaster: b,
		recorder:    r,
		evict:       evict,
		sim:         NewSimulation(config),
		runState:    RunStateCreated,
	}
}

// Join binds the next free slot. For local-duo sessions the single connection
// takes both slots, so the session is ready after one join. Returns the bound
// slot and whether the session now has everyone it needs to start.
func (s *Session) Join(connID, name string) (slot int, ready bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runState == RunStateRunning || s.runState == RunStateEnded {
		return 0, false, ErrSessionFull
	}

	if s.IsLocalDuo {
		if s.participants[0] != nil {
			return 0, false, ErrSessionFull
		}
		s.participants[0] = &Participant{ConnID: connID, Name: name}
		s.participants[1] = &Participant{ConnID: connID, Name: name + " (guest)"}
		s.runState = RunStateAwaitingPlayers
		return 0, true, nil
	}

	for i := range s.participants {
		if s.participants[i] == nil {
			s.participants[i] = &Participant{ConnID: connID, Name: name}
			s.runState = RunStateAwaitingPlayers
			return i, s.participants[1-i] != nil, nil
		}
	}
	return 0, false, ErrSessionFull
}

// Start launches the tick/broadcast loop. Calling Start on an already running
// session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.runState == RunStateRunning || s.runState == RunStateEnded {
		s.mu.Unlock()
		return
	}
	s.runState = RunStateRunning
	s.endedOnce = false
	s.lastScores = [2]int{}
	s.stopCh = make(chan struct{})
	sim, stop := s.sim, s.stopCh
	info := s.participantInfoLocked()
	s.mu.Unlock()

	s.broadcaster.ToSession(s.ID, Event{Type: EventSessionStarted, Data: map[string]any{
		"participants": info,
		"config":       s.Config,
	}})

	go s.run(sim, stop)
	log.Printf("[Session %s] started (local_duo=%v, difficulty=%s, score_limit=%d)",
		s.ID, s.IsLocalDuo, s.Config.Difficulty, s.Config.ScoreLimit)
}

// run drives one simulation generation until stop closes. sim and stop are
// pinned as arguments so a reset's new generation cannot race an old loop.
func (s *Session) run(sim *Simulation, stop <-chan struct{}) {
	simTicker := time.NewTicker(simulationInterval)
	broadcastTicker := time.NewTicker(broadcastInterval)
	defer simTicker.Stop()
	defer broadcastTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-simTicker.C:
			sim.Tick()
		case <-broadcastTicker.C:
			state := sim.Snapshot()
			s.broadcaster.ToSession(s.ID, Event{Type: EventStateTick, Data: state})

			s.mu.Lock()
			scoreChanged := state.Scores != s.lastScores
			s.lastScores = state.Scores
			s.mu.Unlock()
			if scoreChanged {
				s.broadcaster.ToSession(s.ID, Event{Type: EventScoreChanged, Data: map[string]any{
					"scores": state.Scores,
				}})
			}

			if state.HasEnded {
				s.finish(sim, state.Scores, true)
			}
		}
	}
}

// finish runs end-of-session exactly once per simulation generation: stop the
// drivers, broadcast the final scores, hand the result to the recorder
// without blocking, and schedule eviction after the grace delay. sim is the
// generation the trigger observed; a trigger from a superseded generation
// (a stale loop's last broadcast tick racing a reset) is discarded.
func (s *Session) finish(sim *Simulation, scores [2]int, persist bool) {
	s.mu.Lock()
	if s.endedOnce || sim != s.sim {
		s.mu.Unlock()
		return
	}
	s.endedOnce = true
	s.runState = RunStateEnded
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	bothBound := s.participants[0] != nil && s.participants[1] != nil
	var names [2]string
	if bothBound {
		names = [2]string{s.participants[0].Name, s.participants[1].Name}
	}
	s.evictTimer = time.AfterFunc(evictionGrace, func() { s.evict(s.ID) })
	s.mu.Unlock()

	s.broadcaster.ToSession(s.ID, Event{Type: EventSessionEnded, Data: map[string]any{
		"scores": scores,
	}})
	log.Printf("[Session %s] ended %d-%d", s.ID, scores[0], scores[1])

	if persist && !s.IsLocalDuo && bothBound && s.recorder != nil {
		go s.recorder.RecordResult(s.Config, names, scores)
	}
}

// HandleDisconnect resolves which slot the connection held and applies the
// terminal transition: local-duo sessions end abandoned, a mid-match leaver
// in a networked session forfeits at the score limit. Reports whether the
// connection belonged to this session.
func (s *Session) HandleDisconnect(connID string) bool {
	s.mu.Lock()
	slot := -1
	name := ""
	for i, p := range s.participants {
		if p != nil && p.ConnID == connID && !p.Vacated {
			p.Vacated = true
			if slot == -1 {
				slot = i
				name = p.Name
			}
		}
	}
	if slot == -1 {
		s.mu.Unlock()
		return false
	}
	state := s.runState
	sim := s.sim
	s.mu.Unlock()

	s.broadcaster.ToSession(s.ID, Event{Type: EventPlayerLeft, Data: map[string]any{
		"name": name,
	}})

	switch {
	case s.IsLocalDuo:
		// Abandoned: no winner, nothing persisted.
		s.finish(sim, sim.Snapshot().Scores, false)
	case state == RunStateRunning:
		sim.ForceForfeit(slot)
		s.finish(sim, sim.Snapshot().Scores, true)
	case state != RunStateEnded:
		// Opponent never arrived; tear down without a result.
		s.finish(sim, sim.Snapshot().Scores, false)
	}
	return true
}

// RecordInput forwards a directional intent. Networked sessions resolve the
// slot from the connection; local-duo sessions trust the client's slot hint
// since one keyboard drives both paddles.
func (s *Session) RecordInput(connID string, slotHint int, dir Direction) {
	slot := s.resolveSlot(connID, slotHint)
	if slot == -1 {
		return
	}
	s.mu.Lock()
	sim := s.sim
	s.mu.Unlock()
	sim.SetIntent(slot, dir)
}

// Pause suspends the match on behalf of the requesting connection.
func (s *Session) Pause(connID string, slotHint int) error {
	slot := s.resolveSlot(connID, slotHint)
	if slot == -1 {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	sim := s.sim
	s.mu.Unlock()
	return sim.Pause(slot)
}

// Resume lifts a pause held by the requesting connection's slot.
func (s *Session) Resume(connID string, slotHint int) error {
	slot := s.resolveSlot(connID, slotHint)
	if slot == -1 {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	sim := s.sim
	s.mu.Unlock()
	return sim.Resume(slot)
}

func (s *Session) resolveSlot(connID string, slotHint int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsLocalDuo {
		if s.participants[0] == nil || s.participants[0].ConnID != connID {
			return -1
		}
		if slotHint == 0 || slotHint == 1 {
			return slotHint
		}
		return 0
	}
	for i, p := range s.participants {
		if p != nil && p.ConnID == connID && !p.Vacated {
			return i
		}
	}
	return -1
}

// RequestReset rebuilds the simulation with the same config and restarts the
// drivers. Only valid once the session has ended and while both participants
// are still connected.
func (s *Session) RequestReset() error {
	s.mu.Lock()
	if s.runState != RunStateEnded {
		s.mu.Unlock()
		return ErrNotEnded
	}
	for _, p := range s.participants {
		if p == nil || p.Vacated {
			s.mu.Unlock()
			return ErrParticipantGone
		}
	}
	if s.evictTimer != nil {
		s.evictTimer.Stop()
		s.evictTimer = nil
	}
	s.sim = NewSimulation(s.Config)
	s.lastScores = [2]int{}
	s.endedOnce = false
	s.runState = RunStateRunning
	s.stopCh = make(chan struct{})
	sim, stop := s.sim, s.stopCh
	info := s.participantInfoLocked()
	s.mu.Unlock()

	s.broadcaster.ToSession(s.ID, Event{Type: EventSessionStarted, Data: map[string]any{
		"participants": info,
		"config":       s.Config,
	}})
	go s.run(sim, stop)
	log.Printf("[Session %s] reset", s.ID)
	return nil
}

// Stop halts the drivers and any pending eviction. Safe to call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	if s.evictTimer != nil {
		s.evictTimer.Stop()
		s.evictTimer = nil
	}
}

// Snapshot exposes the current simulation state (late observers, tests).
func (s *Session) Snapshot() State {
	s.mu.Lock()
	sim := s.sim
	s.mu.Unlock()
	return sim.Snapshot()
}

// RunState returns the current lifecycle state.
func (s *Session) RunState() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runState
}

// HasParticipant reports whether the connection holds a non-vacated slot.
func (s *Session) HasParticipant(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p != nil && p.ConnID == connID && !p.Vacated {
			return true
		}
	}
	return false
}

func (s *Session) participantInfoLocked() []ParticipantInfo {
	info := make([]ParticipantInfo, 0, 2)
	for i, p := range s.participants {
		if p != nil {
			info = append(info, ParticipantInfo{Name: p.Name, Index: i})
		}
	}
	return info
}
