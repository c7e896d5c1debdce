package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	target string
	event  Event
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) ToConn(connID string, event Event) {
	f.record(connID, event)
}

func (f *fakeBroadcaster) ToSession(sessionID string, event Event) {
	f.record(sessionID, event)
}

func (f *fakeBroadcaster) Subscribe(sessionID, connID string)   {}
func (f *fakeBroadcaster) Unsubscribe(sessionID, connID string) {}

func (f *fakeBroadcaster) record(target string, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{target: target, event: event})
}

func (f *fakeBroadcaster) countByType(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event.Type == eventType {
			n++
		}
	}
	return n
}

type recordedResult struct {
	config MatchConfig
	names  [2]string
	scores [2]int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedResult
}

func (f *fakeRecorder) RecordResult(config MatchConfig, names [2]string, scores [2]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedResult{config: config, names: names, scores: scores})
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRecorder) last() recordedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestSession(t *testing.T, isLocalDuo bool) (*Session, *fakeBroadcaster, *fakeRecorder) {
	t.Helper()
	fb := &fakeBroadcaster{}
	fr := &fakeRecorder{}
	s := NewSession("test-session", NewMatchConfig(DifficultyMedium, 5), isLocalDuo, fb, fr, func(string) {})
	t.Cleanup(s.Stop)
	return s, fb, fr
}

func TestNetworkedJoinFillsSlotsInOrder(t *testing.T) {
	s, _, _ := newTestSession(t, false)

	slot, ready, err := s.Join("c1", "alice")
	require.NoError(t, err)
	require.Equal(t, 0, slot)
	require.False(t, ready)
	require.Equal(t, RunStateAwaitingPlayers, s.RunState())

	slot, ready, err = s.Join("c2", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, slot)
	require.True(t, ready)

	_, _, err = s.Join("c3", "carol")
	require.ErrorIs(t, err, ErrSessionFull)
}

func TestLocalDuoJoinBindsBothSlots(t *testing.T) {
	s, _, _ := newTestSession(t, true)

	slot, ready, err := s.Join("c1", "alice")
	require.NoError(t, err)
	require.Equal(t, 0, slot)
	require.True(t, ready)
	require.Equal(t, "alice (guest)", s.participants[1].Name)

	_, _, err = s.Join("c2", "bob")
	require.ErrorIs(t, err, ErrSessionFull)
}

func TestDisconnectForfeitsRunningMatch(t *testing.T) {
	s, fb, fr := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")
	s.Start()

	require.True(t, s.HandleDisconnect("c1"))
	require.Equal(t, RunStateEnded, s.RunState())

	snap := s.Snapshot()
	require.True(t, snap.HasEnded)
	require.Equal(t, [2]int{0, 5}, snap.Scores)

	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 10*time.Millisecond)
	result := fr.last()
	require.Equal(t, [2]string{"alice", "bob"}, result.names)
	require.Equal(t, [2]int{0, 5}, result.scores)

	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Equal(t, 1, fb.countByType(EventPlayerLeft))

	// The survivor leaving afterwards must not end or persist again.
	require.True(t, s.HandleDisconnect("c2"))
	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Equal(t, 1, fr.count())
}

func TestConcurrentDisconnectsEndOnce(t *testing.T) {
	s, fb, fr := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")
	s.Start()

	var wg sync.WaitGroup
	for _, connID := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.HandleDisconnect(id)
		}(connID)
	}
	wg.Wait()

	require.Equal(t, RunStateEnded, s.RunState())
	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, fr.count())
}

func TestDisconnectBeforeOpponentArrives(t *testing.T) {
	s, fb, fr := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")

	require.True(t, s.HandleDisconnect("c1"))
	require.Equal(t, RunStateEnded, s.RunState())
	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Equal(t, 0, fr.count())
}

func TestLocalDuoDisconnectSkipsPersistence(t *testing.T) {
	s, fb, fr := newTestSession(t, true)
	_, _, _ = s.Join("c1", "alice")
	s.Start()

	require.True(t, s.HandleDisconnect("c1"))
	require.Equal(t, RunStateEnded, s.RunState())
	require.Equal(t, 1, fb.countByType(EventSessionEnded))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, fr.count())
}

func TestFinishRunsOncePerGeneration(t *testing.T) {
	s, fb, fr := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")

	s.finish(s.sim, [2]int{5, 2}, true)
	s.finish(s.sim, [2]int{5, 2}, true)

	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestResetRequiresEndedSessionWithBothPlayers(t *testing.T) {
	s, fb, _ := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")

	require.ErrorIs(t, s.RequestReset(), ErrNotEnded)

	s.finish(s.sim, [2]int{5, 3}, false)
	require.NoError(t, s.RequestReset())
	require.Equal(t, RunStateRunning, s.RunState())
	require.False(t, s.Snapshot().HasEnded)
	require.Equal(t, 2, fb.countByType(EventSessionStarted))
	s.Stop()

	// A second generation can end and reset again, until a player is gone.
	s.finish(s.sim, [2]int{5, 1}, false)
	require.True(t, s.HandleDisconnect("c2"))
	require.ErrorIs(t, s.RequestReset(), ErrParticipantGone)
}

func TestStaleGenerationCannotEndResetSession(t *testing.T) {
	s, fb, fr := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")

	gen1 := s.sim
	gen1.ForceForfeit(1)
	s.finish(gen1, gen1.Snapshot().Scores, true)
	require.NoError(t, s.RequestReset())

	// The finished generation's loop may deliver one last broadcast tick,
	// and its snapshot reports HasEnded forever. That trigger must bounce
	// off the rematch generation.
	s.finish(gen1, gen1.Snapshot().Scores, true)

	require.Equal(t, RunStateRunning, s.RunState())
	require.False(t, s.Snapshot().HasEnded)
	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, fr.count())
}

func TestInputRoutingResolvesSlots(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	_, _, _ = s.Join("c1", "alice")
	_, _, _ = s.Join("c2", "bob")

	s.RecordInput("c2", -1, DirectionUp)
	s.sim.mu.Lock()
	require.Equal(t, DirectionUp, s.sim.intents[1])
	require.Equal(t, DirectionNone, s.sim.intents[0])
	s.sim.mu.Unlock()

	// Unknown connections are ignored.
	s.RecordInput("stranger", -1, DirectionDown)
	s.sim.mu.Lock()
	require.Equal(t, DirectionNone, s.sim.intents[0])
	s.sim.mu.Unlock()
}

func TestLocalDuoInputTrustsSlotHint(t *testing.T) {
	s, _, _ := newTestSession(t, true)
	_, _, _ = s.Join("c1", "alice")

	s.RecordInput("c1", 1, DirectionDown)
	s.RecordInput("c1", -1, DirectionUp) // no hint defaults to slot 0

	s.sim.mu.Lock()
	require.Equal(t, DirectionUp, s.sim.intents[0])
	require.Equal(t, DirectionDown, s.sim.intents[1])
	s.sim.mu.Unlock()
}
