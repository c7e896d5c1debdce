package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeBroadcaster, *fakeRecorder) {
	t.Helper()
	fb := &fakeBroadcaster{}
	fr := &fakeRecorder{}
	reg := NewRegistry(fb, fr)
	t.Cleanup(reg.Shutdown)
	return reg, fb, fr
}

func TestRegistryCreateAndJoin(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s := reg.Create(false, NewMatchConfig(DifficultyEasy, 3))
	require.Equal(t, 1, reg.Count())

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)

	slot, err := reg.Join(s.ID, "c1", "alice")
	require.NoError(t, err)
	require.Equal(t, 0, slot)
	require.Equal(t, RunStateAwaitingPlayers, s.RunState())

	// The second join completes the pair and starts the drivers.
	slot, err = reg.Join(s.ID, "c2", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, slot)
	require.Equal(t, RunStateRunning, s.RunState())

	_, err = reg.Join(s.ID, "c3", "carol")
	require.ErrorIs(t, err, ErrSessionFull)
}

func TestRegistryLocalDuoStartsOnFirstJoin(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s := reg.Create(true, NewMatchConfig(DifficultyMedium, 5))
	_, err := reg.Join(s.ID, "c1", "alice")
	require.NoError(t, err)
	require.Equal(t, RunStateRunning, s.RunState())
}

func TestRegistryUnknownSession(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Join("missing", "c1", "alice")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, reg.RoutePause("missing", "c1", -1), ErrSessionNotFound)
	require.ErrorIs(t, reg.RouteResume("missing", "c1", -1), ErrSessionNotFound)
	require.ErrorIs(t, reg.Reset("missing"), ErrSessionNotFound)

	// Late input for an evicted session is dropped, not an error.
	reg.RouteInput("missing", "c1", -1, DirectionUp)
}

func TestRegistryDisconnectReachesOwningSession(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := reg.Create(false, NewMatchConfig(DifficultyMedium, 5))
	s2 := reg.Create(false, NewMatchConfig(DifficultyMedium, 5))
	_, _ = reg.Join(s1.ID, "c1", "alice")
	_, _ = reg.Join(s1.ID, "c2", "bob")
	_, _ = reg.Join(s2.ID, "c3", "carol")
	_, _ = reg.Join(s2.ID, "c4", "dave")

	reg.HandleDisconnect("c3")

	require.Equal(t, RunStateEnded, s2.RunState())
	require.Equal(t, RunStateRunning, s1.RunState())
}

func TestFullMatchFlowPersistsWinner(t *testing.T) {
	reg, fb, fr := newTestRegistry(t)

	s := reg.Create(false, NewMatchConfig(DifficultyMedium, 3))
	_, err := reg.Join(s.ID, "c1", "alice")
	require.NoError(t, err)
	require.Equal(t, 0, fb.countByType(EventSessionStarted))

	_, err = reg.Join(s.ID, "c2", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, fb.countByType(EventSessionStarted))

	// Drive the ball past the right edge three times: slot 0 scores out.
	for point := 1; point <= 3; point++ {
		placeBall(s.sim, Ball{X: DefaultCanvasWidth - 40, Y: 50, VX: 30, VY: 0})
		skipCountdown(s.sim)
		want := point
		require.Eventually(t, func() bool {
			return s.Snapshot().Scores[0] == want
		}, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return fr.count() == 1 }, time.Second, 10*time.Millisecond)
	result := fr.last()
	require.Equal(t, [2]string{"alice", "bob"}, result.names)
	require.Equal(t, 3, result.scores[0])
	require.Less(t, result.scores[1], 3)
	require.Equal(t, 1, fb.countByType(EventSessionEnded))
	require.Equal(t, RunStateEnded, s.RunState())
}

func TestRegistryShutdownStopsEverything(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	reg.Create(false, NewMatchConfig(DifficultyMedium, 5))
	reg.Create(true, NewMatchConfig(DifficultyHard, 7))
	require.Equal(t, 2, reg.Count())

	reg.Shutdown()
	require.Equal(t, 0, reg.Count())
}
