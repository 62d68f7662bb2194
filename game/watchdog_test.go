package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstnuel/snake-game-npc/constants"
)

func TestWatchdogWarnsBeforeKicking(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	connFor(t, gm, room, "A")
	state := room.State

	a := playerByName(room, "A")
	now := nowMs()
	state.LastInputAt[a.ID] = now - constants.INACTIVITY_WARN_MS - 1000

	room.Mutex.Lock()
	gm.runWatchdog(room, now)
	room.Mutex.Unlock()

	assert.True(t, state.Warned[a.ID])
	assert.True(t, a.Alive, "warning does not kill")

	// The warning is sent once.
	room.Mutex.Lock()
	gm.runWatchdog(room, now)
	room.Mutex.Unlock()
	assert.True(t, a.Alive)
}

func TestWatchdogKicksInactiveMulti(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B", "C")
	startSimulation(room)
	connFor(t, gm, room, "A")
	connFor(t, gm, room, "B")
	connFor(t, gm, room, "C")
	state := room.State

	a := playerByName(room, "A")
	hostID := a.ID
	require.True(t, room.Players[hostID].IsHost)

	now := nowMs()
	state.LastInputAt[a.ID] = now - constants.INACTIVITY_KICK_MS - 1000

	room.Mutex.Lock()
	gm.runWatchdog(room, now)
	room.Mutex.Unlock()

	assert.False(t, a.Alive, "kicked player is dead")
	_, member := room.Players[a.ID]
	assert.False(t, member, "membership removed")
	assert.NotContains(t, room.Tokens, a.ID)

	// Host moved to someone still in the room.
	host := room.host()
	require.NotNil(t, host)
	assert.NotEqual(t, hostID, host.ID)
}

func TestWatchdogEndsSoloGame(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_SOLO, "Hero")
	startSimulation(room)
	state := room.State

	hero := playerByName(room, "Hero")
	now := nowMs()
	state.LastInputAt[hero.ID] = now - constants.INACTIVITY_KICK_MS - 1

	room.Mutex.Lock()
	gm.runWatchdog(room, now)
	room.Mutex.Unlock()

	assert.False(t, hero.Alive)
	assert.True(t, room.Ended)

	session, ok := gm.Sessions.Get(room.SessionID)
	if ok {
		assert.Equal(t, constants.END_PLAYER_INACTIVE, session.EndReason)
	}
}

func TestPauseShiftsInactivityClock(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	state := room.State

	a := playerByName(room, "A")
	before := state.LastInputAt[a.ID]

	state.Paused = true
	state.PauseStartedAt = nowMs() - 3000 // paused for three seconds

	room.Mutex.Lock()
	gm.finishResume(room)
	room.Mutex.Unlock()

	assert.False(t, state.Paused)
	assert.GreaterOrEqual(t, state.LastInputAt[a.ID], before+3000,
		"paused time must not count toward inactivity")
	assert.GreaterOrEqual(t, state.TotalPauseMs, int64(3000))
}
