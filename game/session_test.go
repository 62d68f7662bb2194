package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

func TestSessionIDFormat(t *testing.T) {
	registry := NewSessionRegistry()
	started := time.Date(2025, 3, 7, 14, 5, 0, 0, time.UTC)

	session := registry.Create("ROOM1", constants.MODE_MULTI, started)
	assert.Equal(t, "070325/14:05", session.SessionID)

	// Same-minute sessions stay unique.
	second := registry.Create("ROOM2", constants.MODE_MULTI, started)
	assert.Equal(t, "070325/14:05-2", second.SessionID)
}

func TestSessionEndIsTerminalAndIdempotent(t *testing.T) {
	registry := NewSessionRegistry()
	session := registry.Create("ROOM1", constants.MODE_SOLO, time.Now())

	winner := &models.Winner{ID: "p1", Name: "Hero", Score: 120}
	registry.End(session.SessionID, constants.END_WINNER_DECLARED, winner, nil, nowMs())
	registry.End(session.SessionID, constants.END_ROOM_DELETED, nil, nil, nowMs())

	stored, ok := registry.Get(session.SessionID)
	require.True(t, ok)
	assert.Equal(t, constants.END_WINNER_DECLARED, stored.EndReason, "first reason wins")
	require.NotNil(t, stored.Winner)
	assert.Equal(t, "Hero", stored.Winner.Name)
}

func TestSessionHistoryReturnsFiveNewestFirst(t *testing.T) {
	registry := NewSessionRegistry()
	base := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		registry.Create(fmt.Sprintf("ROOM%d", i), constants.MODE_MULTI, base.Add(time.Duration(i)*time.Minute))
	}

	history := registry.History(nowMs(), func(string) bool { return false })
	require.Len(t, history, constants.SESSION_HISTORY_LIMIT)
	assert.Equal(t, "ROOM6", history[0].RoomCode, "newest first")
	assert.Equal(t, "ROOM2", history[4].RoomCode)
}

func TestSessionHistoryFields(t *testing.T) {
	registry := NewSessionRegistry()
	session := registry.Create("ROOM1", constants.MODE_MULTI, time.Now().Add(-90*time.Second))
	registry.End(session.SessionID, constants.END_WINNER_DECLARED,
		&models.Winner{ID: "p1", Name: "Alice", Score: 70}, nil, nowMs())

	history := registry.History(nowMs(), func(string) bool { return true })
	require.Len(t, history, 1)
	row := history[0]
	assert.Equal(t, "Alice", row.WinnerName)
	assert.Equal(t, 70, row.WinnerScore)
	assert.GreaterOrEqual(t, row.DurationSeconds, int64(89))
	assert.False(t, row.IsActive, "ended sessions are never active")
}

func TestSessionSweepClosesOrphans(t *testing.T) {
	registry := NewSessionRegistry()
	gone := registry.Create("GONE", constants.MODE_MULTI, time.Now())
	stale := registry.Create("STALE", constants.MODE_MULTI, time.Now().Add(-25*time.Hour))
	live := registry.Create("LIVE", constants.MODE_MULTI, time.Now())

	registry.Sweep(time.Now(), func(roomCode string) bool {
		return roomCode != "GONE"
	})

	s, _ := registry.Get(gone.SessionID)
	assert.Equal(t, constants.END_ROOM_DELETED, s.EndReason)

	s, _ = registry.Get(stale.SessionID)
	assert.Equal(t, constants.END_TIMEOUT, s.EndReason)

	s, _ = registry.Get(live.SessionID)
	assert.Empty(t, s.EndReason)
	assert.Zero(t, s.EndedAt)
}
