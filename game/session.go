package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// SessionRegistry records every game session from start to its terminal
// reason. It is shared across rooms and guarded by its own lock.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	order    []string // session ids by start time
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*models.Session),
	}
}

// Create opens a session for a room. Ids follow DDMMYY/HH:MM; sessions
// started within the same minute get a numeric suffix.
func (r *SessionRegistry) Create(roomCode, mode string, now time.Time) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := now.Format("020106/15:04")
	id := base
	for n := 2; ; n++ {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	session := &models.Session{
		SessionID: id,
		RoomCode:  roomCode,
		Mode:      mode,
		StartedAt: now.UnixMilli(),
	}
	r.sessions[id] = session
	r.order = append(r.order, id)
	return session
}

// End closes a session with a terminal reason. Closing an already-closed
// or unknown session is a no-op.
func (r *SessionRegistry) End(sessionID, reason string, winner *models.Winner, players []models.SessionPlayer, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists || session.EndedAt != 0 {
		return
	}
	session.EndedAt = now
	session.EndReason = reason
	session.Winner = winner
	session.Players = players
	log.Printf("Session %s ended: %s", sessionID, reason)
}

func (r *SessionRegistry) Get(sessionID string) (*models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	return session, exists
}

// History returns the most recently started sessions, newest first.
// isActive decides whether the session's room is still running a game; it
// is called after the registry lock is released so it may take room locks.
func (r *SessionRegistry) History(now int64, isActive func(roomCode string) bool) []models.SessionSummary {
	r.mu.RLock()
	result := make([]models.SessionSummary, 0, constants.SESSION_HISTORY_LIMIT)
	var open []int // indexes of rows with no terminal timestamp
	for i := len(r.order) - 1; i >= 0 && len(result) < constants.SESSION_HISTORY_LIMIT; i-- {
		session := r.sessions[r.order[i]]

		end := session.EndedAt
		if end == 0 {
			end = now
			open = append(open, len(result))
		}

		summary := models.SessionSummary{
			SessionID:       session.SessionID,
			RoomCode:        session.RoomCode,
			GameMode:        session.Mode,
			DurationSeconds: (end - session.StartedAt) / 1000,
		}
		if session.Winner != nil {
			summary.WinnerName = session.Winner.Name
			summary.WinnerScore = session.Winner.Score
		}
		result = append(result, summary)
	}
	r.mu.RUnlock()

	for _, i := range open {
		result[i].IsActive = isActive(result[i].RoomCode)
	}
	return result
}

// Sweep closes orphaned sessions: rooms that no longer exist, and sessions
// that have been open longer than the maximum age.
func (r *SessionRegistry) Sweep(now time.Time, roomExists func(roomCode string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowMs := now.UnixMilli()
	maxAgeMs := constants.SESSION_MAX_AGE.Milliseconds()
	for _, id := range r.order {
		session := r.sessions[id]
		if session.EndedAt != 0 {
			continue
		}
		if !roomExists(session.RoomCode) {
			session.EndedAt = nowMs
			session.EndReason = constants.END_ROOM_DELETED
			log.Printf("Session %s swept: room %s gone", id, session.RoomCode)
			continue
		}
		if nowMs-session.StartedAt > maxAgeMs {
			session.EndedAt = nowMs
			session.EndReason = constants.END_TIMEOUT
			log.Printf("Session %s swept: exceeded max age", id)
		}
	}
}
