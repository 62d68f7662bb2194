package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/firstnuel/snake-game-npc/config"
	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/lobby"
	"github.com/firstnuel/snake-game-npc/models"
)

// Manager owns the room table, the live connection set, the public room
// index and the session registry. Room state itself is guarded per room.
type Manager struct {
	cfg *config.Config

	Mutex sync.RWMutex
	Rooms map[string]*Room

	connMutex sync.RWMutex
	conns     map[string]*Conn

	Sessions    *SessionRegistry
	PublicIndex *lobby.Index

	stopSweeper chan struct{}
}

func NewManager(cfg *config.Config) *Manager {
	gm := &Manager{
		cfg:         cfg,
		Rooms:       make(map[string]*Room),
		conns:       make(map[string]*Conn),
		Sessions:    NewSessionRegistry(),
		PublicIndex: lobby.NewIndex(),
		stopSweeper: make(chan struct{}),
	}
	go gm.sessionSweeper()
	return gm
}

// Close stops the background sweeper. Rooms wind down via their own timers.
func (gm *Manager) Close() {
	close(gm.stopSweeper)
}

func (gm *Manager) sessionSweeper() {
	ticker := time.NewTicker(constants.SESSION_SWEEP_INTERVAL)
	defer ticker.Stop()
	for {
		select {
		case <-gm.stopSweeper:
			return
		case <-ticker.C:
			gm.Sessions.Sweep(time.Now(), func(roomCode string) bool {
				gm.Mutex.RLock()
				defer gm.Mutex.RUnlock()
				_, exists := gm.Rooms[roomCode]
				return exists
			})
		}
	}
}

func (gm *Manager) getRoom(code string) (*Room, bool) {
	gm.Mutex.RLock()
	defer gm.Mutex.RUnlock()
	room, exists := gm.Rooms[code]
	return room, exists
}

// countdown is a cancellable 5..0 broadcast sequence. Cancellation is
// idempotent.
type countdown struct {
	value    int
	stop     chan struct{}
	stopOnce sync.Once
}

func newCountdown(from int) *countdown {
	return &countdown{value: from, stop: make(chan struct{})}
}

func (c *countdown) cancel() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

// Room bundles one match room. All mutable fields are guarded by Mutex;
// timers and the ticker goroutine take the lock before touching state, so
// the room behaves as a single-threaded actor.
type Room struct {
	Code string
	Mode string // multi | single | solo

	Mutex        sync.RWMutex
	Players      map[string]*models.Participant
	JoinOrder    []string
	Tokens       map[string]string // token -> playerID
	ConnToPlayer map[string]string // connID -> playerID
	Conns        map[string]*Conn  // connections joined to the room channel
	Ready        map[string]bool
	State        *models.GameState
	Options      models.GameOptions
	Running      bool // simulation ticker active
	Ended        bool // gameEnded already emitted
	SessionID    string
	Public       bool

	NPCs      map[string]*NPCState
	powerups  PowerUpService
	npcEngine *NPCEngine
	rng       *rand.Rand

	countdown        *countdown
	resumeCountdown  *countdown
	readyDelayTimer  *time.Timer
	tickerStop       chan struct{}
	cleanupTimer     *time.Timer
	disconnectTimers map[string]*time.Timer
	lastChatAt       map[string]int64
}

func (gm *Manager) newRoom(code, mode string) *Room {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Room{
		Code:             code,
		Mode:             mode,
		Players:          make(map[string]*models.Participant),
		Tokens:           make(map[string]string),
		ConnToPlayer:     make(map[string]string),
		Conns:            make(map[string]*Conn),
		Ready:            make(map[string]bool),
		NPCs:             make(map[string]*NPCState),
		powerups:         NewPowerUpService(gm.cfg.PowerUps, rng),
		npcEngine:        NewNPCEngine(rng),
		rng:              rng,
		disconnectTimers: make(map[string]*time.Timer),
		lastChatAt:       make(map[string]int64),
	}
}

// humanCount counts human participants. Caller holds the room lock.
func (r *Room) humanCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Kind == models.KindHuman {
			n++
		}
	}
	return n
}

// connectedCount counts participants with a live connection. Caller holds
// the room lock.
func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Kind == models.KindHuman && !p.Disconnected && p.ConnID != "" {
			n++
		}
	}
	return n
}

// countdownActive reports whether a start or resume countdown is running.
// Caller holds the room lock.
func (r *Room) countdownActive() bool {
	return r.countdown != nil || r.resumeCountdown != nil
}

// roster builds the public membership list in join order. Caller holds the
// room lock.
func (r *Room) roster() []models.RosterEntry {
	entries := make([]models.RosterEntry, 0, len(r.JoinOrder))
	for _, id := range r.JoinOrder {
		if p, exists := r.Players[id]; exists {
			entries = append(entries, models.RosterEntry{
				ID:     p.ID,
				Name:   p.Name,
				Kind:   p.Kind,
				IsHost: p.IsHost,
			})
		}
	}
	return entries
}

// host returns the current host participant, if any. Caller holds the room
// lock.
func (r *Room) host() *models.Participant {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
