package models

import (
	"github.com/firstnuel/snake-game-npc/constants"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PowerUpType string

const (
	PowerUpSpeedBoost PowerUpType = "speedBoost"
	PowerUpShield     PowerUpType = "shield"
	PowerUpShrink     PowerUpType = "shrink"
	PowerUpSlowOthers PowerUpType = "slowOthers"

	// EffectSlowed is applied to victims of slowOthers. It is the only
	// effect permitted to coexist with another on the same player.
	EffectSlowed PowerUpType = "slowed"
)

// AllPowerUpTypes are the collectible item types (not EffectSlowed).
var AllPowerUpTypes = []PowerUpType{
	PowerUpSpeedBoost, PowerUpShield, PowerUpShrink, PowerUpSlowOthers,
}

type PowerUp struct {
	ID        string      `json:"id"`
	Position  Position    `json:"position"`
	Type      PowerUpType `json:"type"`
	SpawnedAt int64       `json:"spawnedAt"` // epoch ms
}

const (
	KindHuman = "human"
	KindNPC   = "npc"
)

type Player struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Kind             string                `json:"kind"` // "human" | "npc"
	Color            string                `json:"color"`
	Snake            []Position            `json:"snake"` // index 0 is head
	Direction        constants.Direction   `json:"direction"`
	QueuedDirection  constants.Direction   `json:"queuedDirection"`
	Score            int                   `json:"score"`
	Alive            bool                  `json:"alive"`
	IsHost           bool                  `json:"isHost"`
	ControlScheme    string                `json:"controlScheme,omitempty"`
	SurvivalStart    int64                 `json:"-"` // epoch ms
	SurvivalDuration int64                 `json:"survivalDuration"` // ms, set on death
	SpeedAccumulator float64               `json:"-"`
	ActivePowerups   map[PowerUpType]int64 `json:"activePowerups,omitempty"` // effect -> expiry epoch ms
}

// Head returns the snake's head position. Snakes always have length >= 1.
func (p *Player) Head() Position {
	return p.Snake[0]
}

// GameOptions are the host-tunable room settings.
type GameOptions struct {
	WallMode   bool `json:"wallMode"`
	StrictMode bool `json:"strictMode"`
	// TimeLimit in minutes; nil means no limit. Allowed: 3, 5, 10, 15.
	TimeLimit *int `json:"timeLimit"`
}

type Winner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	IsLoser bool   `json:"isLoser,omitempty"`
}

type GameState struct {
	Players        map[string]*Player `json:"players"`
	Food           []Position         `json:"food"`
	PowerUps       []*PowerUp         `json:"powerups,omitempty"`
	Tick           int64              `json:"tick"`
	StartedAt      int64              `json:"startedAt"` // epoch ms, 0 until countdown ends
	TimerSeconds   int                `json:"timerSeconds"`
	Paused         bool               `json:"paused"`
	PauseStartedAt int64              `json:"-"`
	TotalPauseMs   int64              `json:"totalPauseMs"`
	PauseBudgetMs  int64              `json:"-"` // 0 = unbounded
	LastInputAt    map[string]int64   `json:"-"` // playerID -> epoch ms
	LastInputTick  map[string]int64   `json:"-"` // playerID -> tick of last accepted input
	Warned         map[string]bool    `json:"-"` // inactivity warning sent
	Level          int                `json:"level"`
	TotalFoodEaten int                `json:"totalFoodEaten"`
	WallMode       bool               `json:"wallMode"`
	StrictMode     bool               `json:"strictMode"`
	TimeLimitMs    int64              `json:"-"` // 0 = none
	Winner         *Winner            `json:"winner,omitempty"`
	// LastSurvivorSince is set when exactly one player is alive in a
	// zero-score multi game; the win is held back for a short grace.
	LastSurvivorSince int64 `json:"-"`
}

// Participant is a room membership record, distinct from the in-game Player.
type Participant struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ConnID         string `json:"-"`
	Token          string `json:"-"`
	Kind           string `json:"kind"`
	IsHost         bool   `json:"isHost"`
	ControlScheme  string `json:"controlScheme,omitempty"`
	Disconnected   bool   `json:"disconnected,omitempty"`
	DisconnectedAt int64  `json:"-"`
}

// RosterEntry is the public shape of a participant used in playerJoined
// and playerLeft broadcasts.
type RosterEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	IsHost bool   `json:"isHost"`
}

// NPCConfig is the client-provided (or defaulted) setup for one NPC.
type NPCConfig struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"` // easy | medium | hard
	Profile    string `json:"profile"`    // balanced | hunter | survivor | forager
	Speed      int    `json:"speed"`      // 1..5
	Skill      int    `json:"skill"`      // 1..5
	Boldness   int    `json:"boldness"`   // 1..5
}

// SessionPlayer is a snapshot of one player taken when a session ends.
type SessionPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

type Session struct {
	SessionID string          `json:"sessionId"`
	RoomCode  string          `json:"roomCode"`
	Mode      string          `json:"gameMode"`
	StartedAt int64           `json:"startedAt"` // epoch ms
	EndedAt   int64           `json:"endedAt,omitempty"`
	EndReason string          `json:"endReason,omitempty"`
	Winner    *Winner         `json:"winner,omitempty"`
	Players   []SessionPlayer `json:"players,omitempty"`
}

// SessionSummary is one row of the requestSessionHistory reply.
type SessionSummary struct {
	SessionID       string `json:"sessionId"`
	RoomCode        string `json:"roomCode"`
	GameMode        string `json:"gameMode"`
	WinnerName      string `json:"winnerName,omitempty"`
	WinnerScore     int    `json:"winnerScore,omitempty"`
	DurationSeconds int64  `json:"durationSeconds"`
	IsActive        bool   `json:"isActive"`
}

// PublicRoomInfo is one row of the publicRoomsUpdated broadcast.
type PublicRoomInfo struct {
	RoomCode    string `json:"roomCode"`
	HostName    string `json:"hostName"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}
