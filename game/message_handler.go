package game

import (
	"encoding/json"
	"log"
	"runtime/debug"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

type joinRoomPayload struct {
	PlayerName    string `json:"playerName"`
	RoomCode      string `json:"roomCode"`
	ControlScheme string `json:"controlScheme"`
	PlayerToken   string `json:"playerToken"`
}

type startGamePayload struct {
	RoomCode string `json:"roomCode"`
}

type startSinglePlayerPayload struct {
	PlayerName    string             `json:"playerName"`
	NPCCount      int                `json:"npcCount"`
	GameMode      string             `json:"gameMode"`
	PlayerToken   string             `json:"playerToken"`
	ControlScheme string             `json:"controlScheme"`
	GameOptions   models.GameOptions `json:"gameOptions"`
	NPCConfigs    []models.NPCConfig `json:"npcConfigs"`
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

type requestGameStatePayload struct {
	RoomCode    string `json:"roomCode"`
	PlayerToken string `json:"playerToken"`
}

type playerInputPayload struct {
	RoomCode  string `json:"roomCode"`
	Direction string `json:"direction"`
}

type quitGamePayload struct {
	RoomCode  string `json:"roomCode"`
	LeaveType string `json:"leaveType"` // alone | withParty
}

type chatMessagePayload struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type togglePublicRoomPayload struct {
	RoomCode string `json:"roomCode"`
	IsPublic *bool  `json:"isPublic"`
}

type updateGameOptionsPayload struct {
	RoomCode    string             `json:"roomCode"`
	GameOptions models.GameOptions `json:"gameOptions"`
}

// handleMessage dispatches one inbound event to the owning component.
// A malformed payload is a validation error for the sending connection
// only; a panic further down is contained here so one bad message cannot
// take the gateway down.
func (gm *Manager) handleMessage(conn *Conn, event string, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic handling %s from %s: %v\n%s", event, conn.ID, r, debug.Stack())
			gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Internal error", "reason": "internal"})
		}
	}()

	switch event {
	case constants.MSG_JOIN_ROOM:
		var p joinRoomPayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.JoinRoom(conn, p.PlayerName, p.RoomCode, p.ControlScheme, p.PlayerToken)

	case constants.MSG_START_GAME:
		var p startGamePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.StartGame(conn, p.RoomCode)

	case constants.MSG_START_SINGLE_PLAYER:
		var p startSinglePlayerPayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.StartSinglePlayer(conn, p.PlayerName, p.NPCCount, p.GameMode, p.ControlScheme, p.GameOptions, p.NPCConfigs)

	case constants.MSG_PLAYER_READY:
		var p roomCodePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.PlayerReady(conn, p.RoomCode)

	case constants.MSG_REQUEST_GAME_STATE:
		var p requestGameStatePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.RequestGameState(conn, p.RoomCode, p.PlayerToken)

	case constants.MSG_PLAYER_INPUT:
		var p playerInputPayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.PlayerInput(conn, p.RoomCode, p.Direction)

	case constants.MSG_PAUSE_GAME:
		var p roomCodePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.PauseGame(conn, p.RoomCode)

	case constants.MSG_RESUME_GAME:
		var p roomCodePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.ResumeGame(conn, p.RoomCode)

	case constants.MSG_QUIT_GAME:
		var p quitGamePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.QuitGame(conn, p.RoomCode, p.LeaveType)

	case constants.MSG_CHAT_MESSAGE:
		var p chatMessagePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.ChatMessage(conn, p.RoomCode, p.Message)

	case constants.MSG_TOGGLE_PUBLIC_ROOM:
		var p togglePublicRoomPayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.TogglePublicRoom(conn, p.RoomCode, p.IsPublic)

	case constants.MSG_REQUEST_PUBLIC_ROOMS:
		gm.RequestPublicRooms(conn)

	case constants.MSG_REQUEST_SESSION_HISTORY:
		gm.RequestSessionHistory(conn)

	case constants.MSG_UPDATE_GAME_OPTIONS:
		var p updateGameOptionsPayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.UpdateGameOptions(conn, p.RoomCode, p.GameOptions)

	case constants.MSG_REQUEST_GAME_OPTIONS:
		var p roomCodePayload
		if !gm.decode(conn, payload, &p) {
			return
		}
		gm.RequestGameOptions(conn, p.RoomCode)

	default:
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Unknown event", "reason": "unknown_event"})
	}
}

func (gm *Manager) decode(conn *Conn, payload json.RawMessage, target any) bool {
	if len(payload) == 0 {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Missing payload", "reason": "bad_payload"})
		return false
	}
	if err := json.Unmarshal(payload, target); err != nil {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Malformed payload", "reason": "bad_payload"})
		return false
	}
	return true
}
