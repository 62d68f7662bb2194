package game

import (
	"log"
	"strings"

	"github.com/firstnuel/snake-game-npc/auth"
	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

var allowedTimeLimits = map[int]bool{3: true, 5: true, 10: true, 15: true}

// UpdateGameOptions handles updateGameOptions (host only, before start).
func (gm *Manager) UpdateGameOptions(conn *Conn, roomCode string, options models.GameOptions) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok || !participant.IsHost {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Only the host can change game options", "reason": "not_host"})
		return
	}
	if room.State != nil {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Options are locked once the game starts"})
		return
	}
	if options.TimeLimit != nil && !allowedTimeLimits[*options.TimeLimit] {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Time limit must be 3, 5, 10 or 15 minutes"})
		return
	}

	room.Options = options
	gm.broadcast(room, constants.MSG_GAME_OPTIONS_UPDATED, map[string]any{"gameOptions": room.Options})
	log.Printf("Room %s: options updated", room.Code)
}

// RequestGameOptions handles requestGameOptions.
func (gm *Manager) RequestGameOptions(conn *Conn, roomCode string) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.RLock()
	options := room.Options
	room.Mutex.RUnlock()

	gm.sendEvent(conn, constants.MSG_GAME_OPTIONS_UPDATED, map[string]any{"gameOptions": options})
}

// TogglePublicRoom handles togglePublicRoom (host only, multi mode).
func (gm *Manager) TogglePublicRoom(conn *Conn, roomCode string, isPublic *bool) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_PUBLIC_ROOM_STATUS, map[string]any{
			"roomCode": roomCode, "isPublic": false, "error": "Room not found",
		})
		return
	}

	room.Mutex.Lock()
	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok || !participant.IsHost {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_PUBLIC_ROOM_STATUS, map[string]any{
			"roomCode": room.Code, "isPublic": room.Public, "error": "Only the host can change room visibility",
		})
		return
	}
	if room.Mode != constants.MODE_MULTI {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_PUBLIC_ROOM_STATUS, map[string]any{
			"roomCode": room.Code, "isPublic": false, "error": "Only multiplayer rooms can be public",
		})
		return
	}

	if isPublic != nil {
		room.Public = *isPublic
	} else {
		room.Public = !room.Public
	}
	public := room.Public
	room.Mutex.Unlock()

	gm.sendEvent(conn, constants.MSG_PUBLIC_ROOM_STATUS, map[string]any{
		"roomCode": room.Code, "isPublic": public,
	})
	gm.syncPublicRoom(room)
}

// RequestPublicRooms handles requestPublicRooms.
func (gm *Manager) RequestPublicRooms(conn *Conn) {
	gm.sendEvent(conn, constants.MSG_PUBLIC_ROOMS_UPDATED, map[string]any{"rooms": gm.PublicIndex.Snapshot()})
}

// syncPublicRoom recomputes a room's public-listing eligibility and
// republishes the index when it changes. Called after every membership,
// mode or flag mutation; never called with the room lock held.
func (gm *Manager) syncPublicRoom(room *Room) {
	room.Mutex.RLock()
	eligible := room.Mode == constants.MODE_MULTI &&
		room.Public &&
		room.State == nil &&
		!room.countdownActive() &&
		len(room.Players) >= 1 && len(room.Players) <= constants.MAX_ROOM_PLAYERS-1
	var info models.PublicRoomInfo
	if eligible {
		hostName := ""
		if h := room.host(); h != nil {
			hostName = h.Name
		}
		info = models.PublicRoomInfo{
			RoomCode:    room.Code,
			HostName:    hostName,
			PlayerCount: len(room.Players),
			MaxPlayers:  constants.MAX_ROOM_PLAYERS,
		}
	}
	room.Mutex.RUnlock()

	listed := gm.PublicIndex.Contains(room.Code)
	if eligible {
		gm.PublicIndex.Put(info)
	} else if listed {
		gm.PublicIndex.Remove(room.Code)
	} else {
		return
	}
	gm.broadcastAll(constants.MSG_PUBLIC_ROOMS_UPDATED, map[string]any{"rooms": gm.PublicIndex.Snapshot()})
}

// RequestSessionHistory handles requestSessionHistory.
func (gm *Manager) RequestSessionHistory(conn *Conn) {
	history := gm.Sessions.History(nowMs(), func(roomCode string) bool {
		room, exists := gm.getRoom(roomCode)
		if !exists {
			return false
		}
		room.Mutex.RLock()
		defer room.Mutex.RUnlock()
		return room.Running && room.State != nil && room.State.StartedAt > 0
	})
	gm.sendEvent(conn, constants.MSG_SESSION_HISTORY, map[string]any{"sessions": history})
}

// RequestGameState handles requestGameState. With a valid token against a
// solo/single room frozen in its disconnect window it doubles as the
// reconnect path.
func (gm *Manager) RequestGameState(conn *Conn, roomCode, playerToken string) {
	code := strings.ToUpper(roomCode)
	room, exists := gm.getRoom(code)
	if !exists {
		gm.sendEvent(conn, constants.MSG_GAME_STATE_ERROR, map[string]any{
			"message": "Room not found", "roomCode": roomCode,
		})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.State == nil {
		gm.sendEvent(conn, constants.MSG_GAME_STATE_ERROR, map[string]any{
			"message": "Game has not been started", "roomCode": room.Code,
		})
		return
	}

	if playerToken != "" && room.Mode != constants.MODE_MULTI {
		if claims, err := auth.ValidatePlayerToken(playerToken); err == nil && claims.RoomCode == room.Code {
			if playerID, ok := room.Tokens[playerToken]; ok && playerID == claims.PlayerID {
				if p := room.Players[playerID]; p != nil && p.Disconnected {
					gm.reconnectSolo(room, conn, playerID)
					return
				}
			}
		}
	}

	gm.sendEvent(conn, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": room.State})
}
