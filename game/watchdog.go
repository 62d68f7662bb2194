package game

import (
	"fmt"
	"log"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// runWatchdog enforces the per-player input deadlines. Runs once per tick
// while the game is live; caller holds the room lock.
func (gm *Manager) runWatchdog(room *Room, now int64) {
	state := room.State

	for _, id := range append([]string(nil), room.JoinOrder...) {
		player, ok := state.Players[id]
		if !ok || player.Kind != models.KindHuman || !player.Alive {
			continue
		}
		last, tracked := state.LastInputAt[id]
		if !tracked {
			continue
		}
		idle := now - last

		if room.Mode == constants.MODE_MULTI {
			if idle >= constants.INACTIVITY_KICK_MS {
				gm.kickInactive(room, id, now)
				continue
			}
			if idle >= constants.INACTIVITY_WARN_MS && !state.Warned[id] {
				remaining := (constants.INACTIVITY_KICK_MS - idle) / 1000
				participant := room.Players[id]
				if participant != nil {
					gm.sendEvent(room.connFor(participant), constants.MSG_INACTIVITY_WARNING, map[string]any{
						"message":          fmt.Sprintf("You will be removed in %d seconds unless you move", remaining),
						"remainingSeconds": remaining,
					})
				}
				state.Warned[id] = true
			}
			continue
		}

		// Solo/single: the idle player ends the whole game.
		if idle >= constants.INACTIVITY_KICK_MS && state.Winner == nil {
			reason := constants.END_PLAYER_INACTIVE
			if participant := room.Players[id]; participant != nil && (participant.Disconnected || participant.ConnID == "") {
				reason = constants.END_PLAYER_INACTIVE_DISC
			}
			log.Printf("Room %s: ending game, %s inactive", room.Code, player.Name)
			gm.killPlayer(room, player, now)
			gm.checkWinCondition(room, false)
			gm.finishGame(room, reason)
			return
		}
	}
}

// kickInactive removes an idle player from a running multi game. Caller
// holds the room lock.
func (gm *Manager) kickInactive(room *Room, playerID string, now int64) {
	state := room.State
	participant := room.Players[playerID]
	player := state.Players[playerID]
	if participant == nil || player == nil {
		return
	}

	gm.killPlayer(room, player, now)

	conn := room.connFor(participant)
	gm.sendEvent(conn, constants.MSG_PLAYER_KICKED, map[string]any{
		"reason":  "inactive",
		"message": "You were removed for inactivity",
	})

	wasHost := participant.IsHost
	name := participant.Name
	gm.removeMembership(room, playerID)
	if conn != nil {
		conn.RoomCode = ""
		conn.PlayerID = ""
	}
	delete(state.LastInputAt, playerID)
	delete(state.LastInputTick, playerID)
	delete(state.Warned, playerID)

	gm.broadcast(room, constants.MSG_PLAYER_LEFT, map[string]any{
		"playerName": name,
		"reason":     "inactive",
		"wasHost":    wasHost,
		"players":    room.roster(),
	})
	if wasHost && len(room.Players) > 0 {
		gm.electNewHost(room)
	}
	gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": state})
	log.Printf("Room %s: kicked %s for inactivity", room.Code, name)
}
