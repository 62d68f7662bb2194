package game

import (
	"strings"

	"github.com/firstnuel/snake-game-npc/constants"
)

// ChatMessage relays a chat line to the sender's room. Disabled by feature
// flag; rate limited to one message per player per 800 ms.
func (gm *Manager) ChatMessage(conn *Conn, roomCode, message string) {
	if !gm.cfg.Chat {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Chat is disabled on this server"})
		return
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if len(message) > constants.CHAT_MAX_LEN {
		message = message[:constants.CHAT_MAX_LEN]
	}

	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "You are not in this room"})
		return
	}

	now := nowMs()
	if last, exists := room.lastChatAt[playerID]; exists && now-last < constants.CHAT_RATE_MS {
		return
	}
	room.lastChatAt[playerID] = now

	gm.broadcast(room, constants.MSG_CHAT_MESSAGE, map[string]any{
		"playerName": participant.Name,
		"message":    message,
		"epochMs":    now,
	})
}
