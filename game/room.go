package game

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firstnuel/snake-game-npc/auth"
	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// startAnchors are the fixed spawn corners, assigned by join order mod 4.
var startAnchors = []struct {
	pos models.Position
	dir constants.Direction
}{
	{models.Position{X: 5, Y: 5}, constants.RIGHT},
	{models.Position{X: constants.GRID_WIDTH - 6, Y: constants.GRID_HEIGHT - 6}, constants.LEFT},
	{models.Position{X: 5, Y: constants.GRID_HEIGHT - 6}, constants.RIGHT},
	{models.Position{X: constants.GRID_WIDTH - 6, Y: 5}, constants.LEFT},
}

// JoinRoom handles joinRoom for multi mode. The room is created on first
// join; a valid playerToken before the game starts reattaches instead.
func (gm *Manager) JoinRoom(conn *Conn, playerName, roomCode, controlScheme, playerToken string) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Player name is required"})
		return
	}
	if len(playerName) > constants.NAME_MAX_LEN {
		playerName = playerName[:constants.NAME_MAX_LEN]
	}
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	if roomCode == "" {
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Room code is required"})
		return
	}

	gm.Mutex.Lock()
	room, exists := gm.Rooms[roomCode]
	if !exists {
		room = gm.newRoom(roomCode, constants.MODE_MULTI)
		gm.Rooms[roomCode] = room
		log.Printf("Room %s created", roomCode)
	}
	gm.Mutex.Unlock()

	room.Mutex.Lock()

	// Reconnection during the Ready phase: a token that maps to an
	// existing membership reattaches the connection as long as the
	// simulation has not begun.
	if playerToken != "" {
		if claims, err := auth.ValidatePlayerToken(playerToken); err == nil && claims.RoomCode == roomCode {
			if playerID, ok := room.Tokens[playerToken]; ok && playerID == claims.PlayerID {
				if room.State == nil || room.State.StartedAt == 0 {
					gm.reattach(room, conn, playerID)
					room.Mutex.Unlock()
					return
				}
			}
		}
	}

	if room.State != nil || room.countdownActive() {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Game already in progress"})
		return
	}
	if len(room.Players) >= constants.MAX_ROOM_PLAYERS {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Room is full"})
		return
	}
	for _, p := range room.Players {
		if strings.EqualFold(p.Name, playerName) {
			room.Mutex.Unlock()
			gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Name already taken in this room"})
			return
		}
	}

	playerID := uuid.New().String()
	token, err := auth.GeneratePlayerToken(playerID, roomCode)
	if err != nil {
		room.Mutex.Unlock()
		log.Printf("Room %s: token generation failed: %v", roomCode, err)
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Internal error"})
		return
	}

	participant := &models.Participant{
		ID:            playerID,
		Name:          playerName,
		ConnID:        conn.ID,
		Token:         token,
		Kind:          models.KindHuman,
		IsHost:        len(room.Players) == 0,
		ControlScheme: controlScheme,
	}
	room.Players[playerID] = participant
	room.JoinOrder = append(room.JoinOrder, playerID)
	room.Tokens[token] = playerID
	room.ConnToPlayer[conn.ID] = playerID
	room.Conns[conn.ID] = conn
	conn.RoomCode = roomCode
	conn.PlayerID = playerID

	gm.sendEvent(conn, constants.MSG_JOINED_ROOM, map[string]any{
		"playerId":    playerID,
		"isHost":      participant.IsHost,
		"roomCode":    roomCode,
		"gameMode":    room.Mode,
		"gameOptions": room.Options,
		"playerToken": token,
		"isPublic":    room.Public,
	})
	gm.broadcast(room, constants.MSG_PLAYER_JOINED, map[string]any{
		"playerId":   playerID,
		"playerName": playerName,
		"isHost":     participant.IsHost,
		"players":    room.roster(),
	})
	room.Mutex.Unlock()

	log.Printf("Room %s: %s joined (%d players)", roomCode, playerName, len(room.Players))
	gm.syncPublicRoom(room)
}

// reattach rebinds a connection to an existing membership during the Ready
// phase. Caller holds the room lock.
func (gm *Manager) reattach(room *Room, conn *Conn, playerID string) {
	participant := room.Players[playerID]

	if participant.ConnID != "" {
		if old, ok := room.Conns[participant.ConnID]; ok {
			delete(room.Conns, participant.ConnID)
			old.RoomCode = ""
			old.PlayerID = ""
		}
		delete(room.ConnToPlayer, participant.ConnID)
	}
	if timer, ok := room.disconnectTimers[playerID]; ok {
		timer.Stop()
		delete(room.disconnectTimers, playerID)
	}
	participant.ConnID = conn.ID
	participant.Disconnected = false
	participant.DisconnectedAt = 0
	room.ConnToPlayer[conn.ID] = playerID
	room.Conns[conn.ID] = conn
	conn.RoomCode = room.Code
	conn.PlayerID = playerID

	gm.sendEvent(conn, constants.MSG_JOINED_ROOM, map[string]any{
		"playerId":    playerID,
		"isHost":      participant.IsHost,
		"roomCode":    room.Code,
		"gameMode":    room.Mode,
		"gameOptions": room.Options,
		"playerToken": participant.Token,
		"isPublic":    room.Public,
	})
	if room.State != nil {
		// The ready screen was already published; put the client back on it.
		gm.sendEvent(conn, constants.MSG_GAME_STARTED, map[string]any{
			"gameState": room.State,
			"roomCode":  room.Code,
			"playerId":  playerID,
			"gameMode":  room.Mode,
			"isHost":    participant.IsHost,
		})
	}
	log.Printf("Room %s: %s reconnected during ready phase", room.Code, participant.Name)
}

// StartGame handles startGame (multi, host only).
func (gm *Manager) StartGame(conn *Conn, roomCode string) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok || !participant.IsHost {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Only the host can start the game", "reason": "not_host"})
		return
	}
	if room.State != nil {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Game already started"})
		return
	}
	humans := room.humanCount()
	if humans < constants.MIN_MULTI_START || humans > constants.MAX_ROOM_PLAYERS {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Need 2-4 players to start"})
		return
	}

	room.State = gm.buildGameState(room)
	room.Ready = make(map[string]bool)
	session := gm.Sessions.Create(room.Code, room.Mode, time.Now())
	room.SessionID = session.SessionID

	for _, p := range room.Players {
		memberConn := room.connFor(p)
		gm.sendEvent(memberConn, constants.MSG_GAME_STARTED, map[string]any{
			"gameState": room.State,
			"roomCode":  room.Code,
			"playerId":  p.ID,
			"gameMode":  room.Mode,
			"isHost":    p.IsHost,
		})
	}
	room.Mutex.Unlock()

	log.Printf("Room %s: game starting with %d players (session %s)", room.Code, humans, session.SessionID)
	gm.syncPublicRoom(room)
}

// connFor resolves a participant's live connection. Caller holds the room
// lock.
func (r *Room) connFor(p *models.Participant) *Conn {
	if p.ConnID == "" {
		return nil
	}
	return r.Conns[p.ConnID]
}

// StartSinglePlayer handles startSinglePlayer: a generated SP room with the
// requesting human and 0..3 NPCs.
func (gm *Manager) StartSinglePlayer(conn *Conn, playerName string, npcCount int, gameMode, controlScheme string, options models.GameOptions, npcConfigs []models.NPCConfig) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Player name is required"})
		return
	}
	if len(playerName) > constants.NAME_MAX_LEN {
		playerName = playerName[:constants.NAME_MAX_LEN]
	}
	if npcCount < 0 || npcCount > constants.MAX_NPC_COUNT {
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "npcCount must be between 0 and 3"})
		return
	}

	mode := constants.MODE_SINGLE
	if npcCount == 0 || gameMode == constants.MODE_SOLO {
		mode = constants.MODE_SOLO
		npcCount = 0
	}

	roomCode := "SP" + strings.ToUpper(uuid.New().String()[:6])
	room := gm.newRoom(roomCode, mode)
	room.Options = options

	gm.Mutex.Lock()
	gm.Rooms[roomCode] = room
	gm.Mutex.Unlock()

	room.Mutex.Lock()
	playerID := uuid.New().String()
	token, err := auth.GeneratePlayerToken(playerID, roomCode)
	if err != nil {
		room.Mutex.Unlock()
		log.Printf("Room %s: token generation failed: %v", roomCode, err)
		gm.sendEvent(conn, constants.MSG_JOIN_ERROR, map[string]any{"message": "Internal error"})
		return
	}

	human := &models.Participant{
		ID:            playerID,
		Name:          playerName,
		ConnID:        conn.ID,
		Token:         token,
		Kind:          models.KindHuman,
		IsHost:        true,
		ControlScheme: controlScheme,
	}
	room.Players[playerID] = human
	room.JoinOrder = append(room.JoinOrder, playerID)
	room.Tokens[token] = playerID
	room.ConnToPlayer[conn.ID] = playerID
	room.Conns[conn.ID] = conn
	conn.RoomCode = roomCode
	conn.PlayerID = playerID

	if len(npcConfigs) > npcCount {
		npcConfigs = npcConfigs[:npcCount]
	}
	if len(npcConfigs) < npcCount {
		npcConfigs = append(npcConfigs, DefaultNPCConfigs(npcCount)[len(npcConfigs):]...)
	}
	for _, cfg := range npcConfigs {
		npcID := uuid.New().String()
		if strings.TrimSpace(cfg.Name) == "" {
			cfg.Name = fmt.Sprintf("Bot-%d", len(room.NPCs)+1)
		}
		npc := &models.Participant{
			ID:   npcID,
			Name: cfg.Name,
			Kind: models.KindNPC,
		}
		room.Players[npcID] = npc
		room.JoinOrder = append(room.JoinOrder, npcID)
		room.NPCs[npcID] = NewNPCState(npcID, cfg)
	}

	room.State = gm.buildGameState(room)
	room.Ready = make(map[string]bool)
	session := gm.Sessions.Create(roomCode, mode, time.Now())
	room.SessionID = session.SessionID

	gm.sendEvent(conn, constants.MSG_JOINED_ROOM, map[string]any{
		"playerId":    playerID,
		"isHost":      true,
		"roomCode":    roomCode,
		"gameMode":    mode,
		"gameOptions": room.Options,
		"playerToken": token,
		"isPublic":    false,
	})
	gm.sendEvent(conn, constants.MSG_GAME_STARTED, map[string]any{
		"gameState": room.State,
		"roomCode":  roomCode,
		"playerId":  playerID,
		"gameMode":  mode,
		"isHost":    true,
	})
	room.Mutex.Unlock()

	log.Printf("Room %s: %s game started for %s with %d NPCs (session %s)", roomCode, mode, playerName, npcCount, session.SessionID)
}

// buildGameState constructs the initial simulation state from the current
// roster. Caller holds the room lock.
func (gm *Manager) buildGameState(room *Room) *models.GameState {
	state := &models.GameState{
		Players:       make(map[string]*models.Player),
		LastInputAt:   make(map[string]int64),
		LastInputTick: make(map[string]int64),
		Warned:        make(map[string]bool),
		Level:         1,
		WallMode:      room.Options.WallMode,
		StrictMode:    room.Options.StrictMode,
	}
	if room.Options.TimeLimit != nil {
		state.TimeLimitMs = int64(*room.Options.TimeLimit) * 60 * 1000
	}
	if room.Mode == constants.MODE_MULTI {
		state.PauseBudgetMs = constants.PAUSE_BUDGET_MS
	}

	for i, id := range room.JoinOrder {
		participant := room.Players[id]
		anchor := startAnchors[i%len(startAnchors)]

		snake := make([]models.Position, 0, 3)
		dx, dy := directionVector(anchor.dir)
		for seg := 0; seg < 3; seg++ {
			snake = append(snake, models.Position{
				X: anchor.pos.X - dx*seg,
				Y: anchor.pos.Y - dy*seg,
			})
		}

		state.Players[id] = &models.Player{
			ID:              id,
			Name:            participant.Name,
			Kind:            participant.Kind,
			Color:           constants.PlayerColors[i%len(constants.PlayerColors)],
			Snake:           snake,
			Direction:       anchor.dir,
			QueuedDirection: anchor.dir,
			Alive:           true,
			IsHost:          participant.IsHost,
			ControlScheme:   participant.ControlScheme,
		}
	}

	if food, ok := randomFreeCell(state, room.rng); ok {
		state.Food = append(state.Food, food)
	}
	return state
}

// PlayerReady handles playerReady. When every human is ready the start
// countdown is scheduled.
func (gm *Manager) PlayerReady(conn *Conn, roomCode string) {
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
	if room.State == nil {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Game has not been started"})
		return
	}
	if room.State.StartedAt != 0 || room.countdownActive() {
		return
	}

	room.Ready[playerID] = true
	log.Printf("Room %s: %s is ready", room.Code, participant.Name)

	readyIDs := make([]string, 0, len(room.Ready))
	for id := range room.Ready {
		readyIDs = append(readyIDs, id)
	}
	gm.broadcast(room, constants.MSG_PLAYER_READY_STATUS, map[string]any{"readyPlayers": readyIDs})

	for _, p := range room.Players {
		if p.Kind == models.KindHuman && !room.Ready[p.ID] {
			return
		}
	}

	gm.broadcast(room, constants.MSG_ALL_PLAYERS_READY, map[string]any{})
	if room.readyDelayTimer != nil {
		room.readyDelayTimer.Stop()
	}
	room.readyDelayTimer = time.AfterFunc(constants.ALL_READY_DELAY, func() {
		room.Mutex.Lock()
		defer room.Mutex.Unlock()
		if room.State == nil || room.State.StartedAt != 0 || room.countdownActive() || room.Ended {
			return
		}
		gm.startStartCountdown(room)
	})
}

// startStartCountdown launches the 5..0 start countdown. Caller holds the
// room lock and has checked that no countdown is active.
func (gm *Manager) startStartCountdown(room *Room) {
	cd := newCountdown(constants.COUNTDOWN_START)
	room.countdown = cd
	gm.broadcast(room, constants.MSG_GAME_COUNTDOWN, map[string]any{"countdown": cd.value})

	go func() {
		ticker := time.NewTicker(constants.COUNTDOWN_PERIOD)
		defer ticker.Stop()
		for {
			select {
			case <-cd.stop:
				return
			case <-ticker.C:
				room.Mutex.Lock()
				if room.countdown != cd || room.Ended {
					room.Mutex.Unlock()
					return
				}
				cd.value--
				gm.broadcast(room, constants.MSG_GAME_COUNTDOWN, map[string]any{"countdown": cd.value})
				if cd.value > 0 {
					room.Mutex.Unlock()
					continue
				}

				room.countdown = nil
				gm.beginSimulation(room)
				room.Mutex.Unlock()
				return
			}
		}
	}()
}

// beginSimulation flips the room into the running phase. Caller holds the
// room lock; the gameCountdown{0} broadcast has already been queued, so the
// first gameStateUpdate follows it on every connection.
func (gm *Manager) beginSimulation(room *Room) {
	now := nowMs()
	state := room.State
	state.StartedAt = now
	state.TimerSeconds = 0
	for id, p := range state.Players {
		p.SurvivalStart = now
		state.LastInputAt[id] = now
	}
	gm.startTicker(room)
	gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": state})
	log.Printf("Room %s: simulation running", room.Code)
}

// PauseGame handles pauseGame. Any human in the room may pause.
func (gm *Manager) PauseGame(conn *Conn, roomCode string) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "You are not in this room"})
		return
	}
	state := room.State
	if state == nil || room.Ended || state.Winner != nil {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "No active game to pause"})
		return
	}
	if state.Paused {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "Game is already paused"})
		return
	}
	if state.StartedAt == 0 && room.countdown == nil {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "Game has not started yet"})
		return
	}
	if room.Mode == constants.MODE_MULTI && state.TotalPauseMs >= constants.PAUSE_BUDGET_MS {
		gm.sendEvent(conn, constants.MSG_PAUSE_ERROR, map[string]any{"message": "Pause budget exhausted"})
		return
	}

	// Pausing during the start countdown cancels it; resume re-runs it.
	if room.countdown != nil {
		room.countdown.cancel()
		room.countdown = nil
	}

	state.Paused = true
	state.PauseStartedAt = nowMs()
	gm.broadcast(room, constants.MSG_GAME_PAUSED, map[string]any{"pausedBy": participant.Name})
	log.Printf("Room %s: paused by %s", room.Code, participant.Name)
}

// ResumeGame handles resumeGame via the resume countdown.
func (gm *Manager) ResumeGame(conn *Conn, roomCode string) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_RESUME_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok {
		gm.sendEvent(conn, constants.MSG_RESUME_ERROR, map[string]any{"message": "You are not in this room"})
		return
	}
	state := room.State
	if state == nil || !state.Paused || room.Ended {
		gm.sendEvent(conn, constants.MSG_RESUME_ERROR, map[string]any{"message": "Game is not paused"})
		return
	}
	if room.resumeCountdown != nil {
		return
	}

	gm.startResumeCountdown(room, participant.Name)
}

// startResumeCountdown launches the 5..0 resume countdown. Caller holds
// the room lock.
func (gm *Manager) startResumeCountdown(room *Room, resumedBy string) {
	cd := newCountdown(constants.COUNTDOWN_START)
	room.resumeCountdown = cd
	gm.broadcast(room, constants.MSG_RESUME_COUNTDOWN, map[string]any{"countdown": cd.value, "resumedBy": resumedBy})

	go func() {
		ticker := time.NewTicker(constants.COUNTDOWN_PERIOD)
		defer ticker.Stop()
		for {
			select {
			case <-cd.stop:
				return
			case <-ticker.C:
				room.Mutex.Lock()
				if room.resumeCountdown != cd || room.Ended {
					room.Mutex.Unlock()
					return
				}
				cd.value--
				gm.broadcast(room, constants.MSG_RESUME_COUNTDOWN, map[string]any{"countdown": cd.value, "resumedBy": resumedBy})
				if cd.value > 0 {
					room.Mutex.Unlock()
					continue
				}

				room.resumeCountdown = nil
				gm.finishResume(room)
				room.Mutex.Unlock()
				return
			}
		}
	}()
}

// finishResume applies pause accounting and clears the paused state.
// Caller holds the room lock.
func (gm *Manager) finishResume(room *Room) {
	state := room.State
	now := nowMs()
	pauseDur := now - state.PauseStartedAt
	state.TotalPauseMs += pauseDur

	// Paused time must not count toward inactivity.
	for id := range state.LastInputAt {
		state.LastInputAt[id] += pauseDur
	}

	state.Paused = false
	state.PauseStartedAt = 0

	if room.Mode == constants.MODE_MULTI && state.TotalPauseMs >= constants.PAUSE_BUDGET_MS {
		log.Printf("Room %s: pause budget exceeded, ending game", room.Code)
		gm.checkWinCondition(room, true)
		gm.finishGame(room, constants.END_TIMEOUT)
		return
	}

	gm.broadcast(room, constants.MSG_GAME_RESUMED, map[string]any{})
	log.Printf("Room %s: resumed", room.Code)

	// A pause taken during the start countdown re-enters it here.
	if state.StartedAt == 0 && !room.countdownActive() {
		gm.startStartCountdown(room)
	}
}

// QuitGame handles quitGame.
func (gm *Manager) QuitGame(conn *Conn, roomCode, leaveType string) {
	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "Room not found"})
		return
	}

	room.Mutex.Lock()
	playerID := room.ConnToPlayer[conn.ID]
	participant, ok := room.Players[playerID]
	if !ok {
		room.Mutex.Unlock()
		gm.sendEvent(conn, constants.MSG_ERROR, map[string]any{"message": "You are not in this room"})
		return
	}
	wasHost := participant.IsHost
	name := participant.Name

	if room.Mode != constants.MODE_MULTI {
		// Solo/single: quitting ends the game outright.
		if room.State != nil {
			if p, exists := room.State.Players[playerID]; exists && p.Alive {
				gm.killPlayer(room, p, nowMs())
			}
			gm.checkWinCondition(room, false)
		}
		gm.finishGame(room, constants.END_GAME_ENDED)
		room.Mutex.Unlock()
		gm.destroyRoom(room.Code, constants.END_GAME_ENDED)
		return
	}

	// Multi mode.
	if room.State != nil {
		if p, exists := room.State.Players[playerID]; exists && p.Alive {
			gm.killPlayer(room, p, nowMs())
		}
	}

	if wasHost && leaveType == "withParty" {
		gm.broadcast(room, constants.MSG_GAME_QUIT, map[string]any{
			"quitBy": name,
			"reason": "host_left_with_party",
		})
		gm.finishGame(room, constants.END_HOST_QUIT_NO_PLAYERS)
		room.Mutex.Unlock()
		gm.destroyRoom(room.Code, constants.END_HOST_QUIT_NO_PLAYERS)
		return
	}

	gm.removeMembership(room, playerID)
	conn.RoomCode = ""
	conn.PlayerID = ""

	gm.broadcast(room, constants.MSG_PLAYER_QUIT, map[string]any{
		"playerName": name,
		"reason":     "quit",
		"wasHost":    wasHost,
		"players":    room.roster(),
	})

	if len(room.Players) == 0 {
		gm.finishGame(room, constants.END_ALL_PLAYERS_QUIT)
		room.Mutex.Unlock()
		gm.destroyRoom(room.Code, constants.END_ALL_PLAYERS_QUIT)
		return
	}

	if wasHost {
		gm.electNewHost(room)
	}

	if room.State != nil && room.State.StartedAt != 0 && room.connectedCount() <= 1 {
		gm.checkWinCondition(room, false)
		gm.finishGame(room, constants.END_ALL_PLAYERS_QUIT)
	} else if room.State != nil {
		gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": room.State})
	}
	room.Mutex.Unlock()

	log.Printf("Room %s: %s quit", room.Code, name)
	gm.syncPublicRoom(room)
}

// removeMembership strips a player from every room-side map. Caller holds
// the room lock.
func (gm *Manager) removeMembership(room *Room, playerID string) {
	participant, ok := room.Players[playerID]
	if !ok {
		return
	}
	if participant.ConnID != "" {
		delete(room.Conns, participant.ConnID)
		delete(room.ConnToPlayer, participant.ConnID)
	}
	if participant.Token != "" {
		delete(room.Tokens, participant.Token)
	}
	if timer, exists := room.disconnectTimers[playerID]; exists {
		timer.Stop()
		delete(room.disconnectTimers, playerID)
	}
	delete(room.Ready, playerID)
	delete(room.Players, playerID)
	for i, id := range room.JoinOrder {
		if id == playerID {
			room.JoinOrder = append(room.JoinOrder[:i], room.JoinOrder[i+1:]...)
			break
		}
	}
}

// electNewHost promotes a replacement host: random among humans once the
// game has started, first joined while still in the lobby. Caller holds
// the room lock.
func (gm *Manager) electNewHost(room *Room) {
	var candidates []*models.Participant
	for _, id := range room.JoinOrder {
		p := room.Players[id]
		if p != nil && p.Kind == models.KindHuman && !p.Disconnected {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		for _, id := range room.JoinOrder {
			p := room.Players[id]
			if p != nil && p.Kind == models.KindHuman {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return
	}

	var newHost *models.Participant
	if room.State != nil && room.State.StartedAt != 0 {
		newHost = candidates[room.rng.Intn(len(candidates))]
	} else {
		newHost = candidates[0]
	}

	for _, p := range room.Players {
		p.IsHost = p.ID == newHost.ID
	}
	if room.State != nil {
		for id, p := range room.State.Players {
			p.IsHost = id == newHost.ID
		}
	}

	gm.broadcast(room, constants.MSG_HOST_CHANGED, map[string]any{
		"newHostId":   newHost.ID,
		"newHostName": newHost.Name,
	})
	log.Printf("Room %s: host changed to %s", room.Code, newHost.Name)
}

// handleRoomDisconnect applies the phase- and mode-specific disconnect
// rules when a bound connection drops.
func (gm *Manager) handleRoomDisconnect(room *Room, conn *Conn) {
	room.Mutex.Lock()

	playerID, ok := room.ConnToPlayer[conn.ID]
	if !ok {
		room.Mutex.Unlock()
		return
	}
	participant := room.Players[playerID]
	delete(room.Conns, conn.ID)
	delete(room.ConnToPlayer, conn.ID)
	if participant == nil {
		room.Mutex.Unlock()
		return
	}
	participant.ConnID = ""
	participant.Disconnected = true
	participant.DisconnectedAt = nowMs()
	name := participant.Name
	log.Printf("Room %s: %s disconnected", room.Code, name)

	started := room.State != nil && room.State.StartedAt != 0

	if room.Mode == constants.MODE_MULTI && !started {
		// Lobby/Ready: hold the seat for the grace window.
		room.disconnectTimers[playerID] = time.AfterFunc(constants.DISCONNECT_GRACE, func() {
			gm.dropAfterGrace(room, playerID)
		})
		room.Mutex.Unlock()
		return
	}

	if room.Mode == constants.MODE_MULTI {
		// Running: the seat is forfeit, the token dies with it.
		if participant.Token != "" {
			delete(room.Tokens, participant.Token)
			participant.Token = ""
		}
		if p, exists := room.State.Players[playerID]; exists && p.Alive {
			gm.killPlayer(room, p, nowMs())
		}
		wasHost := participant.IsHost
		gm.broadcast(room, constants.MSG_PLAYER_LEFT, map[string]any{
			"playerName": name,
			"reason":     "disconnected",
			"wasHost":    wasHost,
			"players":    room.roster(),
		})
		if wasHost {
			participant.IsHost = false
			gm.electNewHost(room)
		}
		if room.connectedCount() <= 1 && !room.Ended {
			gm.checkWinCondition(room, false)
			gm.finishGame(room, constants.END_ALL_DISCONNECTED)
		} else {
			gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": room.State})
		}
		room.Mutex.Unlock()
		return
	}

	// Solo/single while running: freeze and hold for reconnection.
	if started && !room.Ended {
		state := room.State
		if !state.Paused {
			state.Paused = true
			state.PauseStartedAt = nowMs()
		}
		gm.stopTicker(room)
		room.disconnectTimers[playerID] = time.AfterFunc(constants.DISCONNECT_GRACE, func() {
			gm.endAfterSoloGrace(room, playerID)
		})
		room.Mutex.Unlock()
		return
	}

	// Solo/single before the countdown finished: nothing to preserve.
	room.Mutex.Unlock()
	gm.destroyRoom(room.Code, constants.END_ALL_DISCONNECTED)
}

// dropAfterGrace removes a member whose lobby-phase reconnect window
// elapsed.
func (gm *Manager) dropAfterGrace(room *Room, playerID string) {
	room.Mutex.Lock()

	participant, ok := room.Players[playerID]
	if !ok || !participant.Disconnected {
		room.Mutex.Unlock()
		return
	}
	delete(room.disconnectTimers, playerID)
	wasHost := participant.IsHost
	name := participant.Name
	gm.removeMembership(room, playerID)

	if len(room.Players) == 0 {
		room.Mutex.Unlock()
		gm.destroyRoom(room.Code, constants.END_ALL_DISCONNECTED)
		return
	}

	gm.broadcast(room, constants.MSG_PLAYER_LEFT, map[string]any{
		"playerName": name,
		"reason":     "disconnected",
		"wasHost":    wasHost,
		"players":    room.roster(),
	})
	if wasHost {
		gm.electNewHost(room)
	}
	room.Mutex.Unlock()

	gm.syncPublicRoom(room)
}

// endAfterSoloGrace ends a solo/single game whose player never came back.
func (gm *Manager) endAfterSoloGrace(room *Room, playerID string) {
	room.Mutex.Lock()

	participant, ok := room.Players[playerID]
	if !ok || !participant.Disconnected || room.Ended {
		room.Mutex.Unlock()
		return
	}
	delete(room.disconnectTimers, playerID)

	if p, exists := room.State.Players[playerID]; exists && p.Alive {
		gm.killPlayer(room, p, nowMs())
	}
	gm.checkWinCondition(room, false)
	gm.finishGame(room, constants.END_ALL_DISCONNECTED)
	room.Mutex.Unlock()

	gm.destroyRoom(room.Code, constants.END_ALL_DISCONNECTED)
}

// reconnectSolo reattaches a token-holding connection to a solo/single room
// frozen inside its disconnect window, then resumes via the countdown.
// Caller holds the room lock.
func (gm *Manager) reconnectSolo(room *Room, conn *Conn, playerID string) {
	participant := room.Players[playerID]

	if timer, ok := room.disconnectTimers[playerID]; ok {
		timer.Stop()
		delete(room.disconnectTimers, playerID)
	}
	participant.ConnID = conn.ID
	participant.Disconnected = false
	participant.DisconnectedAt = 0
	room.ConnToPlayer[conn.ID] = playerID
	room.Conns[conn.ID] = conn
	conn.RoomCode = room.Code
	conn.PlayerID = playerID

	gm.sendEvent(conn, constants.MSG_GAME_STARTED, map[string]any{
		"gameState": room.State,
		"roomCode":  room.Code,
		"playerId":  playerID,
		"gameMode":  room.Mode,
		"isHost":    participant.IsHost,
	})

	gm.startTicker(room)
	if room.State.Paused && room.resumeCountdown == nil {
		gm.startResumeCountdown(room, participant.Name)
	}
	log.Printf("Room %s: %s reconnected, resuming", room.Code, participant.Name)
}

// finishGame emits gameEnded exactly once, closes the session and
// schedules room cleanup. Caller holds the room lock.
func (gm *Manager) finishGame(room *Room, reason string) {
	if room.Ended {
		return
	}
	room.Ended = true
	gm.stopTicker(room)
	room.countdown.cancel()
	room.countdown = nil
	room.resumeCountdown.cancel()
	room.resumeCountdown = nil
	if room.readyDelayTimer != nil {
		room.readyDelayTimer.Stop()
		room.readyDelayTimer = nil
	}

	state := room.State
	var winner *models.Winner
	alive := []string{}
	dead := []string{}
	var snapshots []models.SessionPlayer
	if state != nil {
		winner = state.Winner
		for _, p := range state.Players {
			if p.Alive {
				alive = append(alive, p.Name)
			} else {
				dead = append(dead, p.Name)
			}
			snapshots = append(snapshots, models.SessionPlayer{
				ID: p.ID, Name: p.Name, Kind: p.Kind, Score: p.Score, Alive: p.Alive,
			})
		}
	}

	if room.SessionID != "" {
		if winner != nil && reason == constants.END_GAME_ENDED {
			reason = constants.END_WINNER_DECLARED
		}
		gm.Sessions.End(room.SessionID, reason, winner, snapshots, nowMs())
	}

	gm.broadcast(room, constants.MSG_GAME_ENDED, map[string]any{
		"winner":       winner,
		"gameState":    state,
		"gameMode":     room.Mode,
		"alivePlayers": alive,
		"deadPlayers":  dead,
		"roomCode":     room.Code,
	})
	log.Printf("Room %s: game ended (%s)", room.Code, reason)

	if room.Mode == constants.MODE_MULTI {
		if room.cleanupTimer != nil {
			room.cleanupTimer.Stop()
		}
		room.cleanupTimer = time.AfterFunc(constants.CLEANUP_DELAY_MULTI, func() {
			gm.destroyRoom(room.Code, constants.END_ROOM_DELETED)
		})
	}
	// Solo/single rooms are destroyed by their caller right after this
	// returns; doing it here would re-enter the room lock.
}

// stopTicker halts the simulation loop if running. Caller holds the room
// lock.
func (gm *Manager) stopTicker(room *Room) {
	if room.tickerStop != nil {
		close(room.tickerStop)
		room.tickerStop = nil
	}
	room.Running = false
}

// destroyRoom removes a room and releases everything it owns.
func (gm *Manager) destroyRoom(roomCode, sessionReason string) {
	gm.Mutex.Lock()
	room, exists := gm.Rooms[roomCode]
	if exists {
		delete(gm.Rooms, roomCode)
	}
	gm.Mutex.Unlock()
	if !exists {
		return
	}

	room.Mutex.Lock()
	gm.stopTicker(room)
	room.countdown.cancel()
	room.countdown = nil
	room.resumeCountdown.cancel()
	room.resumeCountdown = nil
	if room.readyDelayTimer != nil {
		room.readyDelayTimer.Stop()
	}
	if room.cleanupTimer != nil {
		room.cleanupTimer.Stop()
	}
	for id, timer := range room.disconnectTimers {
		timer.Stop()
		delete(room.disconnectTimers, id)
	}
	for _, conn := range room.Conns {
		conn.RoomCode = ""
		conn.PlayerID = ""
	}
	room.Conns = make(map[string]*Conn)
	room.ConnToPlayer = make(map[string]string)
	sessionID := room.SessionID
	room.Mutex.Unlock()

	if sessionID != "" {
		gm.Sessions.End(sessionID, sessionReason, nil, nil, nowMs())
	}
	if gm.PublicIndex.Contains(roomCode) {
		gm.PublicIndex.Remove(roomCode)
		gm.broadcastAll(constants.MSG_PUBLIC_ROOMS_UPDATED, map[string]any{"rooms": gm.PublicIndex.Snapshot()})
	}
	log.Printf("Room %s destroyed", roomCode)
}
