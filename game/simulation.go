package game

import (
	"log"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// tickPeriod derives the ticker period from the level. Solo games run a
// touch faster at every level.
func tickPeriod(level int, mode string) time.Duration {
	rate := constants.BASE_TICK_RATE + constants.TICK_RATE_STEP*float64(level-1)
	if rate > constants.MAX_TICK_RATE {
		rate = constants.MAX_TICK_RATE
	}
	if mode == constants.MODE_SOLO {
		rate *= constants.SOLO_RATE_BONUS
	}
	return time.Duration(float64(time.Second) / rate)
}

// startTicker launches the room's simulation loop. Caller holds the room
// lock. Starting an already-running loop is a no-op.
func (gm *Manager) startTicker(room *Room) {
	if room.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	room.tickerStop = stop
	room.Running = true
	go gm.runLoop(room, stop)
}

// runLoop drives one room's ticks until the game ends or the ticker is
// stopped. The ticker is re-armed whenever a level change alters the
// period. A panic inside a tick is contained: the game is force-ended and
// the room disposed.
func (gm *Manager) runLoop(room *Room, stop chan struct{}) {
	room.Mutex.RLock()
	period := tickPeriod(room.State.Level, room.Mode)
	room.Mutex.RUnlock()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			crashed := false
			stopped := false
			ended := false
			var newPeriod time.Duration

			func() {
				room.Mutex.Lock()
				defer room.Mutex.Unlock()
				defer func() {
					if r := recover(); r != nil {
						crashed = true
						log.Printf("Room %s: tick panic: %v\n%s", room.Code, r, debug.Stack())
					}
				}()
				if room.tickerStop != stop || room.Ended {
					stopped = true
					return
				}
				gm.tick(room)
				ended = room.Ended
				newPeriod = tickPeriod(room.State.Level, room.Mode)
			}()

			if crashed {
				room.Mutex.Lock()
				gm.finishGame(room, constants.END_CRASHED)
				room.Mutex.Unlock()
				gm.destroyRoom(room.Code, constants.END_CRASHED)
				return
			}
			if stopped {
				return
			}
			if ended {
				if room.Mode != constants.MODE_MULTI {
					gm.destroyRoom(room.Code, constants.END_GAME_ENDED)
				}
				return
			}
			if newPeriod != period {
				period = newPeriod
				ticker.Reset(period)
			}
		}
	}
}

// tick advances the room by one simulation step. Caller holds the room
// lock.
func (gm *Manager) tick(room *Room) {
	state := room.State
	now := nowMs()

	// Frozen ticks still publish state so clients observe a stopped timer.
	if state.Paused || room.countdownActive() || state.StartedAt == 0 {
		gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": state})
		return
	}

	state.Tick++
	elapsed := now - state.StartedAt - state.TotalPauseMs
	state.TimerSeconds = int(elapsed / 1000)

	if state.TimeLimitMs > 0 && elapsed >= state.TimeLimitMs {
		gm.checkWinCondition(room, true)
		gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": state})
		gm.finishGame(room, constants.END_TIMEOUT)
		return
	}

	room.powerups.MaybeSpawn(state, now)
	for _, c := range room.powerups.CheckCollect(state, now) {
		gm.broadcast(room, constants.MSG_POWERUP_COLLECTED, map[string]any{
			"playerId":   c.PlayerID,
			"playerName": c.PlayerName,
			"type":       c.Type,
			"sound":      string(c.Type),
		})
	}
	room.powerups.Tick(state, now)

	gm.runWatchdog(room, now)
	if room.Ended {
		return
	}

	room.npcEngine.DecideAll(state, room.NPCs)

	// Speed accumulation decides how many movement sub-steps each player
	// takes this tick.
	maxSteps := 0
	for _, p := range state.Players {
		if !p.Alive {
			continue
		}
		p.SpeedAccumulator += speedFactor(p, now)
		if steps := int(p.SpeedAccumulator); steps > maxSteps {
			maxSteps = steps
		}
	}
	for step := 0; step < maxSteps; step++ {
		gm.movementSubStep(room, now)
		gm.checkWinCondition(room, false)
		if state.Winner != nil {
			break
		}
	}

	if state.Winner == nil {
		gm.checkWinCondition(room, false)
	}

	if room.Mode == constants.MODE_SINGLE && state.Winner == nil {
		gm.maybeReviveNPC(room, now)
	}

	gm.broadcast(room, constants.MSG_GAME_STATE_UPDATE, map[string]any{"gameState": state})

	if state.Winner != nil {
		gm.finishGame(room, constants.END_GAME_ENDED)
	}
}

// movementSubStep moves every player whose accumulator grants a step,
// arbitrating all collisions for the sub-step at once. Caller holds the
// room lock.
func (gm *Manager) movementSubStep(room *Room, now int64) {
	state := room.State

	var movers []*models.Player
	for _, p := range state.Players {
		if p.Alive && p.SpeedAccumulator >= 1 {
			p.SpeedAccumulator--
			movers = append(movers, p)
		}
	}
	if len(movers) == 0 {
		return
	}

	newHeads := make(map[string]models.Position, len(movers))
	for _, p := range movers {
		p.Direction = p.QueuedDirection
		newHeads[p.ID] = nextPosition(p.Head(), p.Direction, state.WallMode)
	}

	died := make(map[string]string) // playerID -> collision type

	// Head-to-head arbitration.
	groups := make(map[models.Position][]*models.Player)
	for _, p := range movers {
		groups[newHeads[p.ID]] = append(groups[newHeads[p.ID]], p)
	}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		if room.Mode == constants.MODE_SINGLE && mixedKinds(group) {
			continue
		}
		if room.Mode == constants.MODE_MULTI && !state.WallMode && !state.StrictMode {
			continue
		}
		allShielded := true
		for _, p := range group {
			if !hasEffect(p, models.PowerUpShield, now) {
				allShielded = false
				break
			}
		}
		if allShielded {
			continue
		}
		for _, p := range group {
			died[p.ID] = constants.COLLISION_HEAD_TO_HEAD
		}
	}

	// Wall, self and body collisions for the remaining movers. A shield
	// suppresses the death; a shielded wall hit additionally forfeits the
	// move so the head never leaves the board.
	stay := make(map[string]bool)
	for _, p := range movers {
		if _, dead := died[p.ID]; dead {
			continue
		}
		collision := gm.checkOtherCollisions(room, p, newHeads[p.ID])
		if collision == "" {
			continue
		}
		if hasEffect(p, models.PowerUpShield, now) {
			if collision == constants.COLLISION_WALL {
				stay[p.ID] = true
			}
			continue
		}
		died[p.ID] = collision
	}

	for id, collisionType := range died {
		p := state.Players[id]
		gm.killPlayer(room, p, now)
		gm.broadcast(room, constants.MSG_PLAYER_COLLIDED, map[string]any{
			"playerName":    p.Name,
			"collisionType": collisionType,
		})
	}

	// Survivors advance; eating retains the tail and respawns food.
	for _, p := range movers {
		if !p.Alive || stay[p.ID] {
			continue
		}
		head := newHeads[p.ID]
		p.Snake = append([]models.Position{head}, p.Snake...)

		ate := false
		for i, f := range state.Food {
			if f == head {
				state.Food = append(state.Food[:i], state.Food[i+1:]...)
				ate = true
				break
			}
		}
		if ate {
			p.Score += constants.FOOD_SCORE
			state.TotalFoodEaten++
			state.Level = state.TotalFoodEaten/constants.FOOD_PER_LEVEL + 1
			if food, ok := randomFreeCell(state, room.rng); ok {
				state.Food = append(state.Food, food)
			}
		} else {
			p.Snake = p.Snake[:len(p.Snake)-1]
		}
	}
}

func mixedKinds(group []*models.Player) bool {
	hasHuman, hasNPC := false, false
	for _, p := range group {
		if p.Kind == models.KindHuman {
			hasHuman = true
		} else {
			hasNPC = true
		}
	}
	return hasHuman && hasNPC
}

// checkOtherCollisions classifies a proposed head against walls, the
// mover's own body and other snakes. Caller holds the room lock.
func (gm *Manager) checkOtherCollisions(room *Room, p *models.Player, newHead models.Position) string {
	state := room.State

	if state.WallMode && !inBounds(newHead) {
		return constants.COLLISION_WALL
	}

	for _, seg := range p.Snake[1:] {
		if seg == newHead {
			return constants.COLLISION_SELF
		}
	}

	for _, other := range state.Players {
		if other.ID == p.ID || !other.Alive {
			continue
		}
		if room.Mode == constants.MODE_SINGLE && p.Kind != other.Kind {
			continue
		}
		if room.Mode == constants.MODE_MULTI && !state.WallMode && !state.StrictMode {
			continue
		}
		if state.StrictMode {
			for _, seg := range other.Snake {
				if seg == newHead {
					return constants.COLLISION_HEAD_TO_BODY
				}
			}
		} else if other.Head() == newHead {
			return constants.COLLISION_HEAD_TO_BODY
		}
	}
	return ""
}

// killPlayer marks a player dead, freezes their survival clock and cancels
// their effects. Score is retained. Caller holds the room lock.
func (gm *Manager) killPlayer(room *Room, p *models.Player, now int64) {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.SurvivalDuration = now - p.SurvivalStart
	room.powerups.CancelAll(p)
}

// checkWinCondition evaluates the mode-specific end rules and sets
// state.Winner when the game is decided. Caller holds the room lock.
func (gm *Manager) checkWinCondition(room *Room, timeoutReached bool) {
	state := room.State
	if state == nil || state.Winner != nil {
		return
	}
	now := nowMs()

	if timeoutReached {
		for _, p := range state.Players {
			if p.Alive {
				p.Score += constants.SURVIVAL_BONUS
			}
		}
	}

	players := make([]*models.Player, 0, len(state.Players))
	humans := 0
	aliveCount := 0
	for _, p := range state.Players {
		players = append(players, p)
		if p.Kind == models.KindHuman {
			humans++
		}
		if p.Alive {
			aliveCount++
		}
	}

	// Single mode: the human against NPCs; the game runs until the human
	// dies and the human is always the (losing) "winner" entry.
	if humans == 1 && len(players) > 1 && room.Mode == constants.MODE_SINGLE {
		for _, p := range players {
			if p.Kind != models.KindHuman {
				continue
			}
			if !p.Alive {
				state.Winner = &models.Winner{ID: p.ID, Name: p.Name, Score: p.Score, IsLoser: true}
			}
			return
		}
	}

	// Solo mode: one player, game over on death.
	if len(players) == 1 {
		p := players[0]
		if !p.Alive {
			state.Winner = &models.Winner{ID: p.ID, Name: p.Name, Score: p.Score, IsLoser: true}
		}
		return
	}

	if room.Mode != constants.MODE_MULTI {
		return
	}

	sortByStanding(players)

	switch {
	case aliveCount == 0:
		top := players[0]
		if top.Score >= 0 {
			state.Winner = &models.Winner{ID: top.ID, Name: top.Name, Score: top.Score}
		}
	case aliveCount == 1:
		totalScore := 0
		for _, p := range players {
			totalScore += p.Score
		}
		var survivor *models.Player
		for _, p := range players {
			if p.Alive {
				survivor = p
				break
			}
		}
		if totalScore == 0 {
			// A lone survivor seconds into the game is usually a spawn
			// accident; hold the declaration briefly.
			if state.LastSurvivorSince == 0 {
				state.LastSurvivorSince = now
				return
			}
			if now-state.LastSurvivorSince < constants.LAST_SURVIVOR_HOLD_MS {
				return
			}
		}
		survivor.Score += constants.SURVIVAL_BONUS
		sortByStanding(players)
		top := players[0]
		state.Winner = &models.Winner{ID: top.ID, Name: top.Name, Score: top.Score}
	default:
		state.LastSurvivorSince = 0
	}
}

// sortByStanding orders players by score desc, then alive first, then
// longest survival.
func sortByStanding(players []*models.Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if players[i].Alive != players[j].Alive {
			return players[i].Alive
		}
		return players[i].SurvivalDuration > players[j].SurvivalDuration
	})
}

// maybeReviveNPC brings back exactly one NPC when all NPCs are dead and
// the human still lives (single mode keeps pressure on the player).
// Caller holds the room lock.
func (gm *Manager) maybeReviveNPC(room *Room, now int64) {
	state := room.State

	humanAlive := false
	anyNPCAlive := false
	for _, p := range state.Players {
		if p.Kind == models.KindHuman && p.Alive {
			humanAlive = true
		}
		if p.Kind == models.KindNPC && p.Alive {
			anyNPCAlive = true
		}
	}
	if !humanAlive || anyNPCAlive {
		return
	}

	var npc *models.Player
	for _, id := range room.JoinOrder {
		if p, ok := state.Players[id]; ok && p.Kind == models.KindNPC {
			npc = p
			break
		}
	}
	if npc == nil {
		return
	}

	spawn, dir, ok := gm.freeCorner(state)
	if !ok {
		cell, found := randomFreeCell(state, room.rng)
		if !found {
			return
		}
		spawn, dir = cell, constants.RIGHT
	}

	npc.Snake = []models.Position{spawn}
	npc.Direction = dir
	npc.QueuedDirection = dir
	npc.Score = 0
	npc.Alive = true
	npc.SurvivalStart = now
	npc.SurvivalDuration = 0
	npc.SpeedAccumulator = 0
	npc.ActivePowerups = nil
	if npcState, ok := room.NPCs[npc.ID]; ok {
		npcState.DecisionDelayTicks = 0
		npcState.TargetFood = nil
	}
	log.Printf("Room %s: NPC %s respawned", room.Code, npc.Name)
}

// freeCorner returns the first corner anchor not covered by a snake, food
// or power-up.
func (gm *Manager) freeCorner(state *models.GameState) (models.Position, constants.Direction, bool) {
	for _, anchor := range startAnchors {
		occupied := false
		for _, p := range state.Players {
			if !p.Alive {
				continue
			}
			for _, seg := range p.Snake {
				if seg == anchor.pos {
					occupied = true
					break
				}
			}
			if occupied {
				break
			}
		}
		for _, f := range state.Food {
			if f == anchor.pos {
				occupied = true
			}
		}
		for _, item := range state.PowerUps {
			if item.Position == anchor.pos {
				occupied = true
			}
		}
		if !occupied {
			return anchor.pos, anchor.dir, true
		}
	}
	return models.Position{}, constants.UP, false
}

// PlayerInput handles playerInput for one direction change.
func (gm *Manager) PlayerInput(conn *Conn, roomCode, directionStr string) {
	direction, err := constants.ParseDirection(directionStr)
	if err != nil {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "unknown_direction"})
		return
	}

	room, exists := gm.getRoom(strings.ToUpper(roomCode))
	if !exists {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "room_not_found"})
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	state := room.State
	if state == nil || state.StartedAt == 0 {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "not_started"})
		return
	}
	playerID := room.ConnToPlayer[conn.ID]
	player, ok := state.Players[playerID]
	if !ok {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "unknown_player"})
		return
	}
	if !player.Alive {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "player_dead"})
		return
	}
	if last, exists := state.LastInputTick[playerID]; exists && last == state.Tick {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "rate_limited"})
		return
	}
	if direction == player.QueuedDirection.Opposite() || direction == player.Direction.Opposite() {
		gm.sendEvent(conn, constants.MSG_INPUT_REJECTED, map[string]any{"reason": "reverse_direction"})
		return
	}

	player.QueuedDirection = direction
	state.LastInputAt[playerID] = nowMs()
	state.LastInputTick[playerID] = state.Tick
	delete(state.Warned, playerID)
}
