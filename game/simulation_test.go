package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstnuel/snake-game-npc/config"
	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

func testConfig() *config.Config {
	return &config.Config{Port: "0", Chat: true, PowerUps: false, Accessibility: true}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	gm := NewManager(testConfig())
	t.Cleanup(gm.Close)
	return gm
}

// newTestRoom builds a room with the given human names (prefix "npc:" makes
// an NPC) and a freshly built game state, as after startGame. The simulation
// has not begun (StartedAt is 0); startSimulation begins it.
func newTestRoom(t *testing.T, gm *Manager, mode string, names ...string) *Room {
	t.Helper()
	room := gm.newRoom("TEST"+uuid.New().String()[:4], mode)
	gm.Mutex.Lock()
	gm.Rooms[room.Code] = room
	gm.Mutex.Unlock()

	for _, name := range names {
		id := uuid.New().String()
		kind := models.KindHuman
		if len(name) > 4 && name[:4] == "npc:" {
			kind = models.KindNPC
			name = name[4:]
		}
		room.Players[id] = &models.Participant{
			ID:     id,
			Name:   name,
			Kind:   kind,
			IsHost: len(room.JoinOrder) == 0,
		}
		room.JoinOrder = append(room.JoinOrder, id)
		if kind == models.KindNPC {
			room.NPCs[id] = NewNPCState(id, models.NPCConfig{Name: name})
		}
	}

	room.State = gm.buildGameState(room)
	return room
}

func startSimulation(room *Room) {
	now := nowMs()
	room.State.StartedAt = now
	for id, p := range room.State.Players {
		p.SurvivalStart = now
		room.State.LastInputAt[id] = now
	}
}

func playerByName(room *Room, name string) *models.Player {
	for _, p := range room.State.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func connFor(t *testing.T, gm *Manager, room *Room, name string) *Conn {
	t.Helper()
	p := playerByName(room, name)
	require.NotNil(t, p)
	conn := &Conn{ID: uuid.New().String(), Send: make(chan []byte, 256)}
	conn.RoomCode = room.Code
	conn.PlayerID = p.ID
	room.Conns[conn.ID] = conn
	room.ConnToPlayer[conn.ID] = p.ID
	if participant, ok := room.Players[p.ID]; ok {
		participant.ConnID = conn.ID
	}
	return conn
}

// movementSubStepForTest grants every alive player one pending step (unless
// the test parked them with a negative accumulator) and runs one sub-step.
func (gm *Manager) movementSubStepForTest(room *Room) {
	for _, p := range room.State.Players {
		if p.Alive && p.SpeedAccumulator >= 0 && p.SpeedAccumulator < 1 {
			p.SpeedAccumulator = 1
		}
	}
	gm.movementSubStep(room, nowMs())
}

func TestTickPeriodScalesWithLevel(t *testing.T) {
	prev := time.Duration(0)
	for level := 1; level <= 10; level++ {
		period := tickPeriod(level, constants.MODE_MULTI)
		if prev != 0 {
			assert.LessOrEqual(t, period, prev, "period must not grow with level")
		}
		prev = period
	}
	// Capped at 16 Hz.
	assert.Equal(t, tickPeriod(10, constants.MODE_MULTI), tickPeriod(20, constants.MODE_MULTI))
	// Solo runs slightly faster.
	assert.Less(t, tickPeriod(1, constants.MODE_SOLO), tickPeriod(1, constants.MODE_MULTI))
}

func TestSoloEatsFood(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_SOLO, "Hero")
	startSimulation(room)
	state := room.State

	p := playerByName(room, "Hero")
	p.Snake = []models.Position{{X: 5, Y: 5}}
	p.Direction = constants.RIGHT
	p.QueuedDirection = constants.RIGHT
	state.Food = []models.Position{{X: 6, Y: 5}}

	room.Mutex.Lock()
	gm.tick(room)
	room.Mutex.Unlock()

	require.True(t, p.Alive)
	assert.Equal(t, []models.Position{{X: 6, Y: 5}, {X: 5, Y: 5}}, p.Snake)
	assert.Equal(t, constants.FOOD_SCORE, p.Score)
	assert.Equal(t, 1, state.TotalFoodEaten)
	assert.Equal(t, 1, state.Level)
	assert.Len(t, state.Food, 1, "one replacement food spawned")

	// Four more meals bump the level.
	state.TotalFoodEaten = 4
	head := p.Head()
	state.Food = []models.Position{{X: head.X + 1, Y: head.Y}}
	room.Mutex.Lock()
	gm.tick(room)
	room.Mutex.Unlock()
	assert.Equal(t, 5, state.TotalFoodEaten)
	assert.Equal(t, 2, state.Level)
}

func TestWrapModeBoundaries(t *testing.T) {
	pos := nextPosition(models.Position{X: 0, Y: 3}, constants.LEFT, false)
	assert.Equal(t, models.Position{X: constants.GRID_WIDTH - 1, Y: 3}, pos)

	pos = nextPosition(models.Position{X: 4, Y: constants.GRID_HEIGHT - 1}, constants.DOWN, false)
	assert.Equal(t, models.Position{X: 4, Y: 0}, pos)
}

func TestWallModeDeath(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_SOLO, "Hero")
	room.State.WallMode = true
	startSimulation(room)

	p := playerByName(room, "Hero")
	p.Snake = []models.Position{{X: 0, Y: 7}}
	p.Direction = constants.LEFT
	p.QueuedDirection = constants.LEFT

	room.Mutex.Lock()
	gm.tick(room)
	room.Mutex.Unlock()

	assert.False(t, p.Alive)
	require.NotNil(t, room.State.Winner)
	assert.True(t, room.State.Winner.IsLoser)
}

func TestMultiPassThrough(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	room.State.WallMode = false
	room.State.StrictMode = false
	startSimulation(room)

	a := playerByName(room, "A")
	b := playerByName(room, "B")
	a.Snake = []models.Position{{X: 5, Y: 5}}
	a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT
	b.Snake = []models.Position{{X: 6, Y: 5}}
	b.Direction, b.QueuedDirection = constants.LEFT, constants.LEFT
	room.State.Food = []models.Position{{X: 20, Y: 20}}

	room.Mutex.Lock()
	gm.movementSubStepForTest(room)
	room.Mutex.Unlock()

	assert.True(t, a.Alive, "friendly mode skips head-on collisions")
	assert.True(t, b.Alive)
	assert.Equal(t, models.Position{X: 6, Y: 5}, a.Head())
	assert.Equal(t, models.Position{X: 5, Y: 5}, b.Head())
}

func TestStrictModeBodyKill(t *testing.T) {
	for _, strict := range []bool{true, false} {
		gm := newTestManager(t)
		room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
		room.State.WallMode = true // avoid the friendly pass-through rule
		room.State.StrictMode = strict
		startSimulation(room)

		a := playerByName(room, "A")
		b := playerByName(room, "B")
		a.Snake = []models.Position{{X: 5, Y: 5}, {X: 4, Y: 5}}
		a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT
		b.Snake = []models.Position{{X: 6, Y: 5}, {X: 7, Y: 5}, {X: 8, Y: 5}}
		b.Direction, b.QueuedDirection = constants.RIGHT, constants.RIGHT
		b.SpeedAccumulator = -1000 // keep B stationary

		room.Mutex.Lock()
		gm.movementSubStepForTest(room)
		room.Mutex.Unlock()

		// A runs into B's head cell either way: strict mode tests all
		// segments, normal mode still collides with segment zero.
		assert.False(t, a.Alive, "strict=%v", strict)
		assert.True(t, b.Alive, "strict=%v", strict)
	}
}

func TestStrictVsNormalTailCollision(t *testing.T) {
	for _, tc := range []struct {
		strict    bool
		expectDie bool
	}{{true, true}, {false, false}} {
		gm := newTestManager(t)
		room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
		room.State.WallMode = true
		room.State.StrictMode = tc.strict
		startSimulation(room)

		a := playerByName(room, "A")
		b := playerByName(room, "B")
		a.Snake = []models.Position{{X: 5, Y: 5}, {X: 4, Y: 5}}
		a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT
		// A's new head lands on B's tail segment, not its head.
		b.Snake = []models.Position{{X: 8, Y: 5}, {X: 7, Y: 5}, {X: 6, Y: 5}}
		b.Direction, b.QueuedDirection = constants.RIGHT, constants.RIGHT
		b.SpeedAccumulator = -1000

		room.Mutex.Lock()
		gm.movementSubStepForTest(room)
		room.Mutex.Unlock()

		assert.Equal(t, !tc.expectDie, a.Alive, "strict=%v", tc.strict)
	}
}

func TestHeadToHeadShieldArbitration(t *testing.T) {
	setup := func() (*Manager, *Room, *models.Player, *models.Player) {
		gm := newTestManager(t)
		room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
		room.State.WallMode = true
		startSimulation(room)
		a := playerByName(room, "A")
		b := playerByName(room, "B")
		a.Snake = []models.Position{{X: 5, Y: 5}}
		a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT
		b.Snake = []models.Position{{X: 7, Y: 5}}
		b.Direction, b.QueuedDirection = constants.LEFT, constants.LEFT
		return gm, room, a, b
	}

	expiry := nowMs() + constants.POWERUP_EFFECT_MS

	// Without shields both die.
	gm, room, a, b := setup()
	room.Mutex.Lock()
	gm.movementSubStepForTest(room)
	room.Mutex.Unlock()
	assert.False(t, a.Alive)
	assert.False(t, b.Alive)

	// All-shield: nobody dies.
	gm, room, a, b = setup()
	a.ActivePowerups = map[models.PowerUpType]int64{models.PowerUpShield: expiry}
	b.ActivePowerups = map[models.PowerUpType]int64{models.PowerUpShield: expiry}
	room.Mutex.Lock()
	gm.movementSubStepForTest(room)
	room.Mutex.Unlock()
	assert.True(t, a.Alive)
	assert.True(t, b.Alive)

	// One shield is not enough: the group still dies.
	gm, room, a, b = setup()
	a.ActivePowerups = map[models.PowerUpType]int64{models.PowerUpShield: expiry}
	room.Mutex.Lock()
	gm.movementSubStepForTest(room)
	room.Mutex.Unlock()
	assert.False(t, a.Alive)
	assert.False(t, b.Alive)
}

func TestSingleModeHumanNPCImmunity(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_SINGLE, "Hero", "npc:Bot-Alpha")
	room.State.WallMode = true
	startSimulation(room)

	human := playerByName(room, "Hero")
	bot := playerByName(room, "Bot-Alpha")
	human.Snake = []models.Position{{X: 5, Y: 5}}
	human.Direction, human.QueuedDirection = constants.RIGHT, constants.RIGHT
	bot.Snake = []models.Position{{X: 7, Y: 5}}
	bot.Direction, bot.QueuedDirection = constants.LEFT, constants.LEFT

	room.Mutex.Lock()
	gm.movementSubStepForTest(room)
	room.Mutex.Unlock()

	assert.True(t, human.Alive, "human and NPC never collide in single mode")
	assert.True(t, bot.Alive)
}

func TestMultiWinnerSurvivalBonus(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	state := room.State

	a := playerByName(room, "A")
	b := playerByName(room, "B")
	a.Score = 20
	b.Score = 10
	gm.killPlayer(room, b, nowMs())

	gm.checkWinCondition(room, false)
	require.NotNil(t, state.Winner)
	assert.Equal(t, a.ID, state.Winner.ID)
	assert.Equal(t, 70, state.Winner.Score, "survivor bonus applied")
}

func TestMultiZeroScoreSurvivorHold(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	state := room.State

	b := playerByName(room, "B")
	gm.killPlayer(room, b, nowMs())

	gm.checkWinCondition(room, false)
	assert.Nil(t, state.Winner, "zero-score lone survivor is held back")
	assert.NotZero(t, state.LastSurvivorSince)

	// Still inside the hold window.
	gm.checkWinCondition(room, false)
	assert.Nil(t, state.Winner)

	// After the hold elapses the survivor is declared.
	state.LastSurvivorSince = nowMs() - constants.LAST_SURVIVOR_HOLD_MS - 1
	gm.checkWinCondition(room, false)
	require.NotNil(t, state.Winner)
	assert.Equal(t, playerByName(room, "A").ID, state.Winner.ID)
}

func TestMultiDeadHighScorerStillWins(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B", "C")
	startSimulation(room)
	state := room.State

	a := playerByName(room, "A")
	b := playerByName(room, "B")
	c := playerByName(room, "C")
	a.Score = 200
	gm.killPlayer(room, a, nowMs())
	gm.killPlayer(room, b, nowMs())
	c.Score = 10

	gm.checkWinCondition(room, false)
	require.NotNil(t, state.Winner)
	assert.Equal(t, a.ID, state.Winner.ID, "a dead higher scorer outranks the bonused survivor")
}

func TestTimeoutAwardsAliveBonus(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)

	a := playerByName(room, "A")
	b := playerByName(room, "B")
	a.Score = 30
	b.Score = 10

	gm.checkWinCondition(room, true)
	assert.Equal(t, 80, a.Score)
	assert.Equal(t, 60, b.Score)
	// With several players still alive the timeout ends in a draw; the
	// bonus only reorders the final standings.
	assert.Nil(t, room.State.Winner)
}

func TestNPCRespawnInSingleMode(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_SINGLE, "Hero", "npc:Bot-Alpha")
	startSimulation(room)

	bot := playerByName(room, "Bot-Alpha")
	bot.Score = 40
	gm.killPlayer(room, bot, nowMs())

	room.Mutex.Lock()
	gm.maybeReviveNPC(room, nowMs())
	room.Mutex.Unlock()

	assert.True(t, bot.Alive)
	assert.Equal(t, 0, bot.Score)
	assert.Len(t, bot.Snake, 1)
	assert.True(t, inBounds(bot.Head()))
}

func TestPausedTickFreezesState(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	state := room.State
	state.Paused = true
	state.PauseStartedAt = nowMs()

	a := playerByName(room, "A")
	before := append([]models.Position(nil), a.Snake...)
	tickBefore := state.Tick
	timerBefore := state.TimerSeconds

	room.Mutex.Lock()
	gm.tick(room)
	room.Mutex.Unlock()

	assert.Equal(t, tickBefore, state.Tick)
	assert.Equal(t, timerBefore, state.TimerSeconds)
	assert.Equal(t, before, a.Snake)
}

func TestPlayerInputRules(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	conn := connFor(t, gm, room, "A")
	a := playerByName(room, "A")
	a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT

	// Reversal is rejected.
	gm.PlayerInput(conn, room.Code, "left")
	assert.Equal(t, constants.RIGHT, a.QueuedDirection)

	// A legal turn is queued.
	gm.PlayerInput(conn, room.Code, "up")
	assert.Equal(t, constants.UP, a.QueuedDirection)

	// Second input in the same tick is rejected.
	gm.PlayerInput(conn, room.Code, "down")
	assert.Equal(t, constants.UP, a.QueuedDirection)

	// Next tick: reversing the still-committed direction stays illegal
	// even though the queued direction points elsewhere.
	room.State.Tick++
	gm.PlayerInput(conn, room.Code, "left")
	assert.Equal(t, constants.UP, a.QueuedDirection)

	// A direction opposing neither queued nor committed is accepted.
	gm.PlayerInput(conn, room.Code, "right")
	assert.Equal(t, constants.RIGHT, a.QueuedDirection)

	// Dead players cannot steer.
	gm.killPlayer(room, a, nowMs())
	room.State.Tick++
	gm.PlayerInput(conn, room.Code, "down")
	assert.Equal(t, constants.RIGHT, a.QueuedDirection)

	// Unknown directions are rejected outright.
	gm.PlayerInput(conn, room.Code, "diagonal")
}

func TestSpeedAccumulatorSubSteps(t *testing.T) {
	gm := newTestManager(t)
	room := newTestRoom(t, gm, constants.MODE_MULTI, "A", "B")
	startSimulation(room)
	state := room.State
	state.Food = []models.Position{{X: 28, Y: 28}}

	a := playerByName(room, "A")
	b := playerByName(room, "B")
	a.Snake = []models.Position{{X: 5, Y: 5}}
	a.Direction, a.QueuedDirection = constants.RIGHT, constants.RIGHT
	a.ActivePowerups = map[models.PowerUpType]int64{models.PowerUpSpeedBoost: nowMs() + 5000}
	b.Snake = []models.Position{{X: 5, Y: 20}}
	b.Direction, b.QueuedDirection = constants.RIGHT, constants.RIGHT

	room.Mutex.Lock()
	gm.tick(room)
	room.Mutex.Unlock()

	assert.Equal(t, models.Position{X: 7, Y: 5}, a.Head(), "boosted player moves twice per tick")
	assert.Equal(t, models.Position{X: 6, Y: 20}, b.Head(), "normal player moves once")
}
