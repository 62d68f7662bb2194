package game

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// PowerUpCollection reports one item picked up during a tick.
type PowerUpCollection struct {
	PlayerID   string
	PlayerName string
	Type       models.PowerUpType
}

// PowerUpService is the seam between the simulation and the power-up
// feature. The simulation calls it unconditionally; when the feature flag
// is off a no-op implementation is wired instead.
type PowerUpService interface {
	MaybeSpawn(state *models.GameState, now int64)
	CheckCollect(state *models.GameState, now int64) []PowerUpCollection
	Tick(state *models.GameState, now int64)
	CancelAll(p *models.Player)
}

type noopPowerUps struct{}

func (noopPowerUps) MaybeSpawn(*models.GameState, int64)                       {}
func (noopPowerUps) CheckCollect(*models.GameState, int64) []PowerUpCollection { return nil }
func (noopPowerUps) Tick(*models.GameState, int64)                             {}
func (noopPowerUps) CancelAll(p *models.Player)                                { p.ActivePowerups = nil }

// NewPowerUpService returns the real manager or a no-op depending on the
// feature flag.
func NewPowerUpService(enabled bool, rng *rand.Rand) PowerUpService {
	if !enabled {
		return noopPowerUps{}
	}
	return &powerUpManager{rng: rng}
}

type powerUpManager struct {
	rng          *rand.Rand
	lastSpawnAt  int64
	nextInterval int64
}

func (pm *powerUpManager) sampleInterval() int64 {
	span := int64(constants.POWERUP_MAX_SPAWN_MS - constants.POWERUP_MIN_SPAWN_MS)
	return constants.POWERUP_MIN_SPAWN_MS + pm.rng.Int63n(span+1)
}

// MaybeSpawn places at most one new item per call. The first call only arms
// the spawn clock so items never appear at tick zero.
func (pm *powerUpManager) MaybeSpawn(state *models.GameState, now int64) {
	if pm.lastSpawnAt == 0 {
		pm.lastSpawnAt = now
		pm.nextInterval = pm.sampleInterval()
		return
	}
	if len(state.PowerUps) >= constants.POWERUP_MAX_ACTIVE {
		return
	}
	if now-pm.lastSpawnAt < pm.nextInterval {
		return
	}

	cell, ok := randomFreeCell(state, pm.rng)
	if !ok {
		return
	}

	item := &models.PowerUp{
		ID:        uuid.New().String(),
		Position:  cell,
		Type:      models.AllPowerUpTypes[pm.rng.Intn(len(models.AllPowerUpTypes))],
		SpawnedAt: now,
	}
	state.PowerUps = append(state.PowerUps, item)
	pm.lastSpawnAt = now
	pm.nextInterval = pm.sampleInterval()
}

// CheckCollect applies and removes every item some alive head is standing on.
func (pm *powerUpManager) CheckCollect(state *models.GameState, now int64) []PowerUpCollection {
	var collected []PowerUpCollection

	remaining := state.PowerUps[:0]
	for _, item := range state.PowerUps {
		var collector *models.Player
		for _, p := range state.Players {
			if p.Alive && p.Head() == item.Position {
				collector = p
				break
			}
		}
		if collector == nil {
			remaining = append(remaining, item)
			continue
		}
		pm.apply(collector, item.Type, state, now)
		collected = append(collected, PowerUpCollection{
			PlayerID:   collector.ID,
			PlayerName: collector.Name,
			Type:       item.Type,
		})
	}
	state.PowerUps = remaining

	return collected
}

// apply puts the effect onto the collector (or, for slowOthers, onto every
// other alive player). A new non-slowed effect replaces any prior non-slowed
// effects on the collector; slowed stacks freely.
func (pm *powerUpManager) apply(collector *models.Player, typ models.PowerUpType, state *models.GameState, now int64) {
	expiry := now + constants.POWERUP_EFFECT_MS

	switch typ {
	case models.PowerUpSlowOthers:
		for _, other := range state.Players {
			if other.ID == collector.ID || !other.Alive {
				continue
			}
			if other.ActivePowerups == nil {
				other.ActivePowerups = make(map[models.PowerUpType]int64)
			}
			other.ActivePowerups[models.EffectSlowed] = expiry
		}
	case models.PowerUpShrink:
		for i := 0; i < constants.SHRINK_SEGMENTS && len(collector.Snake) > 1; i++ {
			collector.Snake = collector.Snake[:len(collector.Snake)-1]
		}
		pm.replaceEffects(collector, typ, expiry)
	default:
		pm.replaceEffects(collector, typ, expiry)
	}
}

func (pm *powerUpManager) replaceEffects(p *models.Player, typ models.PowerUpType, expiry int64) {
	if p.ActivePowerups == nil {
		p.ActivePowerups = make(map[models.PowerUpType]int64)
	}
	for effect := range p.ActivePowerups {
		if effect != models.EffectSlowed {
			delete(p.ActivePowerups, effect)
		}
	}
	p.ActivePowerups[typ] = expiry
}

// Tick expires uncollected items and stale effects.
func (pm *powerUpManager) Tick(state *models.GameState, now int64) {
	remaining := state.PowerUps[:0]
	for _, item := range state.PowerUps {
		if now-item.SpawnedAt < constants.POWERUP_ITEM_TTL_MS {
			remaining = append(remaining, item)
		}
	}
	state.PowerUps = remaining

	for _, p := range state.Players {
		if p.ActivePowerups == nil {
			continue
		}
		for effect, expiry := range p.ActivePowerups {
			if now >= expiry {
				delete(p.ActivePowerups, effect)
			}
		}
		if len(p.ActivePowerups) == 0 {
			p.ActivePowerups = nil
		}
	}
}

func (pm *powerUpManager) CancelAll(p *models.Player) {
	p.ActivePowerups = nil
}

// hasEffect reports whether an effect is active on the player at now.
func hasEffect(p *models.Player, effect models.PowerUpType, now int64) bool {
	if p.ActivePowerups == nil {
		return false
	}
	expiry, ok := p.ActivePowerups[effect]
	return ok && now < expiry
}

// speedFactor is the per-tick movement multiplier: slowed halves, speedBoost
// doubles, both together cancel out.
func speedFactor(p *models.Player, now int64) float64 {
	factor := 1.0
	if hasEffect(p, models.EffectSlowed, now) {
		factor *= 0.5
	}
	if hasEffect(p, models.PowerUpSpeedBoost, now) {
		factor *= 2.0
	}
	return factor
}

// randomFreeCell picks a uniformly random cell not covered by an alive
// snake, food, or another power-up. Rejection sampling with a bounded
// number of tries; a full board reports failure.
func randomFreeCell(state *models.GameState, rng *rand.Rand) (models.Position, bool) {
	occupied := make(map[models.Position]bool)
	for _, p := range state.Players {
		if !p.Alive {
			continue
		}
		for _, seg := range p.Snake {
			occupied[seg] = true
		}
	}
	for _, f := range state.Food {
		occupied[f] = true
	}
	for _, item := range state.PowerUps {
		occupied[item.Position] = true
	}

	total := constants.GRID_WIDTH * constants.GRID_HEIGHT
	if len(occupied) >= total {
		return models.Position{}, false
	}
	for tries := 0; tries < total*4; tries++ {
		cell := models.Position{
			X: rng.Intn(constants.GRID_WIDTH),
			Y: rng.Intn(constants.GRID_HEIGHT),
		}
		if !occupied[cell] {
			return cell, true
		}
	}
	// Dense board: fall back to scanning.
	for y := 0; y < constants.GRID_HEIGHT; y++ {
		for x := 0; x < constants.GRID_WIDTH; x++ {
			cell := models.Position{X: x, Y: y}
			if !occupied[cell] {
				return cell, true
			}
		}
	}
	return models.Position{}, false
}
