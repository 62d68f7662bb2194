package game

import (
	"github.com/firstnuel/snake-game-npc/constants"
	"github.com/firstnuel/snake-game-npc/models"
)

// directionVector returns the unit step for a direction.
func directionVector(d constants.Direction) (int, int) {
	switch d {
	case constants.UP:
		return 0, -1
	case constants.DOWN:
		return 0, 1
	case constants.LEFT:
		return -1, 0
	default:
		return 1, 0
	}
}

// nextPosition computes the head position one step from pos in direction d.
// In wrap mode coordinates are taken modulo the grid; in wall mode they may
// leave the board and must be checked with inBounds.
func nextPosition(pos models.Position, d constants.Direction, wallMode bool) models.Position {
	dx, dy := directionVector(d)
	next := models.Position{X: pos.X + dx, Y: pos.Y + dy}
	if wallMode {
		return next
	}

	if next.X < 0 {
		next.X = constants.GRID_WIDTH - 1
	} else if next.X >= constants.GRID_WIDTH {
		next.X = 0
	}
	if next.Y < 0 {
		next.Y = constants.GRID_HEIGHT - 1
	} else if next.Y >= constants.GRID_HEIGHT {
		next.Y = 0
	}
	return next
}

func inBounds(pos models.Position) bool {
	return pos.X >= 0 && pos.X < constants.GRID_WIDTH &&
		pos.Y >= 0 && pos.Y < constants.GRID_HEIGHT
}

// wallDistance is the distance from pos to the nearest board edge.
func wallDistance(pos models.Position) int {
	d := pos.X
	if v := constants.GRID_WIDTH - 1 - pos.X; v < d {
		d = v
	}
	if pos.Y < d {
		d = pos.Y
	}
	if v := constants.GRID_HEIGHT - 1 - pos.Y; v < d {
		d = v
	}
	return d
}

// axisDelta returns the signed distance from a to b along one axis of the
// given length. When wrapping is allowed the shorter way around is used.
func axisDelta(a, b, size int, wallMode bool) int {
	delta := b - a
	if wallMode {
		return delta
	}
	if delta > size/2 {
		delta -= size
	} else if delta < -size/2 {
		delta += size
	}
	return delta
}

// manhattanDistance between two cells, wrap-aware when wall mode is off.
func manhattanDistance(a, b models.Position, wallMode bool) int {
	dx := axisDelta(a.X, b.X, constants.GRID_WIDTH, wallMode)
	dy := axisDelta(a.Y, b.Y, constants.GRID_HEIGHT, wallMode)
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
