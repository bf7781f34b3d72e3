package world

import (
	"math"
	"time"

	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
)

// Vec is a continuous pixel position.
type Vec struct {
	X, Y float64
}

// Dist returns the euclidean distance between v and o.
func (v Vec) Dist(o Vec) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Lerp interpolates from v toward o; t is clamped to [0,1].
func (v Vec) Lerp(o Vec, t float64) Vec {
	if t <= 0 {
		return v
	}
	if t >= 1 {
		return o
	}
	return Vec{X: v.X + (o.X-v.X)*t, Y: v.Y + (o.Y-v.Y)*t}
}

// TileCenter returns the pixel centre of t.
func TileCenter(t grid.Tile) Vec {
	return Vec{
		X: float64(t.X*formula.TileSize) + formula.TileSize/2,
		Y: float64(t.Y*formula.TileSize) + formula.TileSize/2,
	}
}

// TileOf returns the tile containing pixel position v.
func TileOf(v Vec) grid.Tile {
	return grid.Tile{
		X: int(math.Floor(v.X / formula.TileSize)),
		Y: int(math.Floor(v.Y / formula.TileSize)),
	}
}

// FacingToward picks the cardinal facing from one tile toward another,
// preferring the dominant axis. Equal tiles face idle.
func FacingToward(from, to grid.Tile) proto.Facing {
	dx := to.X - from.X
	dy := to.Y - from.Y
	switch {
	case dx == 0 && dy == 0:
		return proto.FacingIdle
	case abs(dx) >= abs(dy) && dx > 0:
		return proto.FacingRight
	case abs(dx) >= abs(dy):
		return proto.FacingLeft
	case dy > 0:
		return proto.FacingDown
	default:
		return proto.FacingUp
	}
}

// FacingOfStep maps a unit step to a facing.
func FacingOfStep(dx, dy int) proto.Facing {
	return FacingToward(grid.Tile{}, grid.Tile{X: dx, Y: dy})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Combatant is the shape shared by the local player, monsters and the duel
// opponent. HP and MaxHP are authoritative: they are assigned only from
// server payloads.
type Combatant struct {
	HP                int
	MaxHP             int
	Damage            int
	Tile              grid.Tile
	Pos               Vec
	Facing            proto.Facing
	InvulnerableUntil time.Time
	Dead              bool
}

// Invulnerable reports whether the spawn-protection window is still open.
func (c *Combatant) Invulnerable(now time.Time) bool {
	return now.Before(c.InvulnerableUntil)
}

// PlaceAt snaps the combatant to the centre of t.
func (c *Combatant) PlaceAt(t grid.Tile) {
	c.Tile = t
	c.Pos = TileCenter(t)
}

// Player is the local player's copy. DisplayHP is a client-only smoothed
// value for the regenerating health bar; it is never sent anywhere and is
// reset to HP on every authoritative update.
type Player struct {
	Combatant
	Level          int
	BowLevel       int
	MoveSpeedLevel int
	DisplayHP      float64
	LastAttack     time.Time
	CooldownUntil  time.Time // server-issued defeat cooldown, if any
}

// NewPlayer builds the local player from the server's character record.
func NewPlayer(c proto.Character) *Player {
	p := &Player{
		Level:          c.Level,
		BowLevel:       c.BowLevel,
		MoveSpeedLevel: c.MoveSpeedLevel,
	}
	p.Damage = formula.PlayerDamage(c.BowLevel)
	p.Facing = proto.FacingIdle
	maxHP := c.MaxHP
	if maxHP <= 0 {
		maxHP = formula.PlayerMaxHP(c.Level)
	}
	p.SetAuthoritativeHP(c.CurrentHP, maxHP)
	return p
}

// SetAuthoritativeHP overwrites HP (and MaxHP when positive) from a server
// payload and resets the display value to it.
func (p *Player) SetAuthoritativeHP(hp, maxHP int) {
	if maxHP > 0 {
		p.MaxHP = maxHP
	}
	if hp < 0 {
		hp = 0
	}
	p.HP = hp
	p.DisplayHP = float64(hp)
	p.Dead = hp <= 0
}
