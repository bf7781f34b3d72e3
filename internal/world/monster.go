package world

import (
	"time"

	"github.com/bowarena/client/internal/grid"
)

// MonsterState is the monster AI state.
type MonsterState int

const (
	MonsterSpawning MonsterState = iota // enter animation, invulnerable
	MonsterPatrolling
	MonsterAlerted
	MonsterAttacking
	MonsterDead
)

func (s MonsterState) String() string {
	switch s {
	case MonsterSpawning:
		return "spawning"
	case MonsterPatrolling:
		return "patrolling"
	case MonsterAlerted:
		return "alerted"
	case MonsterAttacking:
		return "attacking"
	case MonsterDead:
		return "dead"
	}
	return "unknown"
}

// Monster is one arena monster instance, owned by the monster AI.
type Monster struct {
	Combatant

	Index int // position in the server's monster list for its wave
	Wave  int // 0-based wave index the monster belongs to

	State      MonsterState
	StateUntil time.Time // end of spawn, hit animation, death or fade
	Fading     bool      // death animation done, fading out
	Removed    bool      // fade done; cleanup drops it from the active set

	AttackCooldown time.Duration
	LastAttack     time.Time
	HitPending     bool // a monster-hit request is in flight

	Speed   float64 // chase speed in px/s
	Alerted bool    // sticky once set

	PatrolAnchor Vec
	PatrolAlongX bool
	PatrolDir    float64 // +1 or -1

	PathSeed int
	Path     []grid.Tile
}

// Targetable reports whether the player may attack m at now.
func (m *Monster) Targetable(now time.Time) bool {
	return !m.Dead && !m.Invulnerable(now)
}

// CanAttack reports whether the monster's own cooldown has elapsed.
func (m *Monster) CanAttack(now time.Time) bool {
	return m.LastAttack.IsZero() || now.Sub(m.LastAttack) >= m.AttackCooldown
}
