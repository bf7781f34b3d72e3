package system

import (
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
)

// MonsterAISystem drives every active monster through
// spawning → patrolling → alerted ⇄ attacking → dead. Death itself is only
// entered from a server payload (see Combat.kill); this system plays the
// animation and fade afterwards. Phase 2 (Update).
type MonsterAISystem struct {
	world  *world.State
	bus    *event.Bus
	combat *Combat
}

func NewMonsterAISystem(ws *world.State, bus *event.Bus, combat *Combat) *MonsterAISystem {
	return &MonsterAISystem{world: ws, bus: bus, combat: combat}
}

func (s *MonsterAISystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MonsterAISystem) Update(dt time.Duration) {
	now := s.world.Now
	for _, m := range s.world.Monsters {
		switch m.State {
		case world.MonsterSpawning:
			if !now.Before(m.StateUntil) {
				m.State = world.MonsterPatrolling
				m.PatrolAnchor = m.Pos
			}
		case world.MonsterPatrolling:
			if s.inAlertRange(m) {
				m.Alerted = true
				m.State = world.MonsterAlerted
				s.chase(m, dt)
				continue
			}
			s.patrol(m, dt)
		case world.MonsterAlerted:
			s.chase(m, dt)
		case world.MonsterAttacking:
			if !now.Before(m.StateUntil) {
				m.State = world.MonsterAlerted
			}
		case world.MonsterDead:
			s.tickDeath(m)
		}
	}
}

func (s *MonsterAISystem) inAlertRange(m *world.Monster) bool {
	p := s.world.Player
	return p != nil && !p.Dead && m.Tile.Manhattan(p.Tile) <= AlertRadius
}

// patrol oscillates along one axis around the anchor at PatrolSpeed.
func (s *MonsterAISystem) patrol(m *world.Monster, dt time.Duration) {
	step := PatrolSpeed * dt.Seconds() * m.PatrolDir
	next := m.Pos
	var offset float64
	if m.PatrolAlongX {
		next.X += step
		offset = next.X - m.PatrolAnchor.X
	} else {
		next.Y += step
		offset = next.Y - m.PatrolAnchor.Y
	}
	if offset > PatrolReach || offset < -PatrolReach || !s.world.Grid.Walkable(world.TileOf(next)) {
		m.PatrolDir = -m.PatrolDir
		return
	}
	m.Pos = next
	m.Tile = world.TileOf(next)
	m.Facing = patrolFacing(m)
}

func patrolFacing(m *world.Monster) proto.Facing {
	switch {
	case m.PatrolAlongX && m.PatrolDir > 0:
		return proto.FacingRight
	case m.PatrolAlongX:
		return proto.FacingLeft
	case m.PatrolDir > 0:
		return proto.FacingDown
	default:
		return proto.FacingUp
	}
}

// chase re-paths toward the player every tick and swings once in range
// and off cooldown.
func (s *MonsterAISystem) chase(m *world.Monster, dt time.Duration) {
	p := s.world.Player
	if p == nil || p.Dead {
		return
	}
	if m.Pos.Dist(p.Pos) <= AttackRangePx {
		m.Path = nil
		m.Facing = world.FacingToward(m.Tile, p.Tile)
		if s.combat.MonsterHit(m) {
			m.State = world.MonsterAttacking
			m.StateUntil = s.world.Now.Add(HitAnimation)
		}
		return
	}

	m.Path = s.world.Grid.BFSPathForMonster(m.Tile, p.Tile, m.PathSeed)
	if len(m.Path) == 0 {
		return
	}
	next := m.Path[0]
	target := world.TileCenter(next)
	dist := m.Pos.Dist(target)
	step := m.Speed * dt.Seconds()
	m.Facing = world.FacingToward(m.Tile, next)
	if step >= dist {
		m.Pos = target
		m.Tile = next
		return
	}
	m.Pos = m.Pos.Lerp(target, step/dist)
}

func (s *MonsterAISystem) tickDeath(m *world.Monster) {
	if s.world.Now.Before(m.StateUntil) {
		return
	}
	if !m.Fading {
		m.Fading = true
		m.StateUntil = s.world.Now.Add(FadeOut)
		return
	}
	m.Removed = true
}
