package system

import (
	"math"
	"time"

	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/world"
)

// RegenSystem animates the player's display HP upward between server
// responses. It never touches authoritative HP; DisplayHP stays within
// [HP, min(MaxHP, HP + RegenLead of regen)] so it cannot run far ahead of a
// pending server value. Phase 3 (PostUpdate).
type RegenSystem struct {
	world *world.State
}

func NewRegenSystem(ws *world.State) *RegenSystem {
	return &RegenSystem{world: ws}
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *RegenSystem) Update(dt time.Duration) {
	p := s.world.Player
	if p == nil || p.Dead || s.world.Ended {
		return
	}
	rate := RegenBasePerSec * formula.RegenMultByLevel(p.Level)
	p.DisplayHP = clampF(p.DisplayHP+rate*dt.Seconds(), float64(p.HP), RegenCap(p))
}

// RegenCap is the highest display HP the player may show right now.
func RegenCap(p *world.Player) float64 {
	rate := RegenBasePerSec * formula.RegenMultByLevel(p.Level)
	return math.Min(float64(p.MaxHP), float64(p.HP)+rate*RegenLead.Seconds())
}

func clampF(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
