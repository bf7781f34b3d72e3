package world

import (
	"math/rand"
	"time"

	"github.com/bowarena/client/internal/grid"
)

// Run mirrors the server-issued identity and counters of the current arena
// or duel run. Read-only on the client; refreshed from responses.
type Run struct {
	ID               string
	TotalWaves       int
	WinsToday        int
	BattlesLeft      int
	MaxBattlesPerDay int
}

// State is the client-side simulation state for one arena run or duel.
// It is owned by a single session and touched only from the frame loop.
type State struct {
	Now  time.Time // simulation clock, advanced by the session each tick
	Grid *grid.Grid
	Rand *rand.Rand

	Run      Run
	Player   *Player
	Monsters []*Monster // active set: spawned and not yet removed
	Wave     WaveState
	Opponent *Opponent

	Ended bool // run reached a terminal outcome or the session exited
}

// NewState creates an empty state on g starting at start.
func NewState(g *grid.Grid, start time.Time, seed int64) *State {
	return &State{
		Now:  start,
		Grid: g,
		Rand: rand.New(rand.NewSource(seed)),
	}
}

// Advance moves the simulation clock forward by dt.
func (s *State) Advance(dt time.Duration) {
	if dt > 0 {
		s.Now = s.Now.Add(dt)
	}
}

// MonsterByIndex returns the active monster with the given server index in
// the current wave, or nil.
func (s *State) MonsterByIndex(idx int) *Monster {
	for _, m := range s.Monsters {
		if m.Index == idx && m.Wave == s.Wave.Index {
			return m
		}
	}
	return nil
}

// AliveMonsters counts active monsters that have not died. Dying monsters
// still playing their death animation are not counted.
func (s *State) AliveMonsters() int {
	n := 0
	for _, m := range s.Monsters {
		if !m.Dead {
			n++
		}
	}
	return n
}

// RemoveFinished drops monsters whose death fade has completed and returns
// them.
func (s *State) RemoveFinished() []*Monster {
	var removed []*Monster
	kept := s.Monsters[:0]
	for _, m := range s.Monsters {
		if m.Removed {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(s.Monsters); i++ {
		s.Monsters[i] = nil
	}
	s.Monsters = kept
	return removed
}
