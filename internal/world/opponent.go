package world

import (
	"time"

	"github.com/bowarena/client/internal/grid"
)

// Opponent mirrors the remote duel player. Positions arrive as coarse
// polls, so tile changes are rendered as a short interpolated move.
type Opponent struct {
	Combatant

	From      Vec
	To        Vec
	MoveStart time.Time
	MoveDur   time.Duration
	Moving    bool
}

// MoveTo starts an interpolated move toward t.
func (o *Opponent) MoveTo(t grid.Tile, now time.Time, dur time.Duration) {
	o.From = o.Pos
	o.To = TileCenter(t)
	o.Tile = t
	o.MoveStart = now
	o.MoveDur = dur
	o.Moving = true
}

// Step advances the interpolation to now.
func (o *Opponent) Step(now time.Time) {
	if !o.Moving {
		return
	}
	if o.MoveDur <= 0 {
		o.Pos = o.To
		o.Moving = false
		return
	}
	t := float64(now.Sub(o.MoveStart)) / float64(o.MoveDur)
	o.Pos = o.From.Lerp(o.To, t)
	if t >= 1 {
		o.Moving = false
	}
}
