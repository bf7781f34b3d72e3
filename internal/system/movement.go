package system

import (
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/world"
)

// MovementSystem moves the local player one tile at a time. At most one
// step is in flight; a queued path is consumed one tile per finished step.
// Phase 2 (Update).
type MovementSystem struct {
	world *world.State
	bus   *event.Bus

	speedMult float64

	moving     bool
	from, to   world.Vec
	start      time.Time
	dur        time.Duration
	onComplete func()
	path       []grid.Tile

	// Special tags tiles by map feature (door, poi...). May be nil.
	Special map[grid.Tile]string
	// OnStep runs after every finished step, queued or not.
	OnStep func(grid.Tile)
}

func NewMovementSystem(ws *world.State, bus *event.Bus) *MovementSystem {
	mult := 1.0
	if ws.Player != nil {
		mult = formula.SpeedMultiplier(ws.Player.MoveSpeedLevel)
	}
	return &MovementSystem{world: ws, bus: bus, speedMult: mult}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// IsMoving reports whether a step tween is running.
func (s *MovementSystem) IsMoving() bool { return s.moving }

// QueuedSteps is the number of path tiles not yet started.
func (s *MovementSystem) QueuedSteps() int { return len(s.path) }

// StepDuration is the tween length of one tile at the current speed.
func (s *MovementSystem) StepDuration() time.Duration {
	return time.Duration(float64(formula.BaseStepMs*time.Millisecond) / s.speedMult)
}

// TryMove starts a single cardinal step. The logical tile changes
// immediately; the pixel position follows over StepDuration.
func (s *MovementSystem) TryMove(dx, dy int, onComplete func()) error {
	p := s.world.Player
	if p == nil || p.Dead || s.world.Ended {
		return ErrRunEnded
	}
	if s.moving {
		return ErrMoving
	}
	if dx*dx+dy*dy != 1 {
		return ErrBadStep
	}
	dest := p.Tile.Add(dx, dy)
	if !s.world.Grid.Walkable(dest) {
		return ErrBlocked
	}
	s.moving = true
	s.from = p.Pos
	s.to = world.TileCenter(dest)
	s.start = s.world.Now
	s.dur = s.StepDuration()
	s.onComplete = onComplete
	p.Tile = dest
	p.Facing = world.FacingOfStep(dx, dy)
	return nil
}

// Step is manual directional input. It cancels any queued path first.
func (s *MovementSystem) Step(dx, dy int) error {
	s.path = nil
	return s.TryMove(dx, dy, nil)
}

// FollowPath queues path (excluding the current tile) and starts walking
// if idle. A new path replaces the old one.
func (s *MovementSystem) FollowPath(path []grid.Tile) {
	s.path = append(s.path[:0], path...)
	if !s.moving {
		s.advancePath()
	}
}

// CancelPath drops the remaining queued tiles; the current step finishes.
func (s *MovementSystem) CancelPath() { s.path = nil }

func (s *MovementSystem) advancePath() {
	if len(s.path) == 0 {
		return
	}
	next := s.path[0]
	s.path = s.path[1:]
	cur := s.world.Player.Tile
	if err := s.TryMove(next.X-cur.X, next.Y-cur.Y, nil); err != nil {
		s.path = nil
	}
}

func (s *MovementSystem) Update(_ time.Duration) {
	if !s.moving {
		return
	}
	p := s.world.Player
	t := 1.0
	if s.dur > 0 {
		t = float64(s.world.Now.Sub(s.start)) / float64(s.dur)
	}
	p.Pos = s.from.Lerp(s.to, t)
	if t < 1 {
		return
	}

	s.moving = false
	p.Pos = s.to
	if cb := s.onComplete; cb != nil {
		s.onComplete = nil
		cb()
	}
	if s.OnStep != nil {
		s.OnStep(p.Tile)
	}
	if len(s.path) > 0 {
		s.advancePath()
		return
	}
	event.Emit(s.bus, event.PlayerArrived{Tile: p.Tile, Special: s.Special[p.Tile]})
}
