package system

import (
	"context"
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/notice"
	"github.com/bowarena/client/internal/world"
	"go.uber.org/zap"
)

// DuelSystem mirrors the remote opponent of a PvP run. It pulls the run
// state at a fixed interval (or receives it from a push feed), pushes the
// local position, and is the only writer of HP in duel mode.
// Phase 2 (Update).
type DuelSystem struct {
	world    *world.State
	bus      *event.Bus
	queue    *gonet.Queue
	api      DuelAPI
	movement *MovementSystem
	notice   *notice.Printer
	log      *zap.Logger

	pollEvery time.Duration
	pushEvery time.Duration
	polling   bool

	nextPoll     time.Time
	pollInFlight bool
	lastPush     time.Time

	seen     bool
	lastTile proto.PositionUpdate

	ended   bool
	outcome event.Outcome
	emitted bool
}

// DuelConfig carries the duel cadences. A zero PollInterval disables
// polling (push feed mode).
type DuelConfig struct {
	PollInterval time.Duration
	PushInterval time.Duration
}

func NewDuelSystem(ws *world.State, bus *event.Bus, q *gonet.Queue, api DuelAPI, mv *MovementSystem, cfg DuelConfig, pr *notice.Printer, log *zap.Logger) *DuelSystem {
	if pr == nil {
		pr = notice.Default()
	}
	s := &DuelSystem{
		world:     ws,
		bus:       bus,
		queue:     q,
		api:       api,
		movement:  mv,
		notice:    pr,
		log:       log,
		pollEvery: cfg.PollInterval,
		pushEvery: cfg.PushInterval,
		polling:   cfg.PollInterval > 0,
		nextPoll:  ws.Now,
	}
	if mv != nil {
		mv.OnStep = func(grid.Tile) { s.pushPosition() }
	}
	return s
}

func (s *DuelSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// SetPollInterval turns polling on (d > 0) or off. Used when a push feed
// opens or drops.
func (s *DuelSystem) SetPollInterval(d time.Duration) {
	s.pollEvery = d
	s.polling = d > 0
	s.nextPoll = s.world.Now
}

// Ended reports whether the duel reached a terminal state.
func (s *DuelSystem) Ended() bool { return s.ended }

func (s *DuelSystem) Update(_ time.Duration) {
	ws := s.world
	if s.ended {
		if !s.emitted {
			s.emitOutcome()
		}
		return
	}
	if opp := ws.Opponent; opp != nil {
		opp.Step(ws.Now)
	}
	if s.polling && !s.pollInFlight && !ws.Now.Before(s.nextPoll) {
		s.poll()
	}
	if s.movement != nil && s.movement.IsMoving() && ws.Now.Sub(s.lastPush) >= s.pushEvery {
		s.pushPosition()
	}
}

func (s *DuelSystem) poll() {
	s.pollInFlight = true
	s.nextPoll = s.world.Now.Add(s.pollEvery)
	runID := s.world.Run.ID
	gonet.Submit(s.queue, "pvp-poll",
		func(ctx context.Context) (*proto.RunState, error) {
			return s.api.PollRun(ctx, runID)
		},
		func(rs *proto.RunState, err error) {
			s.pollInFlight = false
			if err != nil {
				return
			}
			s.Apply(rs)
		})
}

// Apply reconciles one run-state snapshot. HP is overwritten as sent;
// the most recently applied snapshot wins. Snapshots after the end are
// ignored.
func (s *DuelSystem) Apply(rs *proto.RunState) {
	if s.ended || rs == nil {
		return
	}
	ws := s.world
	p, opp := ws.Player, ws.Opponent

	before := p.HP
	p.SetAuthoritativeHP(rs.MyHP, rs.MyMaxHP)
	if lost := before - p.HP; lost > 0 {
		event.Emit(s.bus, event.FloatingDamage{Target: "player", Index: -1, Amount: lost})
	}
	opp.HP = max(rs.OpponentHP, 0)
	if rs.OpponentMaxHP > 0 {
		opp.MaxHP = rs.OpponentMaxHP
	}
	opp.Dead = opp.HP <= 0

	pos := proto.PositionUpdate{GridX: rs.OpponentGridX, GridY: rs.OpponentGridY, Facing: rs.OpponentFacing}
	if rs.OpponentFacing.Valid() {
		opp.Facing = rs.OpponentFacing
	}
	if !s.seen || pos.GridX != s.lastTile.GridX || pos.GridY != s.lastTile.GridY {
		s.seen = true
		t := grid.Tile{X: pos.GridX, Y: pos.GridY}
		opp.MoveTo(t, ws.Now, OpponentLerp)
		event.Emit(s.bus, event.OpponentMoved{Tile: t, Facing: opp.Facing})
	}
	s.lastTile = pos

	switch {
	case rs.Victory || opp.HP <= 0:
		s.finish(event.OutcomeVictory)
	case rs.Defeat || p.HP <= 0:
		s.finish(event.OutcomeDefeat)
	}
}

// Track records t as the opponent's last seen tile so the first matching
// snapshot does not start a move.
func (s *DuelSystem) Track(t grid.Tile) {
	s.seen = true
	s.lastTile.GridX, s.lastTile.GridY = t.X, t.Y
}

// CanAttack reports whether the player hit cooldown has elapsed.
func (s *DuelSystem) CanAttack() bool {
	p := s.world.Player
	return p.LastAttack.IsZero() || s.world.Now.Sub(p.LastAttack) >= PlayerHitCooldown
}

// Attack shoots the opponent: one cooldown, one call per hit.
func (s *DuelSystem) Attack() error {
	ws := s.world
	p, opp := ws.Player, ws.Opponent
	if s.ended || ws.Ended || p.Dead {
		return ErrRunEnded
	}
	if opp == nil || opp.Dead {
		return ErrTargetDead
	}
	if !s.CanAttack() {
		return ErrAttackCooldown
	}

	p.LastAttack = ws.Now
	p.Facing = world.FacingToward(p.Tile, opp.Tile)
	event.Emit(s.bus, event.FloatingDamage{
		Target:     "opponent",
		Index:      -1,
		Amount:     formula.PlayerDamage(p.BowLevel),
		Optimistic: true,
	})
	event.Emit(s.bus, event.AttackAnimation{Attacker: "player", Index: -1, Facing: p.Facing})

	runID := ws.Run.ID
	gonet.Submit(s.queue, "pvp-attack",
		func(ctx context.Context) (*proto.PvpAttackResponse, error) {
			return s.api.PvpAttack(ctx, runID)
		},
		func(res *proto.PvpAttackResponse, err error) {
			if err != nil {
				if text, ok := s.notice.Rejection(err, ws.Now, ws.Run.MaxBattlesPerDay); ok {
					event.Emit(s.bus, event.Toast{Text: text})
				}
				return
			}
			if s.ended {
				return
			}
			p.SetAuthoritativeHP(res.MyHP, 0)
			opp.HP = max(res.OpponentHP, 0)
			opp.Dead = opp.HP <= 0
			switch {
			case res.Victory || opp.HP <= 0:
				s.finish(event.OutcomeVictory)
			case res.Defeat || p.HP <= 0:
				s.finish(event.OutcomeDefeat)
			}
		})
	return nil
}

// Exit ends the duel locally without a server outcome.
func (s *DuelSystem) Exit() {
	s.finish(event.OutcomeExit)
}

func (s *DuelSystem) pushPosition() {
	ws := s.world
	if s.ended || ws.Ended {
		return
	}
	s.lastPush = ws.Now
	p := ws.Player
	pos := proto.PositionUpdate{GridX: p.Tile.X, GridY: p.Tile.Y, Facing: p.Facing}
	runID := ws.Run.ID
	gonet.Submit(s.queue, "pvp-position",
		func(ctx context.Context) (*proto.PingResponse, error) {
			return s.api.PushPosition(ctx, runID, pos)
		}, nil)
}

// finish makes the end state terminal; polling stops immediately and the
// outcome event goes out on the next update.
func (s *DuelSystem) finish(outcome event.Outcome) {
	if s.ended {
		return
	}
	s.ended = true
	s.outcome = outcome
	s.log.Info("duel ended", zap.String("run", s.world.Run.ID), zap.String("outcome", string(outcome)))
}

func (s *DuelSystem) emitOutcome() {
	ws := s.world
	s.emitted = true
	ws.Ended = true
	event.Emit(s.bus, event.RunEnded{
		Mode:       event.ModePvP,
		RunID:      ws.Run.ID,
		Outcome:    s.outcome,
		PlayerHP:   ws.Player.HP,
		OpponentHP: ws.Opponent.HP,
	})
	switch s.outcome {
	case event.OutcomeVictory:
		event.Emit(s.bus, event.Toast{Text: s.notice.Victory(0)})
	case event.OutcomeDefeat:
		event.Emit(s.bus, event.Toast{Text: s.notice.Defeat(time.Time{}, ws.Now)})
	}
}
