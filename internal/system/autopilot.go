package system

import (
	"errors"
	"time"

	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/scripting"
	"github.com/bowarena/client/internal/world"
	"go.uber.org/zap"
)

// Policy decides what the headless player does this tick. The Lua engine
// and scripting.NearestPolicy both implement it.
type Policy interface {
	Decide(ctx scripting.AutopilotContext) []scripting.Command
}

// AutopilotSystem is the input source of the headless client: the policy
// decides, Go validates and executes through the same entry points manual
// input would use. Phase 0 (Input), after the network inbox.
type AutopilotSystem struct {
	world       *world.State
	movement    *MovementSystem
	combat      *Combat     // arena mode
	duel        *DuelSystem // pvp mode
	policy      Policy
	attackRange int
	log         *zap.Logger
}

func NewAutopilotSystem(ws *world.State, mv *MovementSystem, combat *Combat, duel *DuelSystem, policy Policy, attackRange int, log *zap.Logger) *AutopilotSystem {
	if policy == nil {
		policy = scripting.NearestPolicy{}
	}
	if attackRange <= 0 {
		attackRange = 6
	}
	return &AutopilotSystem{
		world:       ws,
		movement:    mv,
		combat:      combat,
		duel:        duel,
		policy:      policy,
		attackRange: attackRange,
		log:         log,
	}
}

func (s *AutopilotSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *AutopilotSystem) Update(_ time.Duration) {
	ws := s.world
	if ws.Ended || ws.Player == nil || ws.Player.Dead {
		return
	}
	for _, cmd := range s.policy.Decide(s.snapshot()) {
		s.execute(cmd)
	}
}

func (s *AutopilotSystem) snapshot() scripting.AutopilotContext {
	ws := s.world
	p := ws.Player
	ctx := scripting.AutopilotContext{
		Mode:        "arena",
		Phase:       ws.Wave.Phase.String(),
		X:           p.Tile.X,
		Y:           p.Tile.Y,
		HP:          p.HP,
		MaxHP:       p.MaxHP,
		Moving:      s.movement.IsMoving(),
		AttackRange: s.attackRange,
	}
	if s.duel != nil {
		ctx.Mode = "pvp"
		ctx.Phase = "fight"
		ctx.CanAttack = s.duel.CanAttack()
		if opp := ws.Opponent; opp != nil && !opp.Dead {
			ctx.Targets = append(ctx.Targets, scripting.Target{
				Index:      -1,
				X:          opp.Tile.X,
				Y:          opp.Tile.Y,
				HP:         opp.HP,
				MaxHP:      opp.MaxHP,
				Dist:       opp.Tile.Manhattan(p.Tile),
				Targetable: true,
			})
		}
		return ctx
	}
	ctx.CanAttack = s.combat.CanAttack()
	for _, m := range ws.Monsters {
		if m.Dead {
			continue
		}
		ctx.Targets = append(ctx.Targets, scripting.Target{
			Index:      m.Index,
			X:          m.Tile.X,
			Y:          m.Tile.Y,
			HP:         m.HP,
			MaxHP:      m.MaxHP,
			Dist:       m.Tile.Manhattan(p.Tile),
			Targetable: m.Targetable(ws.Now),
		})
	}
	return ctx
}

func (s *AutopilotSystem) execute(cmd scripting.Command) {
	var err error
	switch cmd.Type {
	case scripting.CmdAttack:
		if s.duel != nil {
			err = s.duel.Attack()
		} else {
			err = s.combat.PlayerAttack(s.world.MonsterByIndex(cmd.Target))
		}
	case scripting.CmdMoveToward:
		if s.movement.IsMoving() || s.movement.QueuedSteps() > 0 {
			return
		}
		p := s.world.Player
		path := s.world.Grid.BFSPath(p.Tile, grid.Tile{X: cmd.X, Y: cmd.Y})
		// stop one tile short of the target
		if len(path) > 1 {
			s.movement.FollowPath(path[:len(path)-1])
		}
	case scripting.CmdStep:
		err = s.movement.Step(cmd.DX, cmd.DY)
	case scripting.CmdIdle, "":
	default:
		s.log.Debug("unknown autopilot command", zap.String("type", cmd.Type))
	}
	if err != nil && !errors.Is(err, ErrAttackCooldown) && !errors.Is(err, ErrMoving) {
		s.log.Debug("autopilot command rejected", zap.String("type", cmd.Type), zap.Error(err))
	}
}
