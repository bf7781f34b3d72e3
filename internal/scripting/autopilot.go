package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Autopilot command types understood by the frame loop.
const (
	CmdAttack     = "attack"
	CmdMoveToward = "move_toward"
	CmdStep       = "step"
	CmdIdle       = "idle"
)

// Target is one attackable entity as seen by the autopilot.
type Target struct {
	Index      int // monster index in wave; -1 for the PvP opponent
	X, Y       int
	HP, MaxHP  int
	Dist       int // Manhattan distance in tiles
	Targetable bool
}

// AutopilotContext is the per-tick snapshot handed to the policy.
type AutopilotContext struct {
	Mode        string // "arena" | "pvp"
	Phase       string
	X, Y        int
	HP, MaxHP   int
	CanAttack   bool
	Moving      bool
	AttackRange int
	Targets     []Target
}

// Command is one decision returned by the policy. Go executes it.
type Command struct {
	Type   string
	Target int
	X, Y   int
	DX, DY int
}

// RunAutopilot calls Lua autopilot(ctx) and returns its commands.
// Returns nil if the function is missing or errors.
func (e *Engine) RunAutopilot(ctx AutopilotContext) []Command {
	fn := e.vm.GetGlobal("autopilot")
	if fn == lua.LNil {
		return nil
	}

	t := e.vm.NewTable()
	t.RawSetString("mode", lua.LString(ctx.Mode))
	t.RawSetString("phase", lua.LString(ctx.Phase))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("y", lua.LNumber(ctx.Y))
	t.RawSetString("hp", lua.LNumber(ctx.HP))
	t.RawSetString("max_hp", lua.LNumber(ctx.MaxHP))
	t.RawSetString("can_attack", lBool(ctx.CanAttack))
	t.RawSetString("moving", lBool(ctx.Moving))
	t.RawSetString("attack_range", lua.LNumber(ctx.AttackRange))

	targets := e.vm.NewTable()
	for i, tg := range ctx.Targets {
		row := e.vm.NewTable()
		row.RawSetString("index", lua.LNumber(tg.Index))
		row.RawSetString("x", lua.LNumber(tg.X))
		row.RawSetString("y", lua.LNumber(tg.Y))
		row.RawSetString("hp", lua.LNumber(tg.HP))
		row.RawSetString("max_hp", lua.LNumber(tg.MaxHP))
		row.RawSetString("dist", lua.LNumber(tg.Dist))
		row.RawSetString("targetable", lBool(tg.Targetable))
		targets.RawSetInt(i+1, row)
	}
	t.RawSetString("targets", targets)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua autopilot error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var cmds []Command
	rt.ForEach(func(_, v lua.LValue) {
		if row, ok := v.(*lua.LTable); ok {
			cmds = append(cmds, Command{
				Type:   lStr(row, "type"),
				Target: lInt(row, "target"),
				X:      lInt(row, "x"),
				Y:      lInt(row, "y"),
				DX:     lInt(row, "dx"),
				DY:     lInt(row, "dy"),
			})
		}
	})
	return cmds
}

// Decide makes Engine usable as an autopilot policy.
func (e *Engine) Decide(ctx AutopilotContext) []Command {
	return e.RunAutopilot(ctx)
}

// NearestPolicy is the built-in policy used when no script is loaded:
// shoot the nearest targetable entity in range, otherwise walk toward it.
type NearestPolicy struct{}

// Decide implements the autopilot policy.
func (NearestPolicy) Decide(ctx AutopilotContext) []Command {
	best := -1
	for i, tg := range ctx.Targets {
		if tg.HP <= 0 {
			continue
		}
		if best < 0 || tg.Dist < ctx.Targets[best].Dist {
			best = i
		}
	}
	if best < 0 {
		return []Command{{Type: CmdIdle}}
	}
	tg := ctx.Targets[best]
	if tg.Dist <= ctx.AttackRange {
		if ctx.CanAttack && tg.Targetable {
			return []Command{{Type: CmdAttack, Target: tg.Index}}
		}
		return []Command{{Type: CmdIdle}}
	}
	if ctx.Moving {
		return nil
	}
	return []Command{{Type: CmdMoveToward, Target: tg.Index, X: tg.X, Y: tg.Y}}
}
