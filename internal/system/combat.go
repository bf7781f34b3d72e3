package system

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/bowarena/client/internal/core/event"
	"github.com/bowarena/client/internal/formula"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/notice"
	"github.com/bowarena/client/internal/world"
)

// Combat turns attack intents into server calls and applies the answers.
// It is the only writer of authoritative HP in arena mode, and it writes
// only from response payloads.
type Combat struct {
	world  *world.State
	bus    *event.Bus
	queue  *gonet.Queue
	api    ArenaAPI
	waves  *WaveSystem
	notice *notice.Printer
	log    *zap.Logger
}

func NewCombat(ws *world.State, bus *event.Bus, q *gonet.Queue, api ArenaAPI, waves *WaveSystem, pr *notice.Printer, log *zap.Logger) *Combat {
	if pr == nil {
		pr = notice.Default()
	}
	return &Combat{world: ws, bus: bus, queue: q, api: api, waves: waves, notice: pr, log: log}
}

// CanAttack reports whether the shared player hit cooldown has elapsed.
func (c *Combat) CanAttack() bool {
	p := c.world.Player
	return p.LastAttack.IsZero() || c.world.Now.Sub(p.LastAttack) >= PlayerHitCooldown
}

// PlayerAttack shoots m. The cooldown is set before the request goes out,
// so at most one attack call is issued per cooldown window.
func (c *Combat) PlayerAttack(m *world.Monster) error {
	ws := c.world
	p := ws.Player
	if ws.Ended || ws.Wave.Phase.Terminal() || p.Dead {
		return ErrRunEnded
	}
	if ws.Wave.Phase != world.WaveFight {
		return ErrNotFighting
	}
	if m == nil || m.Dead {
		return ErrTargetDead
	}
	if m.Invulnerable(ws.Now) {
		return ErrTargetInvulnerable
	}
	if !c.CanAttack() {
		return ErrAttackCooldown
	}

	p.LastAttack = ws.Now
	p.Facing = world.FacingToward(p.Tile, m.Tile)
	event.Emit(c.bus, event.FloatingDamage{
		Target:     "monster",
		Index:      m.Index,
		Amount:     formula.PlayerDamage(p.BowLevel),
		Optimistic: true,
	})
	event.Emit(c.bus, event.AttackAnimation{Attacker: "player", Index: -1, Facing: p.Facing})

	runID, wave, idx := ws.Run.ID, ws.Wave.Index, m.Index
	gonet.Submit(c.queue, "attack",
		func(ctx context.Context) (*proto.AttackResponse, error) {
			return c.api.Attack(ctx, runID, idx)
		},
		func(res *proto.AttackResponse, err error) {
			c.applyAttack(wave, idx, res, err)
		})
	return nil
}

func (c *Combat) applyAttack(wave, idx int, res *proto.AttackResponse, err error) {
	ws := c.world
	if err != nil {
		c.rejected("attack", err)
		return
	}
	if ws.Ended || ws.Wave.Phase.Terminal() {
		return
	}

	if res.Victory {
		maxHP := 0
		if res.Character != nil {
			maxHP = res.Character.MaxHP
			ws.Player.Level = res.Character.Level
		}
		ws.Player.SetAuthoritativeHP(res.PlayerHP, maxHP)
		for _, m := range ws.Monsters {
			if !m.Dead {
				c.kill(m)
			}
		}
		c.waves.Conclude(event.OutcomeVictory, res.XPGained, proto.Millis(0))
		return
	}
	if res.Defeat {
		c.applyDefeat(res.CooldownUntil)
		return
	}
	if wave != ws.Wave.Index {
		c.log.Debug("stale attack response", zap.Int("wave", wave), zap.Int("current", ws.Wave.Index))
		return
	}

	before := ws.Player.HP
	ws.Player.SetAuthoritativeHP(res.PlayerHP, 0)
	if lost := before - ws.Player.HP; lost > 0 {
		event.Emit(c.bus, event.FloatingDamage{Target: "player", Index: -1, Amount: lost})
	}
	for i, st := range res.Monsters {
		if m := ws.MonsterByIndex(i); m != nil {
			m.HP, m.MaxHP = st.HP, st.MaxHP
			if m.HP <= 0 && !m.Dead {
				c.kill(m)
			}
			continue
		}
		if i < len(ws.Wave.Roster) {
			ws.Wave.Roster[i].HP = st.HP
			ws.Wave.Roster[i].MaxHP = st.MaxHP
		}
	}
	if ws.Player.Dead {
		c.applyDefeat(0)
		return
	}
	c.waves.CheckComplete()
}

// MonsterHit issues the server call for m's melee swing. The damage number
// shown is the confirmed HP delta, never a local guess.
func (c *Combat) MonsterHit(m *world.Monster) bool {
	ws := c.world
	if ws.Ended || ws.Wave.Phase != world.WaveFight || ws.Player.Dead {
		return false
	}
	if m.Dead || m.HitPending || m.Invulnerable(ws.Now) || !m.CanAttack(ws.Now) {
		return false
	}

	m.LastAttack = ws.Now
	m.HitPending = true
	m.Facing = world.FacingToward(m.Tile, ws.Player.Tile)
	event.Emit(c.bus, event.AttackAnimation{Attacker: "monster", Index: m.Index, Facing: m.Facing})

	runID, wave, idx := ws.Run.ID, m.Wave, m.Index
	gonet.Submit(c.queue, "monster-hit",
		func(ctx context.Context) (*proto.MonsterHitResponse, error) {
			return c.api.MonsterHit(ctx, runID, idx)
		},
		func(res *proto.MonsterHitResponse, err error) {
			m.HitPending = false
			if err != nil {
				c.rejected("monster-hit", err)
				return
			}
			if ws.Ended || ws.Wave.Phase.Terminal() {
				return
			}
			if res.Defeat {
				c.applyDefeat(res.CooldownUntil)
				return
			}
			if wave != ws.Wave.Index {
				return
			}
			before := ws.Player.HP
			ws.Player.SetAuthoritativeHP(res.PlayerHP, 0)
			if lost := before - ws.Player.HP; lost > 0 {
				event.Emit(c.bus, event.FloatingDamage{Target: "player", Index: -1, Amount: lost})
			}
			if ws.Player.Dead {
				c.applyDefeat(0)
			}
		})
	return true
}

func (c *Combat) applyDefeat(cooldownUntil proto.Millis) {
	ws := c.world
	before := ws.Player.HP
	ws.Player.SetAuthoritativeHP(0, 0)
	if before > 0 {
		event.Emit(c.bus, event.FloatingDamage{Target: "player", Index: -1, Amount: before})
	}
	ws.Player.CooldownUntil = cooldownUntil.Time()
	c.waves.Conclude(event.OutcomeDefeat, 0, cooldownUntil)
}

// kill moves m into its death animation. Only called from server payloads.
func (c *Combat) kill(m *world.Monster) {
	m.HP = 0
	m.Dead = true
	m.State = world.MonsterDead
	m.StateUntil = c.world.Now.Add(DeathAnimation)
	m.Path = nil
	event.Emit(c.bus, event.MonsterDied{Wave: m.Wave, Index: m.Index})
}

func (c *Combat) rejected(call string, err error) {
	var apiErr *proto.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	c.log.Info("request rejected",
		zap.String("request", call),
		zap.String("run", c.world.Run.ID),
		zap.String("code", apiErr.Code))
	if text, ok := c.notice.Rejection(err, c.world.Now, c.world.Run.MaxBattlesPerDay); ok {
		event.Emit(c.bus, event.Toast{Text: text})
	}
}
