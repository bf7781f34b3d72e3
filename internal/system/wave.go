package system

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/notice"
	"github.com/bowarena/client/internal/world"
)

// WaveSystem is the wave director: spawn cadence inside a wave, the pause
// between waves and the delayed victory/defeat hand-off.
// Phase 3 (PostUpdate).
type WaveSystem struct {
	world  *world.State
	bus    *event.Bus
	queue  *gonet.Queue
	api    ArenaAPI
	notice *notice.Printer
	log    *zap.Logger

	// SpawnPoints restricts where monsters appear. Empty means any tile
	// reachable from the player at least MinSpawnDist away.
	SpawnPoints []grid.Tile
}

func NewWaveSystem(ws *world.State, bus *event.Bus, q *gonet.Queue, api ArenaAPI, pr *notice.Printer, log *zap.Logger) *WaveSystem {
	if pr == nil {
		pr = notice.Default()
	}
	return &WaveSystem{world: ws, bus: bus, queue: q, api: api, notice: pr, log: log}
}

func (s *WaveSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Begin starts wave wave0 with the server's roster. Monsters appear one per
// spawn interval, the first immediately.
func (s *WaveSystem) Begin(wave0 int, roster []proto.MonsterStats) {
	ws := s.world
	w := &ws.Wave
	w.Phase = world.WaveFight
	w.Index = wave0
	w.Roster = append([]proto.MonsterStats(nil), roster...)
	w.Spawned = 0
	w.SpawnInterval = time.Duration(formula.SpawnIntervalMs(ws.Player.Level)) * time.Millisecond
	w.NextSpawnAt = ws.Now
	w.NextRoster = nil
	w.NextWaveInFlight = false
	event.Emit(s.bus, event.WaveStarted{Wave: wave0, Total: w.Total, Monsters: len(roster)})
	s.log.Debug("wave started", zap.Int("wave", wave0), zap.Int("monsters", len(roster)))
}

func (s *WaveSystem) Update(_ time.Duration) {
	ws := s.world
	w := &ws.Wave
	switch w.Phase {
	case world.WaveFight:
		if ws.Ended {
			return
		}
		s.spawnDue()
		s.CheckComplete()
	case world.WavePause:
		if ws.Ended || ws.Now.Before(w.NextWaveAt) {
			return
		}
		if w.NextRoster != nil {
			s.Begin(w.Index+1, w.NextRoster)
			return
		}
		if !w.NextWaveInFlight {
			s.requestNextWave()
		}
	case world.WaveVictory, world.WaveDefeat:
		if w.OutcomeEmitted || ws.Now.Before(w.OutcomeAt) {
			return
		}
		s.emitOutcome()
	}
}

// CheckComplete moves a cleared wave into the pause when more waves remain.
// The last wave ends only through a victory response.
func (s *WaveSystem) CheckComplete() {
	ws := s.world
	w := &ws.Wave
	if w.Phase != world.WaveFight || !w.AllSpawned() || ws.AliveMonsters() > 0 {
		return
	}
	if w.Index+1 >= w.Total {
		return
	}
	w.Phase = world.WavePause
	w.NextWaveAt = ws.Now.Add(WavePause)
	lvl := ws.Player.Level
	event.Emit(s.bus, event.WavePaused{
		Wave:       w.Index,
		ResumeAt:   w.NextWaveAt,
		PreviewHP:  formula.WaveMonsterHP(lvl, w.Index+1),
		PreviewCnt: formula.MonstersInWave(lvl, w.Index+1),
	})
	event.Emit(s.bus, event.Toast{Text: s.notice.WaveCleared(w.Index, w.Total)})
	s.requestNextWave()
}

// requestNextWave keeps one next-wave call in flight. A failed call or an
// empty roster is retried once the pause has elapsed.
func (s *WaveSystem) requestNextWave() {
	w := &s.world.Wave
	w.NextWaveInFlight = true
	runID, epoch := s.world.Run.ID, w.Index
	gonet.Submit(s.queue, "next-wave",
		func(ctx context.Context) (*proto.NextWaveResponse, error) {
			return s.api.NextWave(ctx, runID)
		},
		func(res *proto.NextWaveResponse, err error) {
			w.NextWaveInFlight = false
			if err != nil || s.world.Ended {
				return
			}
			if w.Phase != world.WavePause || w.Index != epoch {
				return
			}
			if res.CurrentWave0 > 0 && res.CurrentWave0 != epoch+1 {
				s.log.Info("next-wave for unexpected wave",
					zap.String("run", runID), zap.Int("want", epoch+1), zap.Int("got", res.CurrentWave0))
				return
			}
			if len(res.Monsters) == 0 {
				s.log.Info("next-wave with empty roster",
					zap.String("run", runID), zap.Int("wave", epoch+1))
				return
			}
			w.NextRoster = res.Monsters
		})
}

// Conclude records the run outcome. Idempotent: only the first call counts.
func (s *WaveSystem) Conclude(outcome event.Outcome, xp int, cooldownUntil proto.Millis) {
	w := &s.world.Wave
	if w.Phase.Terminal() {
		return
	}
	if outcome == event.OutcomeVictory {
		w.Phase = world.WaveVictory
	} else {
		w.Phase = world.WaveDefeat
	}
	w.OutcomeAt = s.world.Now.Add(OutcomeDelay)
	w.XPGained = xp
	w.CooldownUntil = cooldownUntil.Time()
	s.log.Info("run concluded",
		zap.String("run", s.world.Run.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("wave", w.Index))
}

func (s *WaveSystem) emitOutcome() {
	ws := s.world
	w := &ws.Wave
	w.OutcomeEmitted = true
	ws.Ended = true

	outcome := event.OutcomeDefeat
	text := s.notice.Defeat(w.CooldownUntil, ws.Now)
	if w.Phase == world.WaveVictory {
		outcome = event.OutcomeVictory
		text = s.notice.Victory(w.XPGained)
	}
	event.Emit(s.bus, event.RunEnded{
		Mode:          event.ModeArena,
		RunID:         ws.Run.ID,
		Outcome:       outcome,
		Wave:          w.Index,
		TotalWaves:    w.Total,
		XPGained:      w.XPGained,
		CooldownUntil: w.CooldownUntil,
		PlayerHP:      ws.Player.HP,
	})
	event.Emit(s.bus, event.Toast{Text: text})
}

func (s *WaveSystem) spawnDue() {
	ws := s.world
	w := &ws.Wave
	for !w.AllSpawned() && !ws.Now.Before(w.NextSpawnAt) {
		idx := w.Spawned
		w.Spawned++
		w.NextSpawnAt = w.NextSpawnAt.Add(w.SpawnInterval)
		if w.Roster[idx].HP <= 0 {
			continue // already killed before a resume
		}
		s.spawn(idx, w.Roster[idx])
	}
}

func (s *WaveSystem) spawn(idx int, st proto.MonsterStats) {
	ws := s.world
	p := ws.Player
	m := &world.Monster{
		Index:          idx,
		Wave:           ws.Wave.Index,
		State:          world.MonsterSpawning,
		StateUntil:     ws.Now.Add(SpawnInvulnerability),
		AttackCooldown: time.Duration(formula.MonsterAttackCooldownMs(p.Level)) * time.Millisecond,
		PatrolAlongX:   idx%2 == 0,
		PatrolDir:      1,
		PathSeed:       ws.Rand.Intn(1 << 16),
	}
	m.HP, m.MaxHP, m.Damage = st.HP, st.MaxHP, st.Damage
	if m.MaxHP <= 0 {
		m.MaxHP = m.HP
	}
	m.InvulnerableUntil = m.StateUntil
	m.Facing = proto.FacingDown
	m.PlaceAt(s.pickSpawnTile())
	m.PatrolAnchor = m.Pos

	variance := MonsterVarianceLo + ws.Rand.Float64()*(MonsterVarianceHi-MonsterVarianceLo)
	m.Speed = formula.PlayerSpeedPxPerSec(p.MoveSpeedLevel) *
		formula.MonsterSpeedK(ws.Wave.Index) *
		formula.MonsterSpeedByLevelK(p.Level) *
		variance * MonsterSpeedScale

	ws.Monsters = append(ws.Monsters, m)
	event.Emit(s.bus, event.MonsterSpawned{Wave: m.Wave, Index: idx, Tile: m.Tile, HP: m.HP, MaxHP: m.MaxHP})
}

func (s *WaveSystem) pickSpawnTile() grid.Tile {
	ws := s.world
	origin := ws.Player.Tile
	far := func(t grid.Tile) bool { return t.Manhattan(origin) >= MinSpawnDist }

	var cands []grid.Tile
	for _, t := range s.SpawnPoints {
		if ws.Grid.Walkable(t) && far(t) {
			cands = append(cands, t)
		}
	}
	if len(cands) == 0 {
		reach := ws.Grid.ConnectedWalkable(origin)
		var all []grid.Tile
		for t := range reach {
			if t == origin {
				continue
			}
			all = append(all, t)
			if far(t) {
				cands = append(cands, t)
			}
		}
		if len(cands) == 0 {
			cands = all
		}
		sortTiles(cands)
	}
	if len(cands) == 0 {
		return origin
	}
	return cands[ws.Rand.Intn(len(cands))]
}

func sortTiles(ts []grid.Tile) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Y != ts[j].Y {
			return ts[i].Y < ts[j].Y
		}
		return ts[i].X < ts[j].X
	})
}
