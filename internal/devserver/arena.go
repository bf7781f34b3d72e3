package devserver

import (
	"net/http"
	"time"

	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// arenaRun is the authoritative copy of one arena run.
type arenaRun struct {
	id       string
	owner    *player
	level    int
	total    int
	wave0    int
	playerHP int
	monsters []proto.MonsterStats
	lastHit  []time.Time // per monster
	lastPing time.Time
}

func newArenaRun(p *player, now time.Time) *arenaRun {
	r := &arenaRun{
		id:       uuid.NewString(),
		owner:    p,
		level:    p.level,
		total:    formula.WaveCount(p.level),
		playerHP: formula.PlayerMaxHP(p.level),
		lastPing: now,
	}
	r.rollWave(0)
	return r
}

func (r *arenaRun) rollWave(wave0 int) {
	r.wave0 = wave0
	n := formula.MonstersInWave(r.level, wave0)
	hp := formula.WaveMonsterHP(r.level, wave0)
	dmg := formula.WaveMonsterDamage(r.level, wave0)
	r.monsters = make([]proto.MonsterStats, n)
	for i := range r.monsters {
		r.monsters[i] = proto.MonsterStats{HP: hp, MaxHP: hp, Damage: dmg}
	}
	r.lastHit = make([]time.Time, n)
}

func (r *arenaRun) cleared() bool {
	for _, m := range r.monsters {
		if m.HP > 0 {
			return false
		}
	}
	return true
}

func (r *arenaRun) roster() []proto.MonsterStats {
	return append([]proto.MonsterStats(nil), r.monsters...)
}

// hpOnly strips damage for attack responses.
func (r *arenaRun) hpOnly() []proto.MonsterStats {
	out := make([]proto.MonsterStats, len(r.monsters))
	for i, m := range r.monsters {
		out[i] = proto.MonsterStats{HP: m.HP, MaxHP: m.MaxHP}
	}
	return out
}

func (r *arenaRun) snapshot() *proto.ActiveRun {
	return &proto.ActiveRun{
		RunID:        r.id,
		Character:    r.owner.character(r.playerHP),
		Monsters:     r.roster(),
		TotalWaves:   r.total,
		CurrentWave0: r.wave0,
	}
}

// lookupRun resolves the caller's run by id. Must hold s.mu.
func (s *Server) lookupRun(c *gin.Context, p *player, id string) *arenaRun {
	r := s.runs[id]
	if r == nil || r.owner != p {
		reject(c, http.StatusNotFound, proto.CodeNotFound)
		return nil
	}
	return r
}

func (s *Server) endRun(r *arenaRun) {
	delete(s.runs, r.id)
	if r.owner.run == r {
		r.owner.run = nil
	}
}

func (s *Server) handleStart(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	p.rollDay(now)

	if now.Before(p.cooldownUntil) {
		rejectCooldown(c, p.cooldownUntil)
		return
	}
	if p.battlesToday >= s.opts.MaxBattlesPerDay {
		reject(c, http.StatusTooManyRequests, proto.CodeDailyLimit)
		return
	}
	if p.run != nil {
		s.log.Info("abandoning previous run", zap.String("player", p.name), zap.String("run", p.run.id))
		s.endRun(p.run)
	}

	r := newArenaRun(p, now)
	s.runs[r.id] = r
	p.run = r
	p.battlesToday++
	p.lastAttack = time.Time{}

	c.JSON(http.StatusOK, proto.StartResponse{
		RunID:            r.id,
		Character:        p.character(r.playerHP),
		Monsters:         r.roster(),
		TotalWaves:       r.total,
		CurrentWave0:     r.wave0,
		WinsToday:        p.winsToday,
		BattlesLeft:      s.opts.MaxBattlesPerDay - p.battlesToday,
		MaxBattlesPerDay: s.opts.MaxBattlesPerDay,
	})
}

func (s *Server) handleAttack(c *gin.Context) {
	p := caller(c)
	var req proto.AttackRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookupRun(c, p, req.RunID)
	if r == nil {
		return
	}
	now := s.opts.Now()
	if tooSoon(p.lastAttack, now, PlayerHitCooldown) {
		reject(c, http.StatusTooManyRequests, proto.CodeTooFast)
		return
	}
	if req.MonsterIndex < 0 || req.MonsterIndex >= len(r.monsters) || r.monsters[req.MonsterIndex].HP <= 0 {
		reject(c, http.StatusConflict, proto.CodeInvalidTarget)
		return
	}
	p.lastAttack = now

	m := &r.monsters[req.MonsterIndex]
	m.HP = max(m.HP-formula.PlayerDamage(p.bowLevel), 0)

	if r.cleared() && r.wave0 == r.total-1 {
		xp := victoryXP(r.level, r.total)
		p.gainXP(xp)
		p.winsToday++
		s.endRun(r)
		s.log.Info("arena victory", zap.String("player", p.name), zap.String("run", r.id), zap.Int("xp", xp))
		char := p.character(r.playerHP)
		c.JSON(http.StatusOK, proto.AttackResponse{
			Victory:   true,
			PlayerHP:  r.playerHP,
			XPGained:  xp,
			Character: &char,
		})
		return
	}
	c.JSON(http.StatusOK, proto.AttackResponse{PlayerHP: r.playerHP, Monsters: r.hpOnly()})
}

func (s *Server) handleMonsterHit(c *gin.Context) {
	p := caller(c)
	var req proto.MonsterHitRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookupRun(c, p, req.RunID)
	if r == nil {
		return
	}
	idx := req.MonsterIndex
	if idx < 0 || idx >= len(r.monsters) || r.monsters[idx].HP <= 0 {
		reject(c, http.StatusConflict, proto.CodeInvalidTarget)
		return
	}
	now := s.opts.Now()
	gap := time.Duration(formula.MonsterAttackCooldownMs(r.level)) * time.Millisecond
	if tooSoon(r.lastHit[idx], now, gap) {
		reject(c, http.StatusTooManyRequests, proto.CodeTooFast)
		return
	}
	r.lastHit[idx] = now

	r.playerHP = max(r.playerHP-r.monsters[idx].Damage, 0)
	if r.playerHP > 0 {
		c.JSON(http.StatusOK, proto.MonsterHitResponse{PlayerHP: r.playerHP})
		return
	}

	p.cooldownUntil = now.Add(s.opts.DefeatCooldown)
	s.endRun(r)
	s.log.Info("arena defeat", zap.String("player", p.name), zap.String("run", r.id), zap.Int("wave", r.wave0))
	c.JSON(http.StatusOK, proto.MonsterHitResponse{Defeat: true, CooldownUntil: proto.MillisOf(p.cooldownUntil)})
}

// handleNextWave advances once the current wave is cleared. Asking again
// before the new wave is cleared returns the same roster, so a retry after
// a lost response is harmless.
func (s *Server) handleNextWave(c *gin.Context) {
	p := caller(c)
	var req proto.NextWaveRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookupRun(c, p, req.RunID)
	if r == nil {
		return
	}
	if r.cleared() && r.wave0+1 < r.total {
		r.rollWave(r.wave0 + 1)
	}
	c.JSON(http.StatusOK, proto.NextWaveResponse{Monsters: r.roster(), CurrentWave0: r.wave0})
}

func (s *Server) handlePing(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	if p.run != nil {
		p.run.lastPing = s.opts.Now()
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, proto.PingResponse{OK: true})
}

func (s *Server) handleState(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	p.rollDay(now)

	st := proto.StateResponse{
		WinsToday:        p.winsToday,
		BattlesLeft:      max(s.opts.MaxBattlesPerDay-p.battlesToday, 0),
		MaxBattlesPerDay: s.opts.MaxBattlesPerDay,
	}
	char := p.character(formula.PlayerMaxHP(p.level))
	st.Character = &char
	if p.run != nil {
		st.ActiveRun = p.run.snapshot()
	}
	if now.Before(p.cooldownUntil) {
		st.CooldownUntil = proto.MillisOf(p.cooldownUntil)
	}
	c.JSON(http.StatusOK, st)
}
