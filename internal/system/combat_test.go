package system

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bowarena/client/internal/core/event"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
)

// spawnOne begins a wave with the given HPs and ticks once so the first
// monster is on the field.
func spawnOne(h *arenaHarness, hp ...int) *world.Monster {
	h.t.Helper()
	h.waves.Begin(0, roster(hp...))
	h.tick(20 * time.Millisecond)
	m := h.ws.MonsterByIndex(0)
	if m == nil {
		h.t.Fatal("monster 0 not spawned")
	}
	return m
}

func TestPlayerAttackRespectsSpawnInvulnerability(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	m := spawnOne(h, 83)

	if err := h.combat.PlayerAttack(m); !errors.Is(err, ErrTargetInvulnerable) {
		t.Fatalf("attack during spawn: err = %v, want ErrTargetInvulnerable", err)
	}
	h.q.Settle()
	if n := h.api.attackCount(); n != 0 {
		t.Fatalf("attack calls = %d, want 0", n)
	}

	h.run(SpawnInvulnerability)
	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack after spawn window: %v", err)
	}
}

func TestPlayerAttackCooldownGate(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	var hp atomic.Int64
	hp.Store(500)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		left := hp.Add(-10)
		return &proto.AttackResponse{PlayerHP: 100, Monsters: []proto.MonsterStats{{HP: int(left), MaxHP: 500}}}, nil
	}
	m := spawnOne(h, 500)
	h.run(SpawnInvulnerability)

	var issued []time.Time
	for i := 0; i < 100; i++ {
		err := h.combat.PlayerAttack(m)
		switch {
		case err == nil:
			issued = append(issued, h.ws.Now)
		case !errors.Is(err, ErrAttackCooldown):
			t.Fatalf("unexpected error: %v", err)
		}
		h.tick(20 * time.Millisecond)
	}

	if len(issued) != 4 {
		t.Fatalf("issued %d attacks in 2s, want 4", len(issued))
	}
	for i := 1; i < len(issued); i++ {
		if gap := issued[i].Sub(issued[i-1]); gap < PlayerHitCooldown {
			t.Fatalf("attacks %d and %d only %v apart", i-1, i, gap)
		}
	}
	if n := h.api.attackCount(); n != len(issued) {
		t.Fatalf("server saw %d attacks, client issued %d", n, len(issued))
	}
	if m.HP != 460 {
		t.Fatalf("monster HP = %d, want 460", m.HP)
	}
}

func TestAttackResponseOverwritesHP(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		return &proto.AttackResponse{PlayerHP: 77, Monsters: []proto.MonsterStats{{HP: 40, MaxHP: 90}}}, nil
	}
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)

	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack: %v", err)
	}
	h.q.Settle()
	h.flush()

	if m.HP != 40 || m.MaxHP != 90 {
		t.Fatalf("monster = %d/%d, want 40/90", m.HP, m.MaxHP)
	}
	if h.ws.Player.HP != 77 || h.ws.Player.DisplayHP != 77 {
		t.Fatalf("player HP = %d display %.1f, want 77", h.ws.Player.HP, h.ws.Player.DisplayHP)
	}

	var optimistic, confirmed bool
	for _, d := range h.rec.damage {
		if d.Target == "monster" && d.Optimistic && d.Amount == 10 {
			optimistic = true
		}
		if d.Target == "player" && !d.Optimistic && d.Amount == 23 {
			confirmed = true
		}
	}
	if !optimistic || !confirmed {
		t.Fatalf("damage events = %+v", h.rec.damage)
	}
}

func TestKillingLastMonsterOfWavePauses(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		return &proto.AttackResponse{PlayerHP: 100, Monsters: []proto.MonsterStats{{HP: 0, MaxHP: 83}}}, nil
	}
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)

	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack: %v", err)
	}
	h.q.Settle()

	if !m.Dead || m.State != world.MonsterDead {
		t.Fatalf("monster dead=%v state=%v", m.Dead, m.State)
	}
	if h.ws.Wave.Phase != world.WavePause {
		t.Fatalf("phase = %v, want pause", h.ws.Wave.Phase)
	}
	if n := h.api.nextWaveCount(); n != 1 {
		t.Fatalf("next-wave calls = %d, want 1", n)
	}
	h.run(PlayerHitCooldown)
	if err := h.combat.PlayerAttack(m); !errors.Is(err, ErrNotFighting) {
		t.Fatalf("attack during pause: err = %v", err)
	}
}

func TestVictoryEmittedOnceAfterDelay(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 1)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		return &proto.AttackResponse{
			Victory:   true,
			PlayerHP:  91,
			XPGained:  40,
			Character: &proto.Character{Level: 1, MaxHP: 100, CurrentHP: 91},
		}, nil
	}
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)
	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack: %v", err)
	}
	h.q.Settle()

	if h.ws.Wave.Phase != world.WaveVictory {
		t.Fatalf("phase = %v, want victory", h.ws.Wave.Phase)
	}
	if !m.Dead {
		t.Fatal("target should be dead after victory")
	}
	h.run(OutcomeDelay - 100*time.Millisecond)
	if len(h.rec.ended) != 0 {
		t.Fatal("outcome shown before the delay")
	}
	h.run(200 * time.Millisecond)
	h.run(time.Second)
	if len(h.rec.ended) != 1 {
		t.Fatalf("RunEnded count = %d, want 1", len(h.rec.ended))
	}
	got := h.rec.ended[0]
	if got.Outcome != event.OutcomeVictory || got.XPGained != 40 || got.PlayerHP != 91 {
		t.Fatalf("RunEnded = %+v", got)
	}

	// a second conclusion is ignored
	h.waves.Conclude(event.OutcomeDefeat, 0, 0)
	if h.ws.Wave.Phase != world.WaveVictory {
		t.Fatalf("phase changed to %v after victory", h.ws.Wave.Phase)
	}
}

func TestStaleWaveAttackResponseIgnored(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 3)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		return &proto.AttackResponse{PlayerHP: 10, Monsters: []proto.MonsterStats{{HP: 0, MaxHP: 83}}}, nil
	}
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)
	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack: %v", err)
	}
	// the next wave starts before the response lands
	h.ws.Wave.Index = 1
	m.Wave = 1

	h.q.Settle()
	if m.Dead || m.HP != 83 {
		t.Fatalf("stale response applied: dead=%v hp=%d", m.Dead, m.HP)
	}
	if h.ws.Player.HP != 100 {
		t.Fatalf("stale response changed player HP to %d", h.ws.Player.HP)
	}
}

func TestMonsterHitDefeatCarriesCooldown(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	until := t0.Add(30 * time.Minute)
	h.api.hit = func(int) (*proto.MonsterHitResponse, error) {
		return &proto.MonsterHitResponse{Defeat: true, CooldownUntil: proto.MillisOf(until)}, nil
	}
	m := spawnOne(h, 83)
	if h.combat.MonsterHit(m) {
		t.Fatal("invulnerable monster must not hit")
	}
	h.run(SpawnInvulnerability)
	if !h.combat.MonsterHit(m) {
		t.Fatal("monster hit not issued")
	}
	h.q.Settle()

	if h.ws.Wave.Phase != world.WaveDefeat {
		t.Fatalf("phase = %v, want defeat", h.ws.Wave.Phase)
	}
	if h.ws.Player.HP != 0 || !h.ws.Player.Dead {
		t.Fatalf("player HP = %d dead=%v", h.ws.Player.HP, h.ws.Player.Dead)
	}
	if err := h.combat.PlayerAttack(m); !errors.Is(err, ErrRunEnded) {
		t.Fatalf("attack after defeat: err = %v", err)
	}

	h.run(OutcomeDelay + 100*time.Millisecond)
	if len(h.rec.ended) != 1 {
		t.Fatalf("RunEnded count = %d, want 1", len(h.rec.ended))
	}
	if got := h.rec.ended[0]; got.Outcome != event.OutcomeDefeat || !got.CooldownUntil.Equal(until) {
		t.Fatalf("RunEnded = %+v", got)
	}
	if !h.ws.Ended {
		t.Fatal("state should be ended")
	}
}

func TestMonsterCannotHitDuringWavePause(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)
	before := h.api.hitCount()

	h.ws.Wave.Phase = world.WavePause
	h.ws.Wave.NextWaveAt = h.ws.Now.Add(WavePause)
	if h.combat.MonsterHit(m) {
		t.Fatal("monster hit issued during the pause")
	}
	h.q.Settle()
	if n := h.api.hitCount(); n != before {
		t.Fatalf("monster-hit calls = %d, want %d", n, before)
	}
	if h.ws.Player.HP != 100 || m.HitPending {
		t.Fatalf("player HP = %d pending=%v", h.ws.Player.HP, m.HitPending)
	}
}

func TestMonsterHitNetworkFailureKeepsState(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	h.api.hit = func(int) (*proto.MonsterHitResponse, error) { return nil, errNetwork }
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)

	if !h.combat.MonsterHit(m) {
		t.Fatal("monster hit not issued")
	}
	if h.combat.MonsterHit(m) {
		t.Fatal("second hit issued while one is pending")
	}
	h.q.Settle()
	if m.HitPending {
		t.Fatal("pending flag not cleared after failure")
	}
	if h.ws.Player.HP != 100 || h.ws.Wave.Phase != world.WaveFight {
		t.Fatalf("state changed on failure: hp=%d phase=%v", h.ws.Player.HP, h.ws.Wave.Phase)
	}
}

func TestPolicyRejectionRaisesToast(t *testing.T) {
	h := newArenaHarness(t, openGrid(12, 12), 1, 2)
	h.api.attack = func(int) (*proto.AttackResponse, error) {
		return nil, &proto.APIError{Code: proto.CodeInvalidTarget, Status: 409}
	}
	m := spawnOne(h, 83)
	h.run(SpawnInvulnerability)
	if err := h.combat.PlayerAttack(m); err != nil {
		t.Fatalf("attack: %v", err)
	}
	h.q.Settle()
	h.flush()
	if len(h.rec.toasts) == 0 {
		t.Fatal("no toast for rejected attack")
	}
	if m.HP != 83 {
		t.Fatalf("rejected attack changed HP to %d", m.HP)
	}
}
