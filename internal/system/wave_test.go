package system

import (
	"testing"
	"time"

	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
)

func TestSpawnCadence(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	interval := time.Duration(formula.SpawnIntervalMs(1)) * time.Millisecond

	h.waves.Begin(0, roster(10, 10, 10))
	h.tick(20 * time.Millisecond)
	if n := len(h.ws.Monsters); n != 1 {
		t.Fatalf("after first tick: %d monsters, want 1", n)
	}
	h.run(interval - 100*time.Millisecond)
	if n := len(h.ws.Monsters); n != 1 {
		t.Fatalf("before interval: %d monsters, want 1", n)
	}
	h.run(200 * time.Millisecond)
	if n := len(h.ws.Monsters); n != 2 {
		t.Fatalf("after interval: %d monsters, want 2", n)
	}
	h.run(interval)
	if n := len(h.ws.Monsters); n != 3 || !h.ws.Wave.AllSpawned() {
		t.Fatalf("after two intervals: %d monsters, all spawned=%v", n, h.ws.Wave.AllSpawned())
	}
	h.run(2 * interval)
	if n := len(h.ws.Monsters); n != 3 {
		t.Fatalf("spawned past the roster: %d monsters", n)
	}

	if len(h.rec.spawned) != 3 {
		t.Fatalf("spawn events = %d, want 3", len(h.rec.spawned))
	}
	for _, e := range h.rec.spawned {
		if d := e.Tile.Manhattan(h.ws.Player.Tile); d < MinSpawnDist {
			t.Fatalf("monster %d spawned %d tiles from the player", e.Index, d)
		}
	}
}

func TestSpawnUsesSpawnPoints(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	spot := grid.Tile{X: 12, Y: 9}
	h.waves.SpawnPoints = []grid.Tile{spot, {X: 1, Y: 2}} // the second is too close
	h.waves.Begin(0, roster(10))
	h.tick(20 * time.Millisecond)
	if m := h.ws.MonsterByIndex(0); m == nil || m.Tile != spot {
		t.Fatalf("monster = %+v, want at %v", m, spot)
	}
}

func TestResumedRosterSkipsKilledMonsters(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	h.waves.Begin(1, []proto.MonsterStats{{HP: 0, MaxHP: 90}, {HP: 40, MaxHP: 90}})
	h.tick(20 * time.Millisecond)
	if len(h.ws.Monsters) != 0 {
		t.Fatalf("dead roster entry was spawned")
	}
	h.run(3 * time.Second)
	if m := h.ws.MonsterByIndex(1); m == nil || m.HP != 40 {
		t.Fatalf("monster 1 = %+v", m)
	}
}

func TestPauseOnlyWhenClearedAndWavesRemain(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	h.waves.Begin(0, roster(10, 10))
	h.tick(20 * time.Millisecond)

	// one monster dead but the second has not spawned yet
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.tick(20 * time.Millisecond)
	if h.ws.Wave.Phase != world.WaveFight {
		t.Fatalf("phase = %v before the wave finished spawning", h.ws.Wave.Phase)
	}

	h.run(3 * time.Second)
	m := h.ws.MonsterByIndex(1)
	if m == nil {
		t.Fatal("second monster never spawned")
	}
	if h.ws.Wave.Phase != world.WaveFight {
		t.Fatalf("phase = %v with a monster alive", h.ws.Wave.Phase)
	}
	h.combat.kill(m)
	h.tick(20 * time.Millisecond)
	if h.ws.Wave.Phase != world.WavePause {
		t.Fatalf("phase = %v, want pause", h.ws.Wave.Phase)
	}
	h.flush()
	if len(h.rec.paused) != 1 || h.rec.paused[0].PreviewHP != formula.WaveMonsterHP(1, 1) {
		t.Fatalf("paused events = %+v", h.rec.paused)
	}
}

func TestLastWaveNeverPausesWithoutVictory(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	h.waves.Begin(1, roster(10))
	h.tick(20 * time.Millisecond)
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.run(time.Second)
	if h.ws.Wave.Phase != world.WaveFight {
		t.Fatalf("phase = %v, the last wave ends only on a victory response", h.ws.Wave.Phase)
	}
	if n := h.api.nextWaveCount(); n != 0 {
		t.Fatalf("next-wave called %d times on the last wave", n)
	}
}

func TestNextWaveAfterPause(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 3)
	h.api.next = func(int) (*proto.NextWaveResponse, error) {
		return &proto.NextWaveResponse{Monsters: roster(101, 101), CurrentWave0: 1}, nil
	}
	h.waves.Begin(0, roster(10))
	h.tick(20 * time.Millisecond)
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.tick(20 * time.Millisecond)

	if n := h.api.nextWaveCount(); n != 1 {
		t.Fatalf("next-wave calls = %d, want 1", n)
	}
	h.run(WavePause - 200*time.Millisecond)
	if h.ws.Wave.Phase != world.WavePause {
		t.Fatalf("pause cut short: phase = %v", h.ws.Wave.Phase)
	}
	h.run(400 * time.Millisecond)
	if h.ws.Wave.Phase != world.WaveFight || h.ws.Wave.Index != 1 {
		t.Fatalf("wave = %v/%d, want fight/1", h.ws.Wave.Phase, h.ws.Wave.Index)
	}
	if m := h.ws.MonsterByIndex(0); m == nil || m.HP != 101 || m.Wave != 1 {
		t.Fatalf("wave 1 monster = %+v", m)
	}
	if n := h.api.nextWaveCount(); n != 1 {
		t.Fatalf("next-wave called %d times, want once per pause", n)
	}
}

func TestNextWaveRetriedAfterFailure(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 3)
	h.api.next = func(n int) (*proto.NextWaveResponse, error) {
		if n == 1 {
			return nil, errNetwork
		}
		return &proto.NextWaveResponse{Monsters: roster(50), CurrentWave0: 1}, nil
	}
	h.waves.Begin(0, roster(10))
	h.tick(20 * time.Millisecond)
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.run(WavePause - 100*time.Millisecond)
	if n := h.api.nextWaveCount(); n != 1 {
		t.Fatalf("retried during the pause: %d calls", n)
	}
	h.run(200 * time.Millisecond)
	if n := h.api.nextWaveCount(); n != 2 {
		t.Fatalf("next-wave calls = %d, want 2", n)
	}
	if h.ws.Wave.Index != 1 || h.ws.Wave.Phase != world.WaveFight {
		t.Fatalf("wave = %v/%d after retry", h.ws.Wave.Phase, h.ws.Wave.Index)
	}
}

func TestEmptyNextWaveRosterRetried(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 3)
	h.api.next = func(n int) (*proto.NextWaveResponse, error) {
		if n == 1 {
			return &proto.NextWaveResponse{CurrentWave0: 1}, nil
		}
		return &proto.NextWaveResponse{Monsters: roster(60), CurrentWave0: 1}, nil
	}
	h.waves.Begin(0, roster(10))
	h.tick(20 * time.Millisecond)
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.tick(20 * time.Millisecond)
	if h.ws.Wave.NextRoster != nil {
		t.Fatalf("empty roster accepted: %+v", h.ws.Wave.NextRoster)
	}

	h.run(WavePause + 100*time.Millisecond)
	if n := h.api.nextWaveCount(); n != 2 {
		t.Fatalf("next-wave calls = %d, want 2", n)
	}
	if h.ws.Wave.Phase != world.WaveFight || h.ws.Wave.Index != 1 {
		t.Fatalf("wave = %v/%d, want fight/1", h.ws.Wave.Phase, h.ws.Wave.Index)
	}
	if m := h.ws.MonsterByIndex(0); m == nil || m.HP != 60 {
		t.Fatalf("wave 1 monster = %+v", m)
	}
}

func TestNextWaveForWrongWaveIgnored(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 4)
	h.api.next = func(int) (*proto.NextWaveResponse, error) {
		return &proto.NextWaveResponse{Monsters: roster(50), CurrentWave0: 3}, nil
	}
	h.waves.Begin(0, roster(10))
	h.tick(20 * time.Millisecond)
	h.combat.kill(h.ws.MonsterByIndex(0))
	h.tick(20 * time.Millisecond)
	if h.ws.Wave.NextRoster != nil {
		t.Fatalf("accepted roster for wave 3 while on wave 0")
	}
}

func TestHeartbeatStopsAtOutcome(t *testing.T) {
	h := newArenaHarness(t, openGrid(16, 16), 1, 2)
	h.runner.Register(NewHeartbeatSystem(h.ws, h.q, h.api))
	h.waves.Begin(0, roster(10))
	h.run(HeartbeatInterval + 100*time.Millisecond)
	h.api.mu.Lock()
	pings := h.api.pings
	h.api.mu.Unlock()
	if pings != 1 {
		t.Fatalf("pings = %d, want 1", pings)
	}
	h.waves.Conclude("defeat", 0, 0)
	h.run(2 * HeartbeatInterval)
	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	if h.api.pings != 1 {
		t.Fatalf("pinged after the run concluded: %d", h.api.pings)
	}
}
