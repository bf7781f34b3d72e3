package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/grid"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errNetwork = errors.New("connection refused")

func openGrid(w, h int) *grid.Grid {
	return grid.New(w, h, 0, func(x, y int) bool { return true })
}

// fakeArena is a scripted ArenaAPI. Unset hooks return zero responses.
type fakeArena struct {
	mu        sync.Mutex
	attacks   []int
	hits      []int
	nextWaves int
	pings     int

	attack func(idx int) (*proto.AttackResponse, error)
	hit    func(idx int) (*proto.MonsterHitResponse, error)
	next   func(n int) (*proto.NextWaveResponse, error)
}

func (f *fakeArena) Attack(_ context.Context, _ string, idx int) (*proto.AttackResponse, error) {
	f.mu.Lock()
	f.attacks = append(f.attacks, idx)
	fn := f.attack
	f.mu.Unlock()
	if fn == nil {
		return &proto.AttackResponse{}, nil
	}
	return fn(idx)
}

func (f *fakeArena) MonsterHit(_ context.Context, _ string, idx int) (*proto.MonsterHitResponse, error) {
	f.mu.Lock()
	f.hits = append(f.hits, idx)
	fn := f.hit
	f.mu.Unlock()
	if fn == nil {
		return &proto.MonsterHitResponse{PlayerHP: 100}, nil
	}
	return fn(idx)
}

func (f *fakeArena) NextWave(_ context.Context, _ string) (*proto.NextWaveResponse, error) {
	f.mu.Lock()
	f.nextWaves++
	n := f.nextWaves
	fn := f.next
	f.mu.Unlock()
	if fn == nil {
		return &proto.NextWaveResponse{}, nil
	}
	return fn(n)
}

func (f *fakeArena) Ping(context.Context) (*proto.PingResponse, error) {
	f.mu.Lock()
	f.pings++
	f.mu.Unlock()
	return &proto.PingResponse{OK: true}, nil
}

func (f *fakeArena) attackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attacks)
}

func (f *fakeArena) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hits)
}

func (f *fakeArena) nextWaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextWaves
}

// recorder keeps every event of the types the tests look at.
type recorder struct {
	ended    []event.RunEnded
	damage   []event.FloatingDamage
	paused   []event.WavePaused
	toasts   []string
	died     []event.MonsterDied
	removed  []event.MonsterRemoved
	spawned  []event.MonsterSpawned
	arrived  []event.PlayerArrived
	oppMoves []event.OpponentMoved
}

func record(bus *event.Bus) *recorder {
	r := &recorder{}
	event.Subscribe(bus, func(e event.RunEnded) { r.ended = append(r.ended, e) })
	event.Subscribe(bus, func(e event.FloatingDamage) { r.damage = append(r.damage, e) })
	event.Subscribe(bus, func(e event.WavePaused) { r.paused = append(r.paused, e) })
	event.Subscribe(bus, func(e event.Toast) { r.toasts = append(r.toasts, e.Text) })
	event.Subscribe(bus, func(e event.MonsterDied) { r.died = append(r.died, e) })
	event.Subscribe(bus, func(e event.MonsterRemoved) { r.removed = append(r.removed, e) })
	event.Subscribe(bus, func(e event.MonsterSpawned) { r.spawned = append(r.spawned, e) })
	event.Subscribe(bus, func(e event.PlayerArrived) { r.arrived = append(r.arrived, e) })
	event.Subscribe(bus, func(e event.OpponentMoved) { r.oppMoves = append(r.oppMoves, e) })
	return r
}

// arenaHarness wires the arena systems the way a session does, minus the
// autopilot.
type arenaHarness struct {
	t      *testing.T
	ws     *world.State
	bus    *event.Bus
	q      *gonet.Queue
	api    *fakeArena
	mv     *MovementSystem
	waves  *WaveSystem
	combat *Combat
	runner *coresys.Runner
	rec    *recorder
}

func newArenaHarness(t *testing.T, g *grid.Grid, level, totalWaves int) *arenaHarness {
	t.Helper()
	log := zaptest.NewLogger(t)
	ws := world.NewState(g, t0, 1)
	ws.Run.ID = "run-1"
	ws.Player = world.NewPlayer(proto.Character{Level: level, CurrentHP: 100, MaxHP: 100})
	ws.Player.PlaceAt(grid.Tile{X: 1, Y: 1})
	ws.Wave.Total = totalWaves

	h := &arenaHarness{
		t:      t,
		ws:     ws,
		bus:    event.NewBus(),
		api:    &fakeArena{},
		runner: coresys.NewRunner(),
	}
	h.q = gonet.NewQueue(context.Background(), 64, log)
	t.Cleanup(h.q.Close)
	h.rec = record(h.bus)
	h.mv = NewMovementSystem(ws, h.bus)
	h.waves = NewWaveSystem(ws, h.bus, h.q, h.api, nil, log)
	h.combat = NewCombat(ws, h.bus, h.q, h.api, h.waves, nil, log)

	h.runner.Register(NewInputSystem(h.q, 0))
	h.runner.Register(NewDispatchSystem(h.bus))
	h.runner.Register(h.mv)
	h.runner.Register(NewMonsterAISystem(ws, h.bus, h.combat))
	h.runner.Register(h.waves)
	h.runner.Register(NewRegenSystem(ws))
	h.runner.Register(NewCleanupSystem(ws, h.bus))
	return h
}

// tick advances the clock, runs one frame and applies every response.
func (h *arenaHarness) tick(dt time.Duration) {
	h.ws.Advance(dt)
	h.runner.Tick(dt)
	h.q.Settle()
}

// run ticks in 20ms steps for d.
func (h *arenaHarness) run(d time.Duration) {
	const step = 20 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		h.tick(step)
	}
}

// flush delivers events emitted so far without advancing time.
func (h *arenaHarness) flush() {
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
}

func roster(hp ...int) []proto.MonsterStats {
	out := make([]proto.MonsterStats, len(hp))
	for i, v := range hp {
		out[i] = proto.MonsterStats{HP: v, MaxHP: v, Damage: 5}
	}
	return out
}
