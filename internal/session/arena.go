// Package session owns one arena run or duel: its state, event bus,
// network queue and the systems that tick them. A session is built on run
// start and thrown away on exit; nothing outlives it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/notice"
	"github.com/bowarena/client/internal/system"
	"github.com/bowarena/client/internal/world"
	"go.uber.org/zap"
)

// ErrNoActiveRun is returned by ResumeArena when the server has nothing to
// resume.
var ErrNoActiveRun = errors.New("no active run to resume")

// ArenaClient is the arena API plus the calls that create a run.
type ArenaClient interface {
	system.ArenaAPI
	Start(ctx context.Context) (*proto.StartResponse, error)
	State(ctx context.Context) (*proto.StateResponse, error)
}

// Options configures a session. Grid and Start are required.
type Options struct {
	Grid        *grid.Grid
	Start       grid.Tile
	SpawnPoints []grid.Tile
	Special     map[grid.Tile]string

	Now  time.Time // initial simulation time; zero means time.Now()
	Seed int64

	MaxResultsPerTick int
	QueueSize         int

	// Policy drives the player; nil disables the autopilot.
	Policy      system.Policy
	AttackRange int

	Notice *notice.Printer
	Log    *zap.Logger
}

func (o *Options) fill() {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Notice == nil {
		o.Notice = notice.Default()
	}
}

// Arena is one arena run.
type Arena struct {
	State    *world.State
	Bus      *event.Bus
	Queue    *gonet.Queue
	Runner   *coresys.Runner
	Movement *system.MovementSystem
	Combat   *system.Combat
	Waves    *system.WaveSystem

	log    *zap.Logger
	result *event.RunEnded
}

// StartArena asks the server for a new run and builds its session. Policy
// rejections (cooldown, daily limit) come back as *proto.APIError.
func StartArena(ctx context.Context, api ArenaClient, opts Options) (*Arena, error) {
	res, err := api.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start arena: %w", err)
	}
	return NewArena(ctx, api, res, opts), nil
}

// ResumeArena rebuilds a session from the server's active-run snapshot.
func ResumeArena(ctx context.Context, api ArenaClient, opts Options) (*Arena, error) {
	st, err := api.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("arena state: %w", err)
	}
	if st.ActiveRun == nil {
		return nil, ErrNoActiveRun
	}
	ar := st.ActiveRun
	return NewArena(ctx, api, &proto.StartResponse{
		RunID:            ar.RunID,
		Character:        ar.Character,
		Monsters:         ar.Monsters,
		TotalWaves:       ar.TotalWaves,
		CurrentWave0:     ar.CurrentWave0,
		WinsToday:        st.WinsToday,
		BattlesLeft:      st.BattlesLeft,
		MaxBattlesPerDay: st.MaxBattlesPerDay,
	}, opts), nil
}

// NewArena builds a session for an already started run.
func NewArena(ctx context.Context, api system.ArenaAPI, res *proto.StartResponse, opts Options) *Arena {
	opts.fill()
	log := opts.Log.With(zap.String("run", res.RunID))

	ws := world.NewState(opts.Grid, opts.Now, opts.Seed)
	ws.Run = world.Run{
		ID:               res.RunID,
		TotalWaves:       res.TotalWaves,
		WinsToday:        res.WinsToday,
		BattlesLeft:      res.BattlesLeft,
		MaxBattlesPerDay: res.MaxBattlesPerDay,
	}
	ws.Player = world.NewPlayer(res.Character)
	ws.Player.PlaceAt(opts.Start)
	ws.Wave.Total = res.TotalWaves
	if ws.Wave.Total <= 0 {
		ws.Wave.Total = formula.WaveCount(res.Character.Level)
	}

	a := &Arena{
		State:  ws,
		Bus:    event.NewBus(),
		Queue:  gonet.NewQueue(ctx, opts.QueueSize, log),
		Runner: coresys.NewRunner(),
		log:    log,
	}
	a.Movement = system.NewMovementSystem(ws, a.Bus)
	a.Movement.Special = opts.Special
	a.Waves = system.NewWaveSystem(ws, a.Bus, a.Queue, api, opts.Notice, log)
	a.Waves.SpawnPoints = opts.SpawnPoints
	a.Combat = system.NewCombat(ws, a.Bus, a.Queue, api, a.Waves, opts.Notice, log)

	a.Runner.Register(system.NewInputSystem(a.Queue, opts.MaxResultsPerTick))
	if opts.Policy != nil {
		a.Runner.Register(system.NewAutopilotSystem(ws, a.Movement, a.Combat, nil, opts.Policy, opts.AttackRange, log))
	}
	a.Runner.Register(system.NewDispatchSystem(a.Bus))
	a.Runner.Register(a.Movement)
	a.Runner.Register(system.NewMonsterAISystem(ws, a.Bus, a.Combat))
	a.Runner.Register(a.Waves)
	a.Runner.Register(system.NewRegenSystem(ws))
	a.Runner.Register(system.NewHeartbeatSystem(ws, a.Queue, api))
	a.Runner.Register(system.NewCleanupSystem(ws, a.Bus))

	event.Subscribe(a.Bus, func(e event.RunEnded) {
		if a.result == nil {
			a.result = &e
		}
	})

	a.Waves.Begin(res.CurrentWave0, res.Monsters)
	log.Info("arena run started",
		zap.Int("level", res.Character.Level),
		zap.Int("wave", res.CurrentWave0),
		zap.Int("total_waves", ws.Wave.Total))
	return a
}

// Tick advances the simulation clock by dt and runs one frame.
func (a *Arena) Tick(dt time.Duration) {
	if a.result != nil {
		return
	}
	a.State.Advance(dt)
	a.Runner.Tick(dt)
}

// Exit tears the run down. Pending timers die with the session and any
// response still in flight is dropped.
func (a *Arena) Exit() {
	a.Queue.Close()
	if a.result == nil {
		a.result = &event.RunEnded{
			Mode:       event.ModeArena,
			RunID:      a.State.Run.ID,
			Outcome:    event.OutcomeExit,
			Wave:       a.State.Wave.Index,
			TotalWaves: a.State.Wave.Total,
			PlayerHP:   a.State.Player.HP,
		}
	}
	a.State.Ended = true
}

// Done reports whether the run's outcome has been delivered or the session
// was exited.
func (a *Arena) Done() bool { return a.result != nil }

// Result is the delivered outcome, or nil while the run is live.
func (a *Arena) Result() *event.RunEnded { return a.result }
