package session

import (
	"context"
	"fmt"
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/grid"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/system"
	"github.com/bowarena/client/internal/world"
	"go.uber.org/zap"
)

// DuelClient is the duel API plus the lobby call that starts a run.
type DuelClient interface {
	system.DuelAPI
	EnterBattle(ctx context.Context, id string) (*proto.EnterResponse, error)
}

// RunFeed is implemented by clients that can push run state over a socket.
type RunFeed interface {
	SubscribeRun(ctx context.Context, q *gonet.Queue, runID string, fn func(*proto.RunState), onClose func(error)) error
}

// DuelOptions are the duel-only settings layered over Options.
type DuelOptions struct {
	PollInterval time.Duration
	PushInterval time.Duration
	UseFeed      bool // subscribe to the push feed when the client has one
}

// fill replaces non-positive cadences with the defaults.
func (o *DuelOptions) fill() {
	if o.PollInterval <= 0 {
		o.PollInterval = system.DuelPollInterval
	}
	if o.PushInterval <= 0 {
		o.PushInterval = system.DuelPushInterval
	}
}

// Duel is one PvP run.
type Duel struct {
	State    *world.State
	Bus      *event.Bus
	Queue    *gonet.Queue
	Runner   *coresys.Runner
	Movement *system.MovementSystem
	Sync     *system.DuelSystem

	log    *zap.Logger
	result *event.RunEnded
}

// EnterDuel joins battle id and builds its session. With UseFeed and a
// client implementing RunFeed, polling is replaced by the push feed and
// resumes if the feed drops.
func EnterDuel(ctx context.Context, api DuelClient, id string, opts Options, dopts DuelOptions) (*Duel, error) {
	res, err := api.EnterBattle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("enter battle %s: %w", id, err)
	}
	dopts.fill()
	d := NewDuel(ctx, api, res, opts, dopts)

	feed, ok := api.(RunFeed)
	if !dopts.UseFeed || !ok {
		return d, nil
	}
	d.Sync.SetPollInterval(0)
	err = feed.SubscribeRun(ctx, d.Queue, res.RunID, d.Sync.Apply, func(err error) {
		d.log.Info("duel feed dropped, polling", zap.Error(err))
		d.Sync.SetPollInterval(dopts.PollInterval)
	})
	if err != nil {
		d.log.Info("duel feed unavailable, polling", zap.Error(err))
		d.Sync.SetPollInterval(dopts.PollInterval)
	}
	return d, nil
}

// NewDuel builds a session for an entered duel run.
func NewDuel(ctx context.Context, api system.DuelAPI, res *proto.EnterResponse, opts Options, dopts DuelOptions) *Duel {
	opts.fill()
	dopts.fill()
	log := opts.Log.With(zap.String("run", res.RunID))

	ws := world.NewState(opts.Grid, opts.Now, opts.Seed)
	ws.Run = world.Run{ID: res.RunID}

	ws.Player = world.NewPlayer(res.Character)
	ws.Player.SetAuthoritativeHP(res.MyHP, res.MyMaxHP)
	start := grid.Tile{X: res.MyGridX, Y: res.MyGridY}
	if !opts.Grid.Walkable(start) {
		start = opts.Start
	}
	ws.Player.PlaceAt(start)

	opp := &world.Opponent{}
	opp.HP, opp.MaxHP = res.OpponentHP, res.OpponentMaxHP
	opp.Facing = proto.FacingIdle
	if res.OpponentFacing.Valid() {
		opp.Facing = res.OpponentFacing
	}
	reported := grid.Tile{X: res.OpponentGridX, Y: res.OpponentGridY}
	opp.PlaceAt(OpponentSpawn(opts.Grid, start, reported))
	ws.Opponent = opp

	d := &Duel{
		State:  ws,
		Bus:    event.NewBus(),
		Queue:  gonet.NewQueue(ctx, opts.QueueSize, log),
		Runner: coresys.NewRunner(),
		log:    log,
	}
	d.Movement = system.NewMovementSystem(ws, d.Bus)
	d.Movement.Special = opts.Special
	d.Sync = system.NewDuelSystem(ws, d.Bus, d.Queue, api, d.Movement, system.DuelConfig{
		PollInterval: dopts.PollInterval,
		PushInterval: dopts.PushInterval,
	}, opts.Notice, log)
	if opp.Tile == reported {
		d.Sync.Track(reported)
	}

	d.Runner.Register(system.NewInputSystem(d.Queue, opts.MaxResultsPerTick))
	if opts.Policy != nil {
		d.Runner.Register(system.NewAutopilotSystem(ws, d.Movement, nil, d.Sync, opts.Policy, opts.AttackRange, log))
	}
	d.Runner.Register(system.NewDispatchSystem(d.Bus))
	d.Runner.Register(d.Movement)
	d.Runner.Register(d.Sync)
	d.Runner.Register(system.NewRegenSystem(ws))

	event.Subscribe(d.Bus, func(e event.RunEnded) {
		if d.result == nil {
			d.result = &e
		}
	})

	log.Info("duel entered",
		zap.Int("my_hp", res.MyHP),
		zap.Int("opponent_hp", res.OpponentHP),
		zap.Int("opponent_x", opp.Tile.X),
		zap.Int("opponent_y", opp.Tile.Y))
	return d
}

// OpponentSpawn picks where the opponent avatar first appears: the
// reported tile when it is walkable and at least OpponentMinSpawnDist from
// the player, else the nearest reachable tile that is.
func OpponentSpawn(g *grid.Grid, player, reported grid.Tile) grid.Tile {
	if g.Walkable(reported) && reported.Manhattan(player) >= system.OpponentMinSpawnDist {
		return reported
	}
	best, found := reported, false
	bestScore := 0
	for t := range g.ConnectedWalkable(player) {
		if t.Manhattan(player) < system.OpponentMinSpawnDist {
			continue
		}
		score := t.Manhattan(reported)
		if !found || score < bestScore || (score == bestScore && tileLess(t, best)) {
			best, bestScore, found = t, score, true
		}
	}
	return best
}

func tileLess(a, b grid.Tile) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Tick advances the simulation clock by dt and runs one frame.
func (d *Duel) Tick(dt time.Duration) {
	if d.result != nil {
		return
	}
	d.State.Advance(dt)
	d.Runner.Tick(dt)
}

// Exit leaves the duel. Polling stops and late responses are dropped.
func (d *Duel) Exit() {
	d.Sync.Exit()
	d.Queue.Close()
	if d.result == nil {
		d.result = &event.RunEnded{
			Mode:       event.ModePvP,
			RunID:      d.State.Run.ID,
			Outcome:    event.OutcomeExit,
			PlayerHP:   d.State.Player.HP,
			OpponentHP: d.State.Opponent.HP,
		}
	}
	d.State.Ended = true
}

// Done reports whether the duel's outcome has been delivered or the session
// was exited.
func (d *Duel) Done() bool { return d.result != nil }

// Result is the delivered outcome, or nil while the duel is live.
func (d *Duel) Result() *event.RunEnded { return d.result }
