package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bowarena/client/internal/config"
	"github.com/bowarena/client/internal/core/event"
	"github.com/bowarena/client/internal/data"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/notice"
	"github.com/bowarena/client/internal/persist"
	"github.com/bowarena/client/internal/scripting"
	"github.com/bowarena/client/internal/session"
	"github.com/bowarena/client/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(baseURL string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             Bow Arena  client             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", baseURL)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value string) {
	dotsLen := max(42-len(label)-len(value), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), value)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// runSession is what the frame loop needs from an arena run or a duel.
type runSession interface {
	Tick(dt time.Duration)
	Exit()
	Done() bool
	Result() *event.RunEnded
}

func run() error {
	cfgPath := "config/client.toml"
	if p := os.Getenv("ARENA_CONFIG"); p != "" {
		cfgPath = p
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the client TOML config")
	mode := flag.String("mode", "", "override arena.mode (arena or pvp)")
	battleID := flag.String("battle", "", "override arena.battle_id")
	resume := flag.Bool("resume", false, "resume the active arena run")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *mode != "" {
		cfg.Arena.Mode = *mode
	}
	if *battleID != "" {
		cfg.Arena.BattleID = *battleID
	}
	cfg.Arena.Resume = cfg.Arena.Resume || *resume

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Client.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run history is optional.
	var runs *persist.RunRepo
	if cfg.Database.DSN != "" {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		runs = persist.NewRunRepo(db)
		printOK("run history enabled")
		fmt.Println()
	}

	printSection("data")
	maps, err := data.LoadMapTable(cfg.Arena.MapFile)
	if err != nil {
		return fmt.Errorf("load maps: %w", err)
	}
	mapID := cfg.Arena.MapID
	if cfg.Arena.Mode == "pvp" {
		mapID = cfg.Arena.DuelMapID
	}
	m := maps.Get(mapID)
	if m == nil {
		return fmt.Errorf("map %q not in %s (have %v)", mapID, cfg.Arena.MapFile, maps.IDs())
	}
	printStat("maps", fmt.Sprint(maps.Count()))
	printStat("map", fmt.Sprintf("%s %dx%d", m.ID, m.Grid().Width(), m.Grid().Height()))

	var policy system.Policy
	if cfg.Autopilot.Enabled {
		if cfg.Autopilot.Scripts != "" {
			engine, err := scripting.NewEngine(cfg.Autopilot.Scripts, log)
			if err != nil {
				return fmt.Errorf("lua engine: %w", err)
			}
			defer engine.Close()
			if !engine.HasFunction("autopilot") {
				return fmt.Errorf("no autopilot function in %s", cfg.Autopilot.Scripts)
			}
			policy = engine
			printStat("autopilot", "lua")
		} else {
			policy = scripting.NearestPolicy{}
			printStat("autopilot", "nearest")
		}
	}
	fmt.Println()

	seed := cfg.Arena.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	printer := notice.Default()
	opts := session.Options{
		Grid:              m.Grid(),
		Start:             m.StartTile(),
		SpawnPoints:       m.SpawnPoints,
		Special:           m.SpecialTiles(),
		Seed:              seed,
		MaxResultsPerTick: cfg.Loop.MaxResultsPerTick,
		QueueSize:         cfg.Loop.ResultQueueSize,
		Policy:            policy,
		AttackRange:       cfg.Autopilot.AttackRange,
		Notice:            printer,
		Log:               log,
	}

	client := gonet.NewClient(cfg.Client, log)
	var (
		sess runSession
		bus  *event.Bus
	)
	switch cfg.Arena.Mode {
	case "pvp":
		d, err := joinDuel(ctx, client, cfg, opts, log)
		if err != nil {
			return rejected(ctx, client, printer, err)
		}
		sess, bus = d, d.Bus
	default:
		start := session.StartArena
		if cfg.Arena.Resume {
			start = session.ResumeArena
		}
		a, err := start(ctx, client, opts)
		if err != nil {
			return rejected(ctx, client, printer, err)
		}
		sess, bus = a, a.Bus
	}

	event.Subscribe(bus, func(e event.Toast) {
		fmt.Printf("  \033[35m»\033[0m %s\n", e.Text)
	})
	printReady("run started")

	res := loop(ctx, sess, cfg.Loop, log)
	report(res)

	if runs != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := runs.Record(recCtx, persist.RowFromEvent(*res, time.Now())); err != nil {
			log.Warn("record run failed", zap.Error(err))
		}
	}
	return nil
}

// rejected turns a policy rejection into a readable message. A daily limit
// message quotes the allowance from the character state.
func rejected(ctx context.Context, client *gonet.Client, pr *notice.Printer, err error) error {
	maxPerDay := 0
	if gonet.IsRejection(err, proto.CodeDailyLimit) {
		if st, serr := client.State(ctx); serr == nil {
			maxPerDay = st.MaxBattlesPerDay
		}
	}
	if text, ok := pr.Rejection(err, time.Now(), maxPerDay); ok {
		fmt.Printf("  \033[31m✗\033[0m %s\n", text)
		return nil
	}
	return err
}

// joinDuel enters the configured battle, or creates one and waits for a
// challenger.
func joinDuel(ctx context.Context, client *gonet.Client, cfg *config.Config, opts session.Options, log *zap.Logger) (*session.Duel, error) {
	id := cfg.Arena.BattleID
	if id == "" {
		b, err := client.CreateBattle(ctx)
		if err != nil {
			return nil, fmt.Errorf("create battle: %w", err)
		}
		id = b.ID
		printReady("battle " + id + " waiting for a challenger")
		if err := waitActive(ctx, client, id); err != nil {
			return nil, err
		}
	}
	log.Info("entering battle", zap.String("battle", id), zap.String("transport", cfg.PvP.Transport))
	return session.EnterDuel(ctx, client, id, opts, session.DuelOptions{
		PollInterval: cfg.PvP.PollInterval,
		PushInterval: cfg.PvP.PushInterval,
		UseFeed:      cfg.PvP.Transport == "ws",
	})
}

func waitActive(ctx context.Context, client *gonet.Client, id string) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		b, err := client.GetBattle(ctx, id)
		if err != nil {
			return fmt.Errorf("battle %s: %w", id, err)
		}
		switch b.Status {
		case proto.BattleActive:
			return nil
		case proto.BattleFinished:
			return fmt.Errorf("battle %s finished before it started", id)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// loop drives the session at the configured tick rate until the run ends,
// the time limit passes or the process is signalled.
func loop(ctx context.Context, sess runSession, cfg config.LoopConfig, log *zap.Logger) *event.RunEnded {
	ticker := time.NewTicker(cfg.TickRate)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if cfg.MaxRunTime > 0 {
		timer := time.NewTimer(cfg.MaxRunTime)
		defer timer.Stop()
		deadline = timer.C
	}

	last := time.Now()
	for !sess.Done() {
		select {
		case <-ctx.Done():
			log.Info("signal received, leaving run", zap.Error(context.Cause(ctx)))
			sess.Exit()
		case <-deadline:
			log.Info("run time limit reached", zap.Duration("limit", cfg.MaxRunTime))
			sess.Exit()
		case now := <-ticker.C:
			sess.Tick(now.Sub(last))
			last = now
		}
	}
	return sess.Result()
}

func report(res *event.RunEnded) {
	fmt.Println()
	printSection("result")
	printStat("outcome", string(res.Outcome))
	if res.Mode == event.ModeArena {
		printStat("wave", fmt.Sprintf("%d/%d", res.Wave+1, res.TotalWaves))
		if res.XPGained > 0 {
			printStat("xp", fmt.Sprint(res.XPGained))
		}
	} else {
		printStat("opponent hp", fmt.Sprint(res.OpponentHP))
	}
	printStat("hp", fmt.Sprint(res.PlayerHP))
	if !res.CooldownUntil.IsZero() {
		printStat("cooldown until", res.CooldownUntil.Local().Format(time.Kitchen))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
