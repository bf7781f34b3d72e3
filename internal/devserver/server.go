// Package devserver is an in-memory reference implementation of the arena
// and duel HTTP API. It applies the same formulas as the client and is
// used for local play and integration tests.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bowarena/client/internal/config"
	"github.com/bowarena/client/internal/data"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// PlayerHitCooldown is the minimum gap between two accepted attacks
	// from one player, arena or duel.
	PlayerHitCooldown = 500 * time.Millisecond

	// hitSlack is subtracted from every server-side cooldown so requests
	// sent exactly on the client's cadence survive network jitter.
	hitSlack = 50 * time.Millisecond
)

// Options configures the server.
type Options struct {
	MaxBattlesPerDay int
	DefeatCooldown   time.Duration
	StartLevel       int
	BowLevel         int
	MoveSpeedLevel   int
	PushInterval     time.Duration // duel websocket cadence

	// DuelMap places duelists; nil uses an open 14x9 field.
	DuelMap *data.ArenaMap

	// Now is the server clock; nil means time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the [devserver] section.
func OptionsFromConfig(cfg config.DevServerConfig) Options {
	return Options{
		MaxBattlesPerDay: cfg.MaxBattlesPerDay,
		DefeatCooldown:   cfg.DefeatCooldown,
		StartLevel:       cfg.StartLevel,
		BowLevel:         cfg.BowLevel,
		MoveSpeedLevel:   cfg.MoveSpeedLevel,
		PushInterval:     cfg.PushInterval,
	}
}

// Server holds all state behind one mutex; every handler locks it for the
// duration of the request.
type Server struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	players map[string]*player
	runs    map[string]*arenaRun
	battles map[string]*battle
	duels   map[string]*duelRun

	duelGrid   *grid.Grid
	duelSpawns [2]grid.Tile
}

func New(opts Options, log *zap.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBattlesPerDay <= 0 {
		opts.MaxBattlesPerDay = 10
	}
	if opts.DefeatCooldown <= 0 {
		opts.DefeatCooldown = 30 * time.Minute
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = 100 * time.Millisecond
	}
	s := &Server{
		opts:    opts,
		log:     log,
		players: make(map[string]*player),
		runs:    make(map[string]*arenaRun),
		battles: make(map[string]*battle),
		duels:   make(map[string]*duelRun),
	}
	s.duelGrid, s.duelSpawns = duelField(opts.DuelMap)
	return s
}

// Handler returns the HTTP handler with every route mounted under /api.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", s.authenticate())
	arena := api.Group("/arena")
	arena.POST("/start", s.handleStart)
	arena.POST("/attack", s.handleAttack)
	arena.POST("/monster-hit", s.handleMonsterHit)
	arena.POST("/next-wave", s.handleNextWave)
	arena.POST("/ping", s.handlePing)
	arena.GET("/state", s.handleState)

	pvp := api.Group("/pvp")
	pvp.POST("/battles", s.handleCreateBattle)
	pvp.GET("/list", s.handleListBattles)
	pvp.GET("/battles/:id", s.handleGetBattle)
	pvp.POST("/battles/:id/enter", s.handleEnterBattle)
	pvp.POST("/attack", s.handlePvpAttack)
	pvp.GET("/run/:id", s.handleRunState)
	pvp.POST("/run/:id/position", s.handlePosition)
	pvp.GET("/run/:id/ws", s.handleRunFeed)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("dev server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const playerKey = "player"

// authenticate maps the bearer token to a player, creating one on first
// use. The token doubles as the player's name.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			reject(c, http.StatusUnauthorized, proto.CodeUnauthorized)
			return
		}
		s.mu.Lock()
		p := s.players[token]
		if p == nil {
			p = newPlayer(token, s.opts)
			s.players[token] = p
			s.log.Info("new player", zap.String("player", token))
		}
		s.mu.Unlock()
		c.Set(playerKey, p)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func caller(c *gin.Context) *player {
	return c.MustGet(playerKey).(*player)
}

func reject(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, proto.APIError{Code: code})
}

func rejectCooldown(c *gin.Context, until time.Time) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, proto.APIError{
		Code:          proto.CodeCooldown,
		CooldownUntil: proto.MillisOf(until),
	})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		reject(c, http.StatusBadRequest, proto.CodeBadRequest)
		return false
	}
	return true
}
