package devserver

import (
	"net/http"
	"sort"
	"time"

	"github.com/bowarena/client/internal/data"
	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type battle struct {
	proto.Battle
	duel *duelRun
}

type duelSide struct {
	player     *player
	hp, maxHP  int
	tile       grid.Tile
	facing     proto.Facing
	lastAttack time.Time
}

// duelRun is one PvP fight. Side 0 is the battle's creator.
type duelRun struct {
	id     string
	battle *battle
	sides  [2]*duelSide
	winner int // -1 while running
}

func (d *duelRun) ended() bool { return d.winner >= 0 }

// side returns the caller's index, or -1 if p is not in this duel.
func (d *duelRun) side(p *player) int {
	for i, sd := range d.sides {
		if sd.player == p {
			return i
		}
	}
	return -1
}

func (d *duelRun) state(i int) proto.RunState {
	me, opp := d.sides[i], d.sides[1-i]
	return proto.RunState{
		MyHP:           me.hp,
		MyMaxHP:        me.maxHP,
		OpponentHP:     opp.hp,
		OpponentMaxHP:  opp.maxHP,
		OpponentGridX:  opp.tile.X,
		OpponentGridY:  opp.tile.Y,
		OpponentFacing: opp.facing,
		Victory:        d.winner == i,
		Defeat:         d.ended() && d.winner != i,
	}
}

func (d *duelRun) enterView(i int) proto.EnterResponse {
	me, opp := d.sides[i], d.sides[1-i]
	return proto.EnterResponse{
		RunID:          d.id,
		Character:      me.player.character(me.hp),
		MyHP:           me.hp,
		MyMaxHP:        me.maxHP,
		OpponentHP:     opp.hp,
		OpponentMaxHP:  opp.maxHP,
		MyGridX:        me.tile.X,
		MyGridY:        me.tile.Y,
		OpponentGridX:  opp.tile.X,
		OpponentGridY:  opp.tile.Y,
		OpponentFacing: opp.facing,
	}
}

// duelField returns the duel grid and the two start tiles: the map's start
// and the reachable tile farthest from it.
func duelField(m *data.ArenaMap) (*grid.Grid, [2]grid.Tile) {
	if m == nil {
		g := grid.New(14, 9, 1, func(x, y int) bool { return true })
		return g, [2]grid.Tile{{X: 2, Y: 2}, {X: 11, Y: 6}}
	}
	g, start := m.Grid(), m.StartTile()
	var reach []grid.Tile
	for t := range g.ConnectedWalkable(start) {
		reach = append(reach, t)
	}
	sort.Slice(reach, func(i, j int) bool {
		di, dj := reach[i].Manhattan(start), reach[j].Manhattan(start)
		if di != dj {
			return di > dj
		}
		if reach[i].Y != reach[j].Y {
			return reach[i].Y < reach[j].Y
		}
		return reach[i].X < reach[j].X
	})
	far := start
	if len(reach) > 0 {
		far = reach[0]
	}
	return g, [2]grid.Tile{start, far}
}

func (s *Server) newDuel(b *battle, creator, challenger *player) *duelRun {
	d := &duelRun{id: uuid.NewString(), battle: b, winner: -1}
	for i, p := range [2]*player{creator, challenger} {
		hp := formula.PlayerMaxHP(p.level)
		d.sides[i] = &duelSide{player: p, hp: hp, maxHP: hp, tile: s.duelSpawns[i], facing: proto.FacingIdle}
	}
	s.duels[d.id] = d
	return d
}

func (s *Server) handleCreateBattle(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &battle{Battle: proto.Battle{
		ID:        uuid.NewString(),
		Creator:   p.name,
		Status:    proto.BattleOpen,
		CreatedAt: proto.MillisOf(s.opts.Now()),
	}}
	s.battles[b.ID] = b
	s.log.Info("battle created", zap.String("battle", b.ID), zap.String("creator", p.name))
	c.JSON(http.StatusOK, b.Battle)
}

func (s *Server) handleListBattles(c *gin.Context) {
	p := caller(c)
	mine := c.Query("mine") == "1"
	s.mu.Lock()
	defer s.mu.Unlock()
	out := proto.BattleList{Battles: []proto.Battle{}}
	for _, b := range s.battles {
		switch {
		case mine && (b.Creator == p.name || b.Opponent == p.name):
		case !mine && b.Status == proto.BattleOpen:
		default:
			continue
		}
		out.Battles = append(out.Battles, b.Battle)
	}
	sort.Slice(out.Battles, func(i, j int) bool {
		if out.Battles[i].CreatedAt != out.Battles[j].CreatedAt {
			return out.Battles[i].CreatedAt < out.Battles[j].CreatedAt
		}
		return out.Battles[i].ID < out.Battles[j].ID
	})
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetBattle(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.battles[c.Param("id")]
	if b == nil {
		reject(c, http.StatusNotFound, proto.CodeNotFound)
		return
	}
	c.JSON(http.StatusOK, b.Battle)
}

// handleEnterBattle joins an open battle as the challenger, or returns the
// caller's view of a battle already under way. The creator cannot enter
// until a challenger has joined.
func (s *Server) handleEnterBattle(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.battles[c.Param("id")]
	if b == nil {
		reject(c, http.StatusNotFound, proto.CodeNotFound)
		return
	}
	if b.duel == nil {
		if b.Creator == p.name {
			reject(c, http.StatusConflict, proto.CodeBadRequest)
			return
		}
		creator := s.players[b.Creator]
		if creator == nil {
			reject(c, http.StatusNotFound, proto.CodeNotFound)
			return
		}
		b.duel = s.newDuel(b, creator, p)
		b.Opponent = p.name
		b.Status = proto.BattleActive
		b.RunID = b.duel.id
		s.log.Info("duel started", zap.String("battle", b.ID), zap.String("run", b.RunID),
			zap.String("creator", b.Creator), zap.String("challenger", p.name))
	}
	i := b.duel.side(p)
	if i < 0 {
		reject(c, http.StatusConflict, proto.CodeBadRequest)
		return
	}
	c.JSON(http.StatusOK, b.duel.enterView(i))
}

// lookupDuel resolves runID and the caller's side. Must hold s.mu.
func (s *Server) lookupDuel(c *gin.Context, p *player, runID string) (*duelRun, int) {
	d := s.duels[runID]
	if d == nil {
		reject(c, http.StatusNotFound, proto.CodeNotFound)
		return nil, -1
	}
	i := d.side(p)
	if i < 0 {
		reject(c, http.StatusNotFound, proto.CodeNotFound)
		return nil, -1
	}
	return d, i
}

func (s *Server) handlePvpAttack(c *gin.Context) {
	p := caller(c)
	var req proto.PvpAttackRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, i := s.lookupDuel(c, p, req.RunID)
	if d == nil {
		return
	}
	me, opp := d.sides[i], d.sides[1-i]
	if d.ended() {
		st := d.state(i)
		c.JSON(http.StatusOK, proto.PvpAttackResponse{MyHP: st.MyHP, OpponentHP: st.OpponentHP, Victory: st.Victory, Defeat: st.Defeat})
		return
	}
	now := s.opts.Now()
	if tooSoon(me.lastAttack, now, PlayerHitCooldown) {
		reject(c, http.StatusTooManyRequests, proto.CodeTooFast)
		return
	}
	me.lastAttack = now

	dmg := formula.PlayerDamage(p.bowLevel)
	opp.hp = max(opp.hp-dmg, 0)
	if opp.hp == 0 {
		d.winner = i
		d.battle.Status = proto.BattleFinished
		d.battle.Winner = p.name
		p.winsToday++
		s.log.Info("duel won", zap.String("run", d.id), zap.String("winner", p.name))
	}
	c.JSON(http.StatusOK, proto.PvpAttackResponse{
		MyHP:       me.hp,
		OpponentHP: opp.hp,
		Damage:     dmg,
		Victory:    d.winner == i,
	})
}

func (s *Server) handleRunState(c *gin.Context) {
	p := caller(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, i := s.lookupDuel(c, p, c.Param("id"))
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, d.state(i))
}

func (s *Server) handlePosition(c *gin.Context) {
	p := caller(c)
	var pos proto.PositionUpdate
	if !bind(c, &pos) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, i := s.lookupDuel(c, p, c.Param("id"))
	if d == nil {
		return
	}
	t := grid.Tile{X: pos.GridX, Y: pos.GridY}
	if !pos.Facing.Valid() || !s.duelGrid.Walkable(t) {
		reject(c, http.StatusBadRequest, proto.CodeBadRequest)
		return
	}
	if !d.ended() {
		d.sides[i].tile = t
		d.sides[i].facing = pos.Facing
	}
	c.JSON(http.StatusOK, proto.PingResponse{OK: true})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleRunFeed pushes the caller's run state every PushInterval until the
// duel ends or the client goes away. The final state is always sent.
func (s *Server) handleRunFeed(c *gin.Context) {
	p := caller(c)
	runID := c.Param("id")
	s.mu.Lock()
	d, i := s.lookupDuel(c, p, runID)
	s.mu.Unlock()
	if d == nil {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("feed upgrade failed", zap.String("run", runID), zap.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.PushInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		st, done := d.state(i), d.ended()
		s.mu.Unlock()

		if err := conn.WriteJSON(st); err != nil {
			s.log.Debug("feed write failed", zap.String("run", runID), zap.Error(err))
			return
		}
		if done {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "duel over")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
