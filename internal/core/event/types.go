package event

import (
	"time"

	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
)

// Outcome is the terminal result of an arena run or duel.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
	OutcomeExit    Outcome = "exit"
)

// Mode distinguishes arena runs from duels.
type Mode string

const (
	ModeArena Mode = "arena"
	ModePvP   Mode = "pvp"
)

type MonsterSpawned struct {
	Wave  int
	Index int
	Tile  grid.Tile
	HP    int
	MaxHP int
}

type MonsterDied struct {
	Wave  int
	Index int
}

type MonsterRemoved struct {
	Wave  int
	Index int
}

// FloatingDamage is a "-N" number over a target. Optimistic numbers come
// from the local formula; confirmed ones from a server HP delta.
type FloatingDamage struct {
	Target     string // "player", "monster", "opponent"
	Index      int
	Amount     int
	Optimistic bool
}

// AttackAnimation is a directional attack swing.
type AttackAnimation struct {
	Attacker string // "player", "monster", "opponent"
	Index    int
	Facing   proto.Facing
}

type WaveStarted struct {
	Wave     int
	Total    int
	Monsters int
}

type WavePaused struct {
	Wave       int // wave just cleared
	ResumeAt   time.Time
	PreviewHP  int // predicted per-monster HP of the next wave
	PreviewCnt int
}

// RunEnded fires exactly once per run after the outcome display delay.
type RunEnded struct {
	Mode          Mode
	RunID         string
	Outcome       Outcome
	Wave          int
	TotalWaves    int
	XPGained      int
	CooldownUntil time.Time
	PlayerHP      int
	OpponentHP    int
}

type OpponentMoved struct {
	Tile   grid.Tile
	Facing proto.Facing
}

// PlayerArrived fires when a step ends on a tile and no queued path remains.
type PlayerArrived struct {
	Tile    grid.Tile
	Special string // map tag of the tile, empty for plain floor
}

// Toast is a transient user-visible message.
type Toast struct {
	Text string
}
