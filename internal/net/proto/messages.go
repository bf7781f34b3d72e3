// Package proto defines the JSON request/response bodies of the arena and
// duel HTTP API.
package proto

import (
	"fmt"
	"time"
)

// Facing is the wire enum for a combatant's direction.
type Facing string

const (
	FacingIdle  Facing = "idle"
	FacingDown  Facing = "down"
	FacingUp    Facing = "up"
	FacingLeft  Facing = "left"
	FacingRight Facing = "right"
)

// Valid reports whether f is one of the known facings.
func (f Facing) Valid() bool {
	switch f {
	case FacingIdle, FacingDown, FacingUp, FacingLeft, FacingRight:
		return true
	}
	return false
}

// Millis is a unix timestamp in milliseconds; zero means unset.
type Millis int64

// MillisOf converts t to Millis.
func MillisOf(t time.Time) Millis { return Millis(t.UnixMilli()) }

// Time returns the timestamp as a time.Time, or the zero time if unset.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

// Error codes returned in APIError.Code.
const (
	CodeCooldown      = "cooldown"
	CodeDailyLimit    = "daily_limit"
	CodeTooFast       = "too_fast"
	CodeInvalidTarget = "invalid_target"
	CodeNotFound      = "not_found"
	CodeUnauthorized  = "unauthorized"
	CodeBadRequest    = "bad_request"
)

// APIError is the policy-rejection body, e.g. {"error":"cooldown","cooldownUntil":...}.
type APIError struct {
	Code          string `json:"error"`
	CooldownUntil Millis `json:"cooldownUntil,omitempty"`
	Status        int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.CooldownUntil != 0 {
		return fmt.Sprintf("api error %q (cooldown until %s)", e.Code, e.CooldownUntil.Time().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("api error %q", e.Code)
}

// Character is the server's view of the player's progression.
type Character struct {
	Level          int `json:"level"`
	MaxHP          int `json:"maxHp"`
	CurrentHP      int `json:"currentHp"`
	BowLevel       int `json:"bowLevel"`
	MoveSpeedLevel int `json:"moveSpeedLevel"`
	XP             int `json:"xp,omitempty"`
}

// MonsterStats is one monster's authoritative stat line. Damage is only
// present on spawn lists (start, next-wave).
type MonsterStats struct {
	HP     int `json:"hp"`
	MaxHP  int `json:"maxHp"`
	Damage int `json:"damage,omitempty"`
}

// ---- Arena ----

type StartResponse struct {
	RunID            string         `json:"runId"`
	Character        Character      `json:"character"`
	Monsters         []MonsterStats `json:"monsters"`
	TotalWaves       int            `json:"totalWaves"`
	CurrentWave0     int            `json:"currentWave0"`
	WinsToday        int            `json:"winsToday"`
	BattlesLeft      int            `json:"battlesLeft"`
	MaxBattlesPerDay int            `json:"maxBattlesPerDay"`
}

type AttackRequest struct {
	RunID        string `json:"runId"`
	MonsterIndex int    `json:"monsterIndex"`
}

// AttackResponse is one of: {playerHp, monsters}, {victory, playerHp,
// xpGained, character} or {defeat, cooldownUntil?}.
type AttackResponse struct {
	PlayerHP      int            `json:"playerHp"`
	Monsters      []MonsterStats `json:"monsters,omitempty"`
	Victory       bool           `json:"victory,omitempty"`
	Defeat        bool           `json:"defeat,omitempty"`
	XPGained      int            `json:"xpGained,omitempty"`
	Character     *Character     `json:"character,omitempty"`
	CooldownUntil Millis         `json:"cooldownUntil,omitempty"`
}

type MonsterHitRequest struct {
	RunID        string `json:"runId"`
	MonsterIndex int    `json:"monsterIndex"`
}

type MonsterHitResponse struct {
	PlayerHP      int    `json:"playerHp"`
	Defeat        bool   `json:"defeat,omitempty"`
	CooldownUntil Millis `json:"cooldownUntil,omitempty"`
}

type NextWaveRequest struct {
	RunID string `json:"runId"`
}

type NextWaveResponse struct {
	Monsters     []MonsterStats `json:"monsters"`
	CurrentWave0 int            `json:"currentWave0"`
}

type PingResponse struct {
	OK bool `json:"ok"`
}

// ActiveRun is the resumable part of a state snapshot.
type ActiveRun struct {
	RunID        string         `json:"runId"`
	Character    Character      `json:"character"`
	Monsters     []MonsterStats `json:"monsters"`
	TotalWaves   int            `json:"totalWaves"`
	CurrentWave0 int            `json:"currentWave0"`
}

type StateResponse struct {
	ActiveRun        *ActiveRun `json:"activeRun"`
	Character        *Character `json:"character,omitempty"`
	WinsToday        int        `json:"winsToday"`
	BattlesLeft      int        `json:"battlesLeft"`
	MaxBattlesPerDay int        `json:"maxBattlesPerDay"`
	CooldownUntil    Millis     `json:"cooldownUntil,omitempty"`
}

// ---- PvP ----

// Battle status values.
const (
	BattleOpen     = "open"
	BattleActive   = "active"
	BattleFinished = "finished"
)

type Battle struct {
	ID        string `json:"id"`
	Creator   string `json:"creator"`
	Opponent  string `json:"opponent,omitempty"`
	Status    string `json:"status"`
	RunID     string `json:"runId,omitempty"`
	Winner    string `json:"winner,omitempty"`
	CreatedAt Millis `json:"createdAt"`
}

type BattleList struct {
	Battles []Battle `json:"battles"`
}

// EnterResponse starts a duel run for the caller.
type EnterResponse struct {
	RunID          string    `json:"runId"`
	Character      Character `json:"character"`
	MyHP           int       `json:"myHp"`
	MyMaxHP        int       `json:"myMaxHp"`
	OpponentHP     int       `json:"opponentHp"`
	OpponentMaxHP  int       `json:"opponentMaxHp"`
	MyGridX        int       `json:"myGridX"`
	MyGridY        int       `json:"myGridY"`
	OpponentGridX  int       `json:"opponentGridX"`
	OpponentGridY  int       `json:"opponentGridY"`
	OpponentFacing Facing    `json:"opponentFacing"`
}

// RunState is the body of GET /pvp/run/:id and of each websocket push.
type RunState struct {
	MyHP           int    `json:"myHp"`
	OpponentHP     int    `json:"opponentHp"`
	MyMaxHP        int    `json:"myMaxHp"`
	OpponentMaxHP  int    `json:"opponentMaxHp"`
	OpponentGridX  int    `json:"opponentGridX"`
	OpponentGridY  int    `json:"opponentGridY"`
	OpponentFacing Facing `json:"opponentFacing"`
	Victory        bool   `json:"victory,omitempty"`
	Defeat         bool   `json:"defeat,omitempty"`
}

type PositionUpdate struct {
	GridX  int    `json:"gridX"`
	GridY  int    `json:"gridY"`
	Facing Facing `json:"facing"`
}

type PvpAttackRequest struct {
	RunID string `json:"runId"`
}

type PvpAttackResponse struct {
	MyHP       int  `json:"myHp"`
	OpponentHP int  `json:"opponentHp"`
	Damage     int  `json:"damage"`
	Victory    bool `json:"victory,omitempty"`
	Defeat     bool `json:"defeat,omitempty"`
}
