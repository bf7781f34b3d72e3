package system

import (
	"time"

	"github.com/bowarena/client/internal/formula"
)

// Combat timing and geometry shared by the arena and duel systems.
const (
	PlayerHitCooldown    = 500 * time.Millisecond
	SpawnInvulnerability = 800 * time.Millisecond
	HitAnimation         = 300 * time.Millisecond
	DeathAnimation       = 600 * time.Millisecond
	FadeOut              = 400 * time.Millisecond
	WavePause            = 10 * time.Second
	OutcomeDelay         = 2 * time.Second
	HeartbeatInterval    = 10 * time.Second

	AlertRadius   = 4                    // tiles, Manhattan
	AttackRangePx = 40.0                 // monster melee reach
	MinSpawnDist  = 3                    // tiles between the player and a fresh monster
	PatrolSpeed   = 24.0                 // px/s
	PatrolReach   = formula.TileSize * 1 // px either side of the anchor

	MonsterSpeedScale = 0.6
	MonsterVarianceLo = 0.9
	MonsterVarianceHi = 1.1

	DuelPollInterval     = 100 * time.Millisecond
	DuelPushInterval     = 50 * time.Millisecond
	OpponentLerp         = 150 * time.Millisecond
	OpponentMinSpawnDist = 3

	RegenBasePerSec = 1.0
	RegenLead       = 5 * time.Second
)
