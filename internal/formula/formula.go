// Package formula holds the combat stat formulas shared with the arena
// server. Every function is pure and must stay bit-for-bit identical to the
// server's implementation: the client uses them to pre-render stat bars and
// optimistic damage numbers before a response confirms them.
package formula

import "math"

const (
	MinLevel     = 1
	MaxLevel     = 10
	MaxBowLevel  = 9
	MaxMoveLevel = 4

	// TileSize is the pixel edge of one map tile.
	TileSize = 32

	// BaseStepMs is the tween time of one tile step at move-speed level 0.
	BaseStepMs = 240
)

// BasePlayerSpeed is 32 px per 0.24 s.
const BasePlayerSpeed = float64(TileSize) / (BaseStepMs / 1000.0)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampLevel(level int) int { return clamp(level, MinLevel, MaxLevel) }

// PlayerMaxHP = 100 + (level-1)*20, level clamped to [1,10].
func PlayerMaxHP(level int) int {
	return 100 + (clampLevel(level)-1)*20
}

// PlayerDamage = 10 + bowLevel*3, bowLevel clamped to [0,9].
func PlayerDamage(bowLevel int) int {
	return 10 + clamp(bowLevel, 0, MaxBowLevel)*3
}

// MonsterHP = round(0.65*PlayerMaxHP(level) + wave*18).
//
// wave is the server's wave number; the server passes the 1-based number
// (currentWave0+1) when it rolls a wave, see WaveMonsterHP.
func MonsterHP(level, wave int) int {
	return int(math.Round(0.65*float64(PlayerMaxHP(level)) + float64(wave)*18))
}

// MonsterDamage = round(4 + level*1.0 + wave*1.0).
func MonsterDamage(level, wave int) int {
	return int(math.Round(4 + float64(clampLevel(level))*1.0 + float64(wave)*1.0))
}

// WaveMonsterHP is MonsterHP for a 0-based wave index, as rolled by the server.
func WaveMonsterHP(level, wave0 int) int { return MonsterHP(level, wave0+1) }

// WaveMonsterDamage is MonsterDamage for a 0-based wave index.
func WaveMonsterDamage(level, wave0 int) int { return MonsterDamage(level, wave0+1) }

// MonsterAttackCooldownMs is tiered by player level.
func MonsterAttackCooldownMs(level int) int {
	switch l := clampLevel(level); {
	case l <= 3:
		return 1133
	case l <= 7:
		return 1067
	default:
		return 1000
	}
}

var waveSpeedK = [6]float64{1.0, 1.04, 1.08, 1.12, 1.16, 1.2}

// MonsterSpeedK is the per-wave speed multiplier; indexes past the table
// reuse its last entry.
func MonsterSpeedK(waveIndex int) float64 {
	if waveIndex < 0 {
		waveIndex = 0
	}
	if waveIndex >= len(waveSpeedK) {
		return waveSpeedK[len(waveSpeedK)-1]
	}
	return waveSpeedK[waveIndex]
}

// lerpByLevel interpolates linearly from lo (level 1) to hi (level 10).
func lerpByLevel(level int, lo, hi float64) float64 {
	t := float64(clampLevel(level)-MinLevel) / float64(MaxLevel-MinLevel)
	return lo + (hi-lo)*t
}

// MonsterSpeedByLevelK runs from 1.0 at level 1 down to 0.82 at level 10.
func MonsterSpeedByLevelK(level int) float64 {
	return lerpByLevel(level, 1.0, 0.82)
}

// RegenMultByLevel runs from 1.0 at level 1 up to 1.5 at level 10.
func RegenMultByLevel(level int) float64 {
	return lerpByLevel(level, 1.0, 1.5)
}

// WaveCount: 2 waves at levels 1-2, one more every two levels, 6 at 9-10.
func WaveCount(level int) int {
	return 2 + (clampLevel(level)-1)/2
}

var monstersPerWave = [MaxLevel][]int{
	{1, 2},
	{2, 2},
	{2, 3, 3},
	{2, 3, 4},
	{3, 3, 4, 4},
	{3, 4, 4, 5},
	{3, 4, 4, 5, 5},
	{4, 4, 5, 5, 6},
	{4, 5, 5, 6, 6, 7},
	{5, 5, 6, 6, 7, 7},
}

// MonstersInWave returns the monster count for a 0-based wave index. Waves
// past the level's table reuse the last entry.
func MonstersInWave(level, wave0 int) int {
	counts := monstersPerWave[clampLevel(level)-1]
	if wave0 < 0 {
		wave0 = 0
	}
	if wave0 >= len(counts) {
		return counts[len(counts)-1]
	}
	return counts[wave0]
}

// SpawnIntervalMs is the delay between monster spawns within a wave.
func SpawnIntervalMs(level int) int {
	switch l := clampLevel(level); {
	case l <= 2:
		return 2500
	case l <= 4:
		return 2200
	case l <= 6:
		return 1900
	case l <= 8:
		return 1600
	default:
		return 1400
	}
}

// SpeedMultiplier is 1 + level*0.25 with the move-speed level clamped to [0,4].
func SpeedMultiplier(moveSpeedLevel int) float64 {
	return 1 + float64(clamp(moveSpeedLevel, 0, MaxMoveLevel))*0.25
}

// PlayerSpeedPxPerSec = BasePlayerSpeed * SpeedMultiplier(moveSpeedLevel).
func PlayerSpeedPxPerSec(moveSpeedLevel int) float64 {
	return BasePlayerSpeed * SpeedMultiplier(moveSpeedLevel)
}
