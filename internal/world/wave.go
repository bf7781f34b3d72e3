package world

import (
	"time"

	"github.com/bowarena/client/internal/net/proto"
)

// WavePhase is the wave director's state.
type WavePhase int

const (
	WaveFight WavePhase = iota
	WavePause
	WaveVictory
	WaveDefeat
)

func (p WavePhase) String() string {
	switch p {
	case WaveFight:
		return "fight"
	case WavePause:
		return "next_wave_pause"
	case WaveVictory:
		return "victory"
	case WaveDefeat:
		return "defeat"
	}
	return "unknown"
}

// Terminal reports whether the run has an outcome.
func (p WavePhase) Terminal() bool {
	return p == WaveVictory || p == WaveDefeat
}

// WaveState tracks one arena run's wave progression.
type WaveState struct {
	Phase WavePhase
	Index int // current 0-based wave
	Total int

	Roster        []proto.MonsterStats // stat list for the current wave, by server index
	Spawned       int
	SpawnInterval time.Duration
	NextSpawnAt   time.Time

	NextWaveAt       time.Time
	NextWaveInFlight bool
	NextRoster       []proto.MonsterStats // next wave's list once the server sent it

	OutcomeAt      time.Time
	OutcomeEmitted bool
	XPGained       int
	CooldownUntil  time.Time
}

// ToSpawn is the number of monsters in the current wave.
func (w *WaveState) ToSpawn() int { return len(w.Roster) }

// AllSpawned reports whether every monster of the wave has been spawned.
func (w *WaveState) AllSpawned() bool { return w.Spawned >= len(w.Roster) }
