package system

import "time"

// Phase defines execution ordering within a single frame tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: apply resolved network responses, read input
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: movement, monster AI, duel sync
	PhasePostUpdate              // 3: waves, regen, heartbeat
	PhaseCleanup                 // 4: drop finished entities
)

// System is the interface every frame-loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
