package system

import (
	"time"

	"github.com/bowarena/client/internal/core/event"
	coresys "github.com/bowarena/client/internal/core/system"
	"github.com/bowarena/client/internal/world"
)

// CleanupSystem drops monsters whose fade has finished from the active set
// at tick end. Phase 4 (Cleanup).
type CleanupSystem struct {
	world *world.State
	bus   *event.Bus
}

func NewCleanupSystem(ws *world.State, bus *event.Bus) *CleanupSystem {
	return &CleanupSystem{world: ws, bus: bus}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	for _, m := range s.world.RemoveFinished() {
		event.Emit(s.bus, event.MonsterRemoved{Wave: m.Wave, Index: m.Index})
	}
}
