package system

import (
	"time"

	coresys "github.com/bowarena/client/internal/core/system"
	gonet "github.com/bowarena/client/internal/net"
)

// InputSystem applies resolved network responses on the loop goroutine,
// capped per tick. Phase 0 (Input).
type InputSystem struct {
	queue      *gonet.Queue
	maxPerTick int
}

func NewInputSystem(q *gonet.Queue, maxPerTick int) *InputSystem {
	return &InputSystem{queue: q, maxPerTick: maxPerTick}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.queue.Drain(s.maxPerTick)
}
