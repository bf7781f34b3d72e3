package system

import (
	"time"

	coresys "github.com/bowarena/client/internal/core/system"
	gonet "github.com/bowarena/client/internal/net"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
)

// HeartbeatSystem pings the server at a fixed interval while a run is live.
// Fire-and-forget: failures are only logged by the queue. Phase 3.
type HeartbeatSystem struct {
	world    *world.State
	queue    *gonet.Queue
	api      ArenaAPI
	interval time.Duration
	next     time.Time
}

func NewHeartbeatSystem(ws *world.State, q *gonet.Queue, api ArenaAPI) *HeartbeatSystem {
	return &HeartbeatSystem{
		world:    ws,
		queue:    q,
		api:      api,
		interval: HeartbeatInterval,
		next:     ws.Now.Add(HeartbeatInterval),
	}
}

func (s *HeartbeatSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *HeartbeatSystem) Update(_ time.Duration) {
	if s.world.Ended || s.world.Wave.Phase.Terminal() || s.world.Now.Before(s.next) {
		return
	}
	s.next = s.world.Now.Add(s.interval)
	gonet.Submit[*proto.PingResponse](s.queue, "ping", s.api.Ping, nil)
}
