package system

import (
	"errors"
	"testing"
	"time"

	"github.com/bowarena/client/internal/core/event"
	"github.com/bowarena/client/internal/grid"
	"github.com/bowarena/client/internal/net/proto"
	"github.com/bowarena/client/internal/world"
)

type moveHarness struct {
	ws  *world.State
	bus *event.Bus
	mv  *MovementSystem
	rec *recorder
}

// rows: '.' walkable, '#' wall.
func newMoveHarness(t *testing.T, rows []string, speedLevel int) *moveHarness {
	t.Helper()
	g := grid.New(len(rows[0]), len(rows), 0, func(x, y int) bool { return rows[y][x] == '.' })
	ws := world.NewState(g, t0, 1)
	ws.Player = world.NewPlayer(proto.Character{Level: 1, CurrentHP: 100, MoveSpeedLevel: speedLevel})
	ws.Player.PlaceAt(grid.Tile{X: 1, Y: 1})
	bus := event.NewBus()
	h := &moveHarness{ws: ws, bus: bus, mv: NewMovementSystem(ws, bus), rec: record(bus)}
	return h
}

func (h *moveHarness) advance(d time.Duration) {
	const step = 10 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		h.ws.Advance(step)
		h.mv.Update(step)
	}
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
}

var room = []string{
	"#######",
	"#.....#",
	"#..#..#",
	"#.....#",
	"#######",
}

func TestTryMoveRejections(t *testing.T) {
	h := newMoveHarness(t, room, 0)
	tests := []struct {
		dx, dy int
		want   error
	}{
		{0, 0, ErrBadStep},
		{1, 1, ErrBadStep},
		{2, 0, ErrBadStep},
		{-1, 0, ErrBlocked},
		{0, -1, ErrBlocked},
	}
	for _, tt := range tests {
		if err := h.mv.TryMove(tt.dx, tt.dy, nil); !errors.Is(err, tt.want) {
			t.Errorf("TryMove(%d,%d) = %v, want %v", tt.dx, tt.dy, err, tt.want)
		}
	}
	if h.mv.IsMoving() {
		t.Fatal("rejected moves must not start a tween")
	}

	if err := h.mv.TryMove(1, 0, nil); err != nil {
		t.Fatalf("TryMove right: %v", err)
	}
	if err := h.mv.TryMove(0, 1, nil); !errors.Is(err, ErrMoving) {
		t.Fatalf("second move while moving: %v", err)
	}
}

func TestStepUpdatesTileImmediately(t *testing.T) {
	h := newMoveHarness(t, room, 0)
	start := h.ws.Player.Pos
	done := 0
	if err := h.mv.TryMove(1, 0, func() { done++ }); err != nil {
		t.Fatalf("TryMove: %v", err)
	}
	if h.ws.Player.Tile != (grid.Tile{X: 2, Y: 1}) {
		t.Fatalf("tile = %v, want (2,1) right away", h.ws.Player.Tile)
	}
	if h.ws.Player.Facing != proto.FacingRight {
		t.Fatalf("facing = %v", h.ws.Player.Facing)
	}

	h.advance(120 * time.Millisecond)
	mid := start.X + 16
	if got := h.ws.Player.Pos.X; got < mid-1 || got > mid+1 {
		t.Fatalf("halfway x = %.1f, want ~%.1f", got, mid)
	}
	if done != 0 || !h.mv.IsMoving() {
		t.Fatal("step finished early")
	}
	h.advance(120 * time.Millisecond)
	if h.mv.IsMoving() || done != 1 {
		t.Fatalf("moving=%v done=%d after 240ms", h.mv.IsMoving(), done)
	}
	if h.ws.Player.Pos != world.TileCenter(grid.Tile{X: 2, Y: 1}) {
		t.Fatalf("pos = %+v, not snapped to the tile centre", h.ws.Player.Pos)
	}
	if len(h.rec.arrived) != 1 {
		t.Fatalf("arrived events = %d, want 1", len(h.rec.arrived))
	}
}

func TestStepDurationScalesWithMoveSpeed(t *testing.T) {
	h := newMoveHarness(t, room, 4)
	if d := h.mv.StepDuration(); d != 120*time.Millisecond {
		t.Fatalf("step duration = %v, want 120ms", d)
	}
}

func TestFollowPathArrivesOnce(t *testing.T) {
	h := newMoveHarness(t, room, 0)
	h.mv.Special = map[grid.Tile]string{{X: 5, Y: 3}: "door"}
	path := h.ws.Grid.BFSPath(h.ws.Player.Tile, grid.Tile{X: 5, Y: 3})
	if len(path) != 6 {
		t.Fatalf("path length = %d, want 6", len(path))
	}
	h.mv.FollowPath(path)

	h.advance(5 * 240 * time.Millisecond)
	if len(h.rec.arrived) != 0 {
		t.Fatal("arrived fired while the path was still queued")
	}
	h.advance(250 * time.Millisecond)
	if h.ws.Player.Tile != (grid.Tile{X: 5, Y: 3}) || h.mv.IsMoving() {
		t.Fatalf("tile = %v moving=%v", h.ws.Player.Tile, h.mv.IsMoving())
	}
	if len(h.rec.arrived) != 1 || h.rec.arrived[0].Special != "door" {
		t.Fatalf("arrived = %+v", h.rec.arrived)
	}
}

func TestManualStepCancelsQueuedPath(t *testing.T) {
	h := newMoveHarness(t, room, 0)
	h.mv.FollowPath(h.ws.Grid.BFSPath(h.ws.Player.Tile, grid.Tile{X: 5, Y: 1}))
	h.advance(100 * time.Millisecond)

	if err := h.mv.Step(0, 1); !errors.Is(err, ErrMoving) {
		t.Fatalf("Step mid-tween = %v, want ErrMoving", err)
	}
	if h.mv.QueuedSteps() != 0 {
		t.Fatalf("queue not cancelled: %d steps left", h.mv.QueuedSteps())
	}
	h.advance(time.Second)
	if h.ws.Player.Tile != (grid.Tile{X: 2, Y: 1}) {
		t.Fatalf("kept walking the cancelled path: %v", h.ws.Player.Tile)
	}
}
