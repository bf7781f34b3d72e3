package grid

// Tile is an integer tile coordinate.
type Tile struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Add returns the tile offset by (dx, dy).
func (t Tile) Add(dx, dy int) Tile {
	return Tile{X: t.X + dx, Y: t.Y + dy}
}

// Manhattan returns the 4-directional tile distance between t and o.
func (t Tile) Manhattan(o Tile) int {
	dx := t.X - o.X
	dy := t.Y - o.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// TileSet is an unordered set of tiles.
type TileSet map[Tile]struct{}

// Has reports whether t is in the set.
func (s TileSet) Has(t Tile) bool {
	_, ok := s[t]
	return ok
}

// cardinal step deltas: up, right, down, left.
var stepDX = [4]int{0, 1, 0, -1}
var stepDY = [4]int{-1, 0, 1, 0}

// Grid is the static walkability matrix for one loaded map. Immutable after
// construction; safe to share between the movement, AI and path code.
type Grid struct {
	width  int
	height int
	border int    // inset rows/columns reserved at every edge
	walk   []bool // flat array [x*height + y], row-major by X
}

// New builds a grid by sampling walkable for every in-bounds coordinate.
// Tiles inside the inset border are never walkable regardless of terrain.
func New(width, height, border int, walkable func(x, y int) bool) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if border < 0 {
		border = 0
	}
	g := &Grid{
		width:  width,
		height: height,
		border: border,
		walk:   make([]bool, width*height),
	}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			if g.inside(x, y) && walkable(x, y) {
				g.walk[x*height+y] = true
			}
		}
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) inside(x, y int) bool {
	return x >= g.border && y >= g.border &&
		x < g.width-g.border && y < g.height-g.border
}

// IsWalkable reports whether (x, y) can be stood on. Out-of-range and
// border coordinates are simply not walkable.
func (g *Grid) IsWalkable(x, y int) bool {
	if g == nil || x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	return g.walk[x*g.height+y]
}

// Walkable is IsWalkable for a Tile.
func (g *Grid) Walkable(t Tile) bool {
	return g.IsWalkable(t.X, t.Y)
}

// ConnectedWalkable returns every walkable tile reachable from origin by
// 4-directional steps, origin included. A non-walkable origin yields an
// empty set.
func (g *Grid) ConnectedWalkable(origin Tile) TileSet {
	seen := make(TileSet)
	if !g.Walkable(origin) {
		return seen
	}
	seen[origin] = struct{}{}
	queue := []Tile{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := 0; d < 4; d++ {
			next := cur.Add(stepDX[d], stepDY[d])
			if seen.Has(next) || !g.Walkable(next) {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}
