package grid

// BFSPath returns the shortest 4-directional path from -> to, excluding from
// and ending at to. The result is empty when to is unreachable or when
// from == to.
func (g *Grid) BFSPath(from, to Tile) []Tile {
	return g.bfs(from, to, 0)
}

// BFSPathForMonster is BFSPath with the neighbour visitation order rotated by
// seed mod 4. Every seed still yields a shortest path; different seeds break
// ties differently so monsters chasing the same tile spread out.
func (g *Grid) BFSPathForMonster(from, to Tile, seed int) []Tile {
	rot := seed % 4
	if rot < 0 {
		rot += 4
	}
	return g.bfs(from, to, rot)
}

func (g *Grid) bfs(from, to Tile, rot int) []Tile {
	if from == to || !g.Walkable(to) {
		return nil
	}
	// The start tile is allowed to be non-walkable (a monster may stand on
	// a tile edge mid-step); only expansion is restricted to walkable tiles.
	parent := map[Tile]Tile{from: from}
	queue := []Tile{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := 0; i < 4; i++ {
			d := (i + rot) % 4
			next := cur.Add(stepDX[d], stepDY[d])
			if _, seen := parent[next]; seen || !g.Walkable(next) {
				continue
			}
			parent[next] = cur
			if next == to {
				return unwind(parent, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func unwind(parent map[Tile]Tile, from, to Tile) []Tile {
	var rev []Tile
	for cur := to; cur != from; cur = parent[cur] {
		rev = append(rev, cur)
	}
	path := make([]Tile, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}
