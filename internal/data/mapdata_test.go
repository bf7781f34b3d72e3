package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bowarena/client/internal/grid"
)

func TestLoadShippedMaps(t *testing.T) {
	table, err := LoadMapTable("../../data/yaml/arena_maps.yaml")
	if err != nil {
		t.Fatalf("LoadMapTable: %v", err)
	}
	if got := table.IDs(); len(got) != 3 || got[0] != "arena" || got[1] != "duel" || got[2] != "pit" {
		t.Fatalf("ids = %v", got)
	}
	m := table.Get("arena")
	if m.StartTile() != (grid.Tile{X: 2, Y: 2}) {
		t.Fatalf("start = %v", m.StartTile())
	}
	if len(m.SpawnPoints) != 3 {
		t.Fatalf("spawn points = %v", m.SpawnPoints)
	}
	g := m.Grid()
	if g.Width() != 20 || g.Height() != 12 {
		t.Fatalf("size = %dx%d", g.Width(), g.Height())
	}
	reach := g.ConnectedWalkable(m.StartTile())
	for _, sp := range m.SpawnPoints {
		if !reach.Has(sp) {
			t.Fatalf("spawn point %v unreachable from the start", sp)
		}
	}
	if kind := m.SpecialTiles()[grid.Tile{X: 10, Y: 1}]; kind != "shrine" {
		t.Fatalf("special tile kind = %q", kind)
	}
	if table.Get("missing") != nil {
		t.Fatal("unknown id returned a map")
	}
}

func TestShippedTileFileMap(t *testing.T) {
	table, err := LoadMapTable("../../data/yaml/arena_maps.yaml")
	if err != nil {
		t.Fatalf("LoadMapTable: %v", err)
	}
	m := table.Get("pit")
	if m == nil {
		t.Fatal("pit map missing")
	}
	g := m.Grid()
	if g.Width() != 16 || g.Height() != 10 {
		t.Fatalf("size = %dx%d", g.Width(), g.Height())
	}
	if g.Walkable(grid.Tile{X: 0, Y: 4}) || g.Walkable(grid.Tile{X: 5, Y: 3}) {
		t.Fatal("edge and pillar tiles should be blocked")
	}
	reach := g.ConnectedWalkable(m.StartTile())
	if len(m.SpawnPoints) != 3 {
		t.Fatalf("spawn points = %v", m.SpawnPoints)
	}
	for _, sp := range m.SpawnPoints {
		if !reach.Has(sp) {
			t.Fatalf("spawn point %v unreachable from the start", sp)
		}
	}
}

func TestParseTerrain(t *testing.T) {
	table, err := ParseMapTable([]byte(`
maps:
  - id: tiny
    rows:
      - "#####"
      - "#P,~#"
      - "#..M#"
      - "#####"
`), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := table.Get("tiny").Grid()
	tests := []struct {
		x, y int
		want bool
	}{
		{0, 0, false},
		{1, 1, true},  // start
		{2, 1, true},  // grass
		{3, 1, false}, // water
		{3, 2, true},  // spawn
		{9, 9, false}, // out of range
	}
	for _, tt := range tests {
		if got := g.IsWalkable(tt.x, tt.y); got != tt.want {
			t.Errorf("IsWalkable(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestParseRejectsBadMaps(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"ragged", "maps:\n  - id: a\n    rows: [\"P..\", \"..\"]\n", "width"},
		{"no start", "maps:\n  - id: a\n    rows: [\"...\"]\n", "no start"},
		{"start in wall", "maps:\n  - id: a\n    rows: [\".#.\"]\n    start: {x: 1, y: 0}\n", "not walkable"},
		{"unknown glyph", "maps:\n  - id: a\n    rows: [\"P?.\"]\n", "unknown terrain"},
		{"duplicate", "maps:\n  - id: a\n    rows: [\"P\"]\n  - id: a\n    rows: [\"P\"]\n", "duplicate"},
		{"no terrain", "maps:\n  - id: a\n", "no terrain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapTable([]byte(tt.yaml), "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTileFileMap(t *testing.T) {
	dir := t.TempDir()
	csv := "# flags per tile\n0,0,0,0\n0,3,1,0\n0,2,0x80,0\n0,0,0,0\n"
	if err := os.WriteFile(filepath.Join(dir, "pit.txt"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := ParseMapTable([]byte(`
maps:
  - id: pit
    tile_file: pit.txt
    width: 4
    height: 4
    start: {x: 1, y: 1}
`), dir)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := table.Get("pit").Grid()
	for _, tc := range []struct {
		tile grid.Tile
		want bool
	}{
		{grid.Tile{X: 1, Y: 1}, true},
		{grid.Tile{X: 2, Y: 1}, true},
		{grid.Tile{X: 1, Y: 2}, true},
		{grid.Tile{X: 2, Y: 2}, false}, // impassable bit
		{grid.Tile{X: 0, Y: 1}, false},
	} {
		if got := g.Walkable(tc.tile); got != tc.want {
			t.Errorf("Walkable(%v) = %v, want %v", tc.tile, got, tc.want)
		}
	}
}
