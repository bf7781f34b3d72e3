// Package data loads the static arena map tables.
package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bowarena/client/internal/grid"
	"gopkg.in/yaml.v3"
)

// Terrain glyphs used in inline map rows.
const (
	glyphFloor = '.'
	glyphGrass = ','
	glyphWall  = '#'
	glyphWater = '~'
	glyphStart = 'P' // floor, player start
	glyphSpawn = 'M' // floor, monster spawn point
)

// Tile flag bits in CSV tile files. A tile is walkable when it has at least
// one passable bit and no impassable bit.
const (
	tilePassableEast  byte = 0x01
	tilePassableNorth byte = 0x02
	tileImpassable    byte = 0x80
)

// SpecialTile tags a tile with a gameplay marker (door, shrine, ...).
type SpecialTile struct {
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
	Kind string `yaml:"kind"`
}

// ArenaMap is one playable map: terrain plus the tiles the session needs.
type ArenaMap struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Border      int           `yaml:"border"`
	Rows        []string      `yaml:"rows"`
	TileFile    string        `yaml:"tile_file"` // CSV alternative to rows
	Width       int           `yaml:"width"`     // tile_file only
	Height      int           `yaml:"height"`    // tile_file only
	Start       *grid.Tile    `yaml:"start"`
	SpawnPoints []grid.Tile   `yaml:"spawn_points"`
	Special     []SpecialTile `yaml:"special"`

	grid  *grid.Grid
	start grid.Tile
}

// Grid returns the walkability grid built at load time.
func (m *ArenaMap) Grid() *grid.Grid { return m.grid }

// StartTile returns the player's start tile.
func (m *ArenaMap) StartTile() grid.Tile { return m.start }

// SpecialTiles returns the special tiles keyed by position.
func (m *ArenaMap) SpecialTiles() map[grid.Tile]string {
	if len(m.Special) == 0 {
		return nil
	}
	out := make(map[grid.Tile]string, len(m.Special))
	for _, s := range m.Special {
		out[grid.Tile{X: s.X, Y: s.Y}] = s.Kind
	}
	return out
}

// MapTable provides arena map lookups by id.
type MapTable struct {
	maps  map[string]*ArenaMap
	order []string
}

type mapListFile struct {
	Maps []*ArenaMap `yaml:"maps"`
}

// LoadMapTable loads arena_maps.yaml. Relative tile_file paths resolve
// against the YAML file's directory.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	return ParseMapTable(raw, filepath.Dir(path))
}

// ParseMapTable builds a table from YAML. dir is used for tile files.
func ParseMapTable(raw []byte, dir string) (*MapTable, error) {
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	t := &MapTable{maps: make(map[string]*ArenaMap, len(file.Maps))}
	for _, m := range file.Maps {
		if m.ID == "" {
			return nil, fmt.Errorf("map %q: missing id", m.Name)
		}
		if _, dup := t.maps[m.ID]; dup {
			return nil, fmt.Errorf("map %s: duplicate id", m.ID)
		}
		if err := m.build(dir); err != nil {
			return nil, fmt.Errorf("map %s: %w", m.ID, err)
		}
		t.maps[m.ID] = m
		t.order = append(t.order, m.ID)
	}
	return t, nil
}

// Get returns the map with the given id, or nil if not found.
func (t *MapTable) Get(id string) *ArenaMap {
	return t.maps[id]
}

// IDs returns the map ids in file order.
func (t *MapTable) IDs() []string {
	return append([]string(nil), t.order...)
}

// Count returns the number of maps loaded.
func (t *MapTable) Count() int {
	return len(t.maps)
}

func (m *ArenaMap) build(dir string) error {
	var (
		walk   func(x, y int) bool
		starts []grid.Tile
		spawns []grid.Tile
	)
	switch {
	case len(m.Rows) > 0:
		m.Height = len(m.Rows)
		m.Width = len(m.Rows[0])
		for y, row := range m.Rows {
			if len(row) != m.Width {
				return fmt.Errorf("row %d has width %d, want %d", y, len(row), m.Width)
			}
			for x, c := range []byte(row) {
				switch c {
				case glyphStart:
					starts = append(starts, grid.Tile{X: x, Y: y})
				case glyphSpawn:
					spawns = append(spawns, grid.Tile{X: x, Y: y})
				case glyphFloor, glyphGrass, glyphWall, glyphWater:
				default:
					return fmt.Errorf("row %d: unknown terrain %q at column %d", y, c, x)
				}
			}
		}
		rows := m.Rows
		walk = func(x, y int) bool {
			switch rows[y][x] {
			case glyphWall, glyphWater:
				return false
			}
			return true
		}
	case m.TileFile != "":
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("tile_file needs width and height")
		}
		path := m.TileFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		tiles, err := loadTileFile(path, m.Width, m.Height)
		if err != nil {
			return err
		}
		h := m.Height
		walk = func(x, y int) bool {
			b := tiles[x*h+y]
			return b&tileImpassable == 0 && b&(tilePassableEast|tilePassableNorth) != 0
		}
	default:
		return fmt.Errorf("no terrain: set rows or tile_file")
	}

	m.grid = grid.New(m.Width, m.Height, m.Border, walk)

	switch {
	case m.Start != nil:
		m.start = *m.Start
	case len(starts) == 1:
		m.start = starts[0]
	case len(starts) > 1:
		return fmt.Errorf("%d start glyphs, want one", len(starts))
	default:
		return fmt.Errorf("no start tile")
	}
	if !m.grid.Walkable(m.start) {
		return fmt.Errorf("start %v is not walkable", m.start)
	}

	m.SpawnPoints = append(m.SpawnPoints, spawns...)
	for _, sp := range m.SpawnPoints {
		if !m.grid.Walkable(sp) {
			return fmt.Errorf("spawn point %v is not walkable", sp)
		}
	}
	return nil
}

// loadTileFile reads a CSV tile file: one line per row of comma-separated
// flag bytes. Blank lines and lines starting with '#' are skipped.
func loadTileFile(path string, xSize, ySize int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tile file: %w", err)
	}
	defer f.Close()

	tiles := make([]byte, xSize*ySize) // [x*ySize + y]

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	y := 0
	for scanner.Scan() && y < ySize {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		x := 0
		for _, tok := range strings.Split(line, ",") {
			if x >= xSize {
				break
			}
			val, err := strconv.ParseUint(strings.TrimSpace(tok), 0, 8)
			if err != nil {
				return nil, fmt.Errorf("tile file %s row %d col %d: %w", filepath.Base(path), y, x, err)
			}
			tiles[x*ySize+y] = byte(val)
			x++
		}
		y++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tile file: %w", err)
	}
	if y < ySize {
		return nil, fmt.Errorf("tile file %s: %d rows, want %d", filepath.Base(path), y, ySize)
	}
	return tiles, nil
}
