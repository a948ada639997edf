package simulation

import (
	"math"

	"github.com/OperaAIBot/BoidsSimulation/pkg/geometry"
)

type cellKey struct {
	x, y int
}

// SpatialGrid partitions the arena into uniform cells so that neighbor
// lookups only touch the buckets a query circle can overlap, instead of the
// whole population. It is rebuilt from scratch every frame; queries between
// rebuilds see a consistent snapshot of agent positions.
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey][]*Agent
}

// NewSpatialGrid creates an empty grid. cellSize must be positive; the
// Config validation enforces that before a grid is ever constructed.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]*Agent),
	}
}

// CellSize returns the configured cell width.
func (g *SpatialGrid) CellSize() float64 {
	return g.cellSize
}

// cellOf maps a position to its cell coordinate. math.Floor keeps the
// convention consistent for negative coordinates, so an agent exactly on a
// boundary always resolves to the lower-indexed cell.
func (g *SpatialGrid) cellOf(p geometry.Vector2D) cellKey {
	return cellKey{
		x: int(math.Floor(p.X / g.cellSize)),
		y: int(math.Floor(p.Y / g.cellSize)),
	}
}

// Rebuild clears the grid and re-inserts every agent keyed by its current
// position. Buckets are reset to length 0 but keep their capacity, so the
// underlying arrays are reused and steady-state rebuilds allocate nothing.
func (g *SpatialGrid) Rebuild(agents []*Agent) {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	for _, a := range agents {
		k := g.cellOf(a.Pos)
		g.cells[k] = append(g.cells[k], a)
	}
}

// QueryRadius appends to out every agent within radius of pos, excluding
// the agent with the given ID, and returns the extended slice. It scans the
// cell containing pos plus ceil(radius/cellSize) cells in each direction, so
// a true match just across a cell boundary is never missed. Candidates are
// confirmed by squared Euclidean distance.
//
// The result order is deterministic: cells are visited in coordinate order
// and buckets preserve insertion order; the cell map is only indexed, never
// ranged over. A query point outside the arena is valid and simply returns
// whatever neighbors exist.
func (g *SpatialGrid) QueryRadius(pos geometry.Vector2D, radius float64, excludeID int, out []*Agent, m *FrameMetrics) []*Agent {
	if m != nil {
		m.NeighborQueries++
	}

	center := g.cellOf(pos)
	reach := int(math.Ceil(radius / g.cellSize))
	radiusSq := radius * radius

	for cx := center.x - reach; cx <= center.x+reach; cx++ {
		for cy := center.y - reach; cy <= center.y+reach; cy++ {
			bucket, ok := g.cells[cellKey{x: cx, y: cy}]
			if !ok {
				continue
			}
			for _, a := range bucket {
				if a.ID == excludeID {
					continue
				}
				if m != nil {
					m.DistanceChecks++
				}
				if a.Pos.DistanceSquaredTo(pos) <= radiusSq {
					out = append(out, a)
				}
			}
		}
	}
	return out
}

// OccupiedCells calls fn for every non-empty cell with its coordinate and
// occupancy. Iteration order is the map's and therefore unspecified; this
// is only used by the grid visualization overlay.
func (g *SpatialGrid) OccupiedCells(fn func(x, y, count int)) {
	for k, bucket := range g.cells {
		if len(bucket) > 0 {
			fn(k.x, k.y, len(bucket))
		}
	}
}
