package simulation

import (
	"math/rand/v2"
	"testing"

	"github.com/OperaAIBot/BoidsSimulation/pkg/geometry"
)

func gridAgent(id int, x, y float64) *Agent {
	return &Agent{ID: id, Type: TypeBoid, Pos: geometry.Vector2D{X: x, Y: y}}
}

func containsID(list []*Agent, id int) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}

func TestSpatialGrid_Rebuild(t *testing.T) {
	// 1. Setup: cell size 100
	g := NewSpatialGrid(100)
	agents := []*Agent{
		gridAgent(1, 50, 50),    // cell 0,0
		gridAgent(2, 150, 50),   // cell 1,0
		gridAgent(3, 50, 150),   // cell 0,1
		gridAgent(4, 250, 250),  // cell 2,2
		gridAgent(5, -10, -10),  // cell -1,-1 (floor, not truncate)
		gridAgent(6, 100, 100),  // exact boundary resolves to cell 1,1
	}

	// 2. Execute
	g.Rebuild(agents)

	// 3. Verify placement
	cases := []struct {
		id   int
		cell cellKey
	}{
		{1, cellKey{0, 0}},
		{2, cellKey{1, 0}},
		{3, cellKey{0, 1}},
		{4, cellKey{2, 2}},
		{5, cellKey{-1, -1}},
		{6, cellKey{1, 1}},
	}
	for _, c := range cases {
		if !containsID(g.cells[c.cell], c.id) {
			t.Errorf("Expected agent %d in cell %v, got %v", c.id, c.cell, g.cells[c.cell])
		}
	}
	if containsID(g.cells[cellKey{0, 0}], 2) {
		t.Error("Did not expect agent 2 in cell 0,0")
	}

	// Rebuild must drop stale entries
	g.Rebuild(agents[:1])
	if containsID(g.cells[cellKey{1, 0}], 2) {
		t.Error("Rebuild kept an agent that is no longer in the list")
	}
}

func TestSpatialGrid_QueryRadius_CellBoundary(t *testing.T) {
	// Two agents 0.2 apart, straddling the boundary between cells 0 and 1.
	// A naive single-cell lookup would miss the neighbor.
	g := NewSpatialGrid(10)
	a := gridAgent(1, 9.9, 5)
	b := gridAgent(2, 10.1, 5)
	g.Rebuild([]*Agent{a, b})

	result := g.QueryRadius(a.Pos, 1.0, a.ID, nil, nil)
	if !containsID(result, 2) {
		t.Errorf("Expected neighbor across the cell boundary, got %v", result)
	}
}

func TestSpatialGrid_QueryRadius_ExcludesSelf(t *testing.T) {
	g := NewSpatialGrid(50)
	a := gridAgent(1, 25, 25)
	b := gridAgent(2, 30, 25)
	g.Rebuild([]*Agent{a, b})

	result := g.QueryRadius(a.Pos, 20, a.ID, nil, nil)
	if containsID(result, 1) {
		t.Error("Query must not return the querying agent")
	}
	if !containsID(result, 2) {
		t.Error("Expected agent 2 within radius")
	}
}

func TestSpatialGrid_QueryRadius_OutsideArena(t *testing.T) {
	g := NewSpatialGrid(50)
	a := gridAgent(1, 10, 10)
	g.Rebuild([]*Agent{a})

	// Query point far outside any occupied cell: valid, just empty.
	result := g.QueryRadius(geometry.Vector2D{X: -500, Y: -500}, 30, -1, nil, nil)
	if len(result) != 0 {
		t.Errorf("Expected no neighbors, got %v", result)
	}

	// Query point outside but within radius of an agent near the edge.
	result = g.QueryRadius(geometry.Vector2D{X: -5, Y: 10}, 20, -1, nil, nil)
	if !containsID(result, 1) {
		t.Errorf("Expected agent 1 near out-of-bounds query point, got %v", result)
	}
}

func TestSpatialGrid_QueryRadius_MatchesBruteForce(t *testing.T) {
	// Property check against the all-pairs answer, over mixed cell sizes and
	// radii, including radius > cellSize.
	rng := rand.New(rand.NewPCG(42, 42))
	for _, cellSize := range []float64{10, 35, 80} {
		g := NewSpatialGrid(cellSize)
		agents := make([]*Agent, 200)
		for i := range agents {
			agents[i] = gridAgent(i, rng.Float64()*1000-100, rng.Float64()*1000-100)
		}
		g.Rebuild(agents)

		for q := 0; q < 20; q++ {
			pos := geometry.Vector2D{X: rng.Float64() * 800, Y: rng.Float64() * 800}
			radius := 5 + rng.Float64()*150

			got := g.QueryRadius(pos, radius, -1, nil, nil)
			want := 0
			for _, a := range agents {
				if a.Pos.DistanceSquaredTo(pos) <= radius*radius {
					want++
				}
			}
			if len(got) != want {
				t.Errorf("cellSize=%g radius=%g: grid found %d neighbors, brute force found %d",
					cellSize, radius, len(got), want)
			}
		}
	}
}

func TestSpatialGrid_QueryRadius_Metrics(t *testing.T) {
	g := NewSpatialGrid(100)
	agents := []*Agent{
		gridAgent(1, 50, 50),
		gridAgent(2, 60, 50),
		gridAgent(3, 950, 950), // far away, different cell block
	}
	g.Rebuild(agents)

	var m FrameMetrics
	g.QueryRadius(agents[0].Pos, 30, agents[0].ID, nil, &m)

	if m.NeighborQueries != 1 {
		t.Errorf("Expected 1 query counted, got %d", m.NeighborQueries)
	}
	// Agent 3's cell is never scanned, so only agent 2 is distance-checked.
	if m.DistanceChecks != 1 {
		t.Errorf("Expected 1 distance check (far agent pruned), got %d", m.DistanceChecks)
	}
}

func TestSpatialGrid_Rebuild_ReusesBuckets(t *testing.T) {
	g := NewSpatialGrid(100)
	agents := []*Agent{gridAgent(1, 50, 50), gridAgent(2, 60, 60)}
	g.Rebuild(agents)
	if len(g.cells[cellKey{0, 0}]) != 2 {
		t.Fatalf("Expected 2 agents in cell 0,0, got %d", len(g.cells[cellKey{0, 0}]))
	}

	// Second rebuild with the same occupancy must not grow the bucket.
	g.Rebuild(agents)
	if len(g.cells[cellKey{0, 0}]) != 2 {
		t.Errorf("Rebuild duplicated entries: %d in cell 0,0", len(g.cells[cellKey{0, 0}]))
	}
}

func BenchmarkSpatialGrid_Rebuild(b *testing.B) {
	g := NewSpatialGrid(80)
	rng := rand.New(rand.NewPCG(1, 1))
	agents := make([]*Agent, 1000)
	for i := range agents {
		agents[i] = gridAgent(i, rng.Float64()*1200, rng.Float64()*800)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild(agents)
	}
}

func BenchmarkSpatialGrid_QueryRadius(b *testing.B) {
	g := NewSpatialGrid(80)
	rng := rand.New(rand.NewPCG(1, 1))
	agents := make([]*Agent, 1000)
	for i := range agents {
		agents[i] = gridAgent(i, rng.Float64()*1200, rng.Float64()*800)
	}
	g.Rebuild(agents)

	pos := geometry.Vector2D{X: 600, Y: 400}
	out := make([]*Agent, 0, 64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out = g.QueryRadius(pos, 100, -1, out[:0], nil)
	}
}
