package simulation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config_schema.json
var configSchema string

// Config is the validated, immutable-per-frame parameter set consumed at
// engine init and on live reconfiguration. It is never mutated mid-frame;
// the Stepper stages a replacement and swaps it at a frame boundary.
type Config struct {
	// Arena dimensions
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`

	// Population
	BoidCount     int `json:"boidCount"`
	PredatorCount int `json:"predatorCount"`
	ObstacleCount int `json:"obstacleCount"`
	LeaderCount   int `json:"leaderCount"`

	// Physics limits
	MaxSpeed float64 `json:"maxSpeed"`
	MaxForce float64 `json:"maxForce"`

	// Perception radii per behavior
	NeighborRadius        float64 `json:"neighborRadius"`        // alignment + cohesion
	DesiredSeparation     float64 `json:"desiredSeparation"`     // separation
	PredatorAvoidRadius   float64 `json:"predatorAvoidRadius"`   // evasion
	ObstacleAvoidRadius   float64 `json:"obstacleAvoidRadius"`   // avoidance
	LeaderInfluenceRadius float64 `json:"leaderInfluenceRadius"` // leader bias
	HuntRadius            float64 `json:"huntRadius"`            // predation

	// Spatial hash
	GridCellSize float64 `json:"gridCellSize"`

	// Boundary containment
	BoundaryMargin float64 `json:"boundaryMargin"`
	TurnFactor     float64 `json:"turnFactor"`

	// Pacing
	FpsTarget       int     `json:"fpsTarget"`
	SpeedMultiplier float64 `json:"speedMultiplier"`

	// Consumed only by the renderer
	VisualizeGrid bool `json:"visualizeGrid"`

	// Seed drives the initial agent placement; identical seeds give
	// bit-identical runs.
	Seed int64 `json:"seed"`

	// Auto-test report destination
	ScoreOutputFile string `json:"scoreOutputFile"`
}

// DefaultConfig returns the parameter set the original arena shipped with.
func DefaultConfig() *Config {
	return &Config{
		ScreenWidth:           1200,
		ScreenHeight:          800,
		BoidCount:             160,
		PredatorCount:         10,
		ObstacleCount:         20,
		LeaderCount:           10,
		MaxSpeed:              4.0,
		MaxForce:              0.1,
		NeighborRadius:        50,
		DesiredSeparation:     20,
		PredatorAvoidRadius:   80,
		ObstacleAvoidRadius:   40,
		LeaderInfluenceRadius: 100,
		HuntRadius:            120,
		GridCellSize:          80,
		BoundaryMargin:        100,
		TurnFactor:            0.2,
		FpsTarget:             60,
		SpeedMultiplier:       1.0,
		VisualizeGrid:         false,
		Seed:                  1,
		ScoreOutputFile:       "boids_simulation_score.json",
	}
}

// Validate fails fast on a parameter set no frame should ever run with.
// Invalid values are reported, never silently clamped.
func (c *Config) Validate() error {
	if c.BoidCount < 0 || c.PredatorCount < 0 || c.ObstacleCount < 0 || c.LeaderCount < 0 {
		return fmt.Errorf("config: agent counts must be non-negative (boids=%d predators=%d obstacles=%d leaders=%d)",
			c.BoidCount, c.PredatorCount, c.ObstacleCount, c.LeaderCount)
	}
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		return fmt.Errorf("config: arena bounds must be positive, got %gx%g", c.ScreenWidth, c.ScreenHeight)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("config: maxSpeed must be positive, got %g", c.MaxSpeed)
	}
	if c.MaxForce <= 0 {
		return fmt.Errorf("config: maxForce must be positive, got %g", c.MaxForce)
	}
	if c.GridCellSize <= 0 {
		return fmt.Errorf("config: gridCellSize must be positive, got %g", c.GridCellSize)
	}
	if c.SpeedMultiplier <= 0 {
		return fmt.Errorf("config: speedMultiplier must be positive, got %g", c.SpeedMultiplier)
	}
	for name, r := range map[string]float64{
		"neighborRadius":        c.NeighborRadius,
		"desiredSeparation":     c.DesiredSeparation,
		"predatorAvoidRadius":   c.PredatorAvoidRadius,
		"obstacleAvoidRadius":   c.ObstacleAvoidRadius,
		"leaderInfluenceRadius": c.LeaderInfluenceRadius,
		"huntRadius":            c.HuntRadius,
	} {
		if r <= 0 {
			return fmt.Errorf("config: %s must be positive, got %g", name, r)
		}
	}
	if c.BoundaryMargin <= 0 || c.TurnFactor <= 0 {
		return fmt.Errorf("config: boundaryMargin and turnFactor must be positive, got %g and %g",
			c.BoundaryMargin, c.TurnFactor)
	}
	if c.FpsTarget <= 0 {
		return fmt.Errorf("config: fpsTarget must be positive, got %d", c.FpsTarget)
	}
	return nil
}

// LoadConfig loads configuration from a JSON file, validates it against the
// embedded schema and layers it over the defaults, so fields a file omits
// keep their default value. Required fields missing from the file fail here,
// before any frame runs.
func LoadConfig(configFile string) (*Config, error) {
	sch, err := jsonschema.CompileString("config_schema.json", configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// queryRadius is the grid search radius for an agent of the given type: the
// largest perception radius any of its rules can need, so one query per
// agent per frame covers every behavior.
func (c *Config) queryRadius(t AgentType) float64 {
	if t == TypePredator {
		return c.HuntRadius
	}
	r := c.NeighborRadius
	if c.PredatorAvoidRadius > r {
		r = c.PredatorAvoidRadius
	}
	// Obstacle avoidance triggers inside avoidRadius + obstacle radius.
	if o := c.ObstacleAvoidRadius + obstacleMaxRadius; o > r {
		r = o
	}
	if t == TypeBoid && c.LeaderInfluenceRadius > r {
		r = c.LeaderInfluenceRadius
	}
	return r
}
