package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OperaAIBot/BoidsSimulation/pkg/geometry"
)

// Spawn-time agent parameters, matching the original arena population.
const (
	boidRadius     = 5.0
	predatorRadius = 7.0
	leaderRadius   = 6.0

	obstacleMinRadius = 10.0
	obstacleMaxRadius = 20.0

	predatorSpeedFactor = 1.2
	predatorForceFactor = 1.5
)

// State is the Stepper lifecycle state. Stopped is terminal.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrStopped is returned by control methods once the Stepper has been
	// stopped for good.
	ErrStopped = errors.New("simulation: stepper is stopped")
	// ErrPopulationChange is returned by Reconfigure when the new config
	// changes agent counts; populations are fixed for a run.
	ErrPopulationChange = errors.New("simulation: reconfiguration cannot change agent counts")
)

// AgentView is the read-only projection of an agent handed to renderers and
// the test harness.
type AgentView struct {
	ID     int
	Type   AgentType
	Pos    geometry.Vector2D
	Vel    geometry.Vector2D
	Radius float64
}

// Snapshot is a consistent copy of the simulation taken between frames.
type Snapshot struct {
	Frame   uint64
	State   State
	Agents  []AgentView
	Metrics FrameMetrics
}

// Stepper owns the authoritative agent list and the spatial grid, and runs
// the per-frame pipeline: staged-config swap, grid rebuild, neighbor
// queries, force computation, integration, boundary clamp, metrics.
//
// Concurrency: Step holds the write lock for a whole frame; Snapshot and
// the control methods take their own locks, so external readers only ever
// observe completed frames and control inputs take effect at frame
// boundaries.
type Stepper struct {
	mu sync.RWMutex

	cfg     *Config
	pending *Config // staged reconfiguration, swapped in at the next frame boundary

	agents  []*Agent
	grid    *SpatialGrid
	forces  []geometry.Vector2D
	scratch []*Agent

	metrics FrameMetrics
	fired   BehaviorSet
	frame   uint64
	state   State

	log *zap.Logger
}

// NewStepper validates the config, spawns the configured population from
// the config seed and returns an Idle stepper. Configuration errors surface
// here, before any frame runs.
func NewStepper(cfg *Config, log *zap.Logger) (*Stepper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Stepper{
		cfg:   cfg,
		grid:  NewSpatialGrid(cfg.GridCellSize),
		state: StateIdle,
		log:   log,
	}
	s.spawnAgents()
	s.forces = make([]geometry.Vector2D, len(s.agents))
	s.scratch = make([]*Agent, 0, 64)

	log.Info("simulation initialized",
		zap.Int("boids", cfg.BoidCount),
		zap.Int("predators", cfg.PredatorCount),
		zap.Int("obstacles", cfg.ObstacleCount),
		zap.Int("leaders", cfg.LeaderCount),
		zap.Float64("gridCellSize", cfg.GridCellSize),
		zap.Int64("seed", cfg.Seed),
	)
	return s, nil
}

// spawnAgents populates the arena deterministically from the config seed.
// IDs are assigned in spawn order: boids, predators, obstacles, leaders.
func (s *Stepper) spawnAgents() {
	rng := rand.New(rand.NewPCG(uint64(s.cfg.Seed), uint64(s.cfg.Seed)))
	cfg := s.cfg

	randPos := func() geometry.Vector2D {
		return geometry.Vector2D{
			X: rng.Float64() * cfg.ScreenWidth,
			Y: rng.Float64() * cfg.ScreenHeight,
		}
	}
	randVel := func(maxSpeed float64) geometry.Vector2D {
		speed := 1.0 + rng.Float64()*(maxSpeed-1.0)
		return geometry.NewVectorPolar(speed, rng.Float64()*2*math.Pi)
	}

	id := 0
	add := func(t AgentType, pos, vel geometry.Vector2D, radius, maxSpeed, maxForce float64) {
		s.agents = append(s.agents, &Agent{
			ID:       id,
			Type:     t,
			Pos:      pos,
			Vel:      vel,
			Radius:   radius,
			MaxSpeed: maxSpeed,
			MaxForce: maxForce,
		})
		id++
	}

	for i := 0; i < cfg.BoidCount; i++ {
		add(TypeBoid, randPos(), randVel(cfg.MaxSpeed), boidRadius, cfg.MaxSpeed, cfg.MaxForce)
	}
	for i := 0; i < cfg.PredatorCount; i++ {
		maxSpeed := cfg.MaxSpeed * predatorSpeedFactor
		add(TypePredator, randPos(), randVel(maxSpeed), predatorRadius, maxSpeed, cfg.MaxForce*predatorForceFactor)
	}
	for i := 0; i < cfg.ObstacleCount; i++ {
		radius := obstacleMinRadius + rng.Float64()*(obstacleMaxRadius-obstacleMinRadius)
		add(TypeObstacle, randPos(), geometry.Vector2D{}, radius, 0, 0)
	}
	for i := 0; i < cfg.LeaderCount; i++ {
		add(TypeLeader, randPos(), randVel(cfg.MaxSpeed), leaderRadius, cfg.MaxSpeed, cfg.MaxForce)
	}
}

// Start moves the stepper from Idle to Running.
func (s *Stepper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		s.state = StateRunning
		s.log.Info("simulation started")
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("simulation: cannot start from state %s", s.state)
	}
}

// Pause suspends frame advancement. Takes effect at the next frame
// boundary; a frame in flight always completes.
func (s *Stepper) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning:
		s.state = StatePaused
		s.log.Info("simulation paused", zap.Uint64("frame", s.frame))
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("simulation: cannot pause from state %s", s.state)
	}
}

// Resume continues a paused simulation.
func (s *Stepper) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePaused:
		s.state = StateRunning
		s.log.Info("simulation resumed", zap.Uint64("frame", s.frame))
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("simulation: cannot resume from state %s", s.state)
	}
}

// TogglePause flips between Running and Paused; a no-op in other states.
func (s *Stepper) TogglePause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning:
		s.state = StatePaused
	case StatePaused:
		s.state = StateRunning
	}
}

// Stop terminates the simulation. Terminal; every later control call
// returns ErrStopped.
func (s *Stepper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		s.state = StateStopped
		s.log.Info("simulation stopped", zap.Uint64("frames", s.frame))
	}
}

// State returns the current lifecycle state.
func (s *Stepper) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reconfigure stages a validated replacement config to be applied at the
// next frame boundary, so no frame ever observes a torn config. Population
// counts cannot change mid-run.
func (s *Stepper) Reconfigure(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return ErrStopped
	}
	if cfg.BoidCount != s.cfg.BoidCount ||
		cfg.PredatorCount != s.cfg.PredatorCount ||
		cfg.ObstacleCount != s.cfg.ObstacleCount ||
		cfg.LeaderCount != s.cfg.LeaderCount {
		return ErrPopulationChange
	}
	s.pending = cfg
	return nil
}

// SetSpeedMultiplier stages a speed change, applied at the next frame
// boundary like any other reconfiguration.
func (s *Stepper) SetSpeedMultiplier(v float64) error {
	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()
	cfg.SpeedMultiplier = v
	return s.Reconfigure(&cfg)
}

// Step advances the simulation by one frame of dt time units. Only the
// Running state advances; in every other state the call is a no-op. The
// speed multiplier scales the effective dt, not the call frequency, so a
// fixed dt sequence is reproducible regardless of real-time pacing.
//
// All forces are computed from the same pre-update position snapshot before
// any agent integrates, avoiding order-dependent bias.
func (s *Stepper) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	start := time.Now()

	if s.pending != nil {
		if s.pending.GridCellSize != s.cfg.GridCellSize {
			s.grid = NewSpatialGrid(s.pending.GridCellSize)
		}
		s.cfg = s.pending
		s.pending = nil
	}
	cfg := s.cfg
	effDt := dt * cfg.SpeedMultiplier

	s.metrics.Reset()
	s.grid.Rebuild(s.agents)

	// Phase 1: every steering force from the same unmutated snapshot.
	var fired BehaviorSet
	for i, a := range s.agents {
		if !a.Moves() {
			s.forces[i] = geometry.Vector2D{}
			continue
		}
		s.scratch = s.scratch[:0]
		s.scratch = s.grid.QueryRadius(a.Pos, cfg.queryRadius(a.Type), a.ID, s.scratch, &s.metrics)
		s.forces[i] = ComputeSteering(a, s.scratch, cfg, &fired)
	}

	// Phase 2: integrate and enforce the arena bound.
	for i, a := range s.agents {
		a.Integrate(s.forces[i], effDt)
		s.clampToArena(a)
	}

	s.fired.Merge(fired)
	if n := len(s.agents); n > 1 {
		s.metrics.ChecksAvoided = s.metrics.NeighborQueries*(n-1) - s.metrics.DistanceChecks
	}
	s.metrics.Duration = time.Since(start)
	s.frame++
}

// clampToArena is the last-resort invariant enforcer: soft boundary
// steering should keep agents inside, but after integration no position may
// lie outside the arena.
func (s *Stepper) clampToArena(a *Agent) {
	if a.Pos.X < 0 {
		a.Pos.X = 0
	} else if a.Pos.X > s.cfg.ScreenWidth {
		a.Pos.X = s.cfg.ScreenWidth
	}
	if a.Pos.Y < 0 {
		a.Pos.Y = 0
	} else if a.Pos.Y > s.cfg.ScreenHeight {
		a.Pos.Y = s.cfg.ScreenHeight
	}
}

// Snapshot returns a read-only copy of the agent list and the last frame's
// metrics. Safe to call from a renderer while the simulation runs; it never
// observes a frame mid-update.
func (s *Stepper) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Frame:   s.frame,
		State:   s.state,
		Agents:  make([]AgentView, len(s.agents)),
		Metrics: s.metrics,
	}
	for i, a := range s.agents {
		snap.Agents[i] = AgentView{
			ID:     a.ID,
			Type:   a.Type,
			Pos:    a.Pos,
			Vel:    a.Vel,
			Radius: a.Radius,
		}
	}
	return snap
}

// LastMetrics returns the metrics of the most recently completed frame.
func (s *Stepper) LastMetrics() FrameMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// BehaviorsFired returns the cumulative set of rule categories that have
// produced a non-zero steering contribution since the run began.
func (s *Stepper) BehaviorsFired() BehaviorSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fired
}

// Config returns the active configuration.
func (s *Stepper) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// Grid exposes the spatial grid for the visualization overlay. The overlay
// must only use it between frames, which the Snapshot locking discipline
// already guarantees for the renderer.
func (s *Stepper) Grid() *SpatialGrid {
	return s.grid
}
