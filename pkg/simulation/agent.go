package simulation

import (
	"github.com/OperaAIBot/BoidsSimulation/pkg/geometry"
)

// AgentType is the closed set of agent kinds in the arena.
type AgentType int

const (
	TypeBoid AgentType = iota
	TypePredator
	TypeObstacle
	TypeLeader
)

// String implements fmt.Stringer.
func (t AgentType) String() string {
	switch t {
	case TypeBoid:
		return "boid"
	case TypePredator:
		return "predator"
	case TypeObstacle:
		return "obstacle"
	case TypeLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Agent is a single simulated entity. The ID is unique and stable for the
// agent's lifetime; speed and force limits are per-agent because predators
// run faster and push harder than ordinary boids.
type Agent struct {
	ID       int
	Type     AgentType
	Pos      geometry.Vector2D
	Vel      geometry.Vector2D
	Radius   float64
	MaxSpeed float64
	MaxForce float64
}

// Moves reports whether the agent is subject to forces at all.
func (a *Agent) Moves() bool {
	return a.Type != TypeObstacle
}

// Integrate applies the steering force over dt: the force is clamped to
// MaxForce, added to the velocity, the velocity is clamped to MaxSpeed and
// the position advances by velocity*dt. Obstacles are immovable and ignore
// all forces.
func (a *Agent) Integrate(force geometry.Vector2D, dt float64) {
	if !a.Moves() {
		return
	}
	force = force.Limit(a.MaxForce)
	a.Vel = a.Vel.Add(force.Mul(dt)).Limit(a.MaxSpeed)
	a.Pos = a.Pos.Add(a.Vel.Mul(dt))
}
