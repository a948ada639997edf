package simulation

import (
	"github.com/OperaAIBot/BoidsSimulation/pkg/geometry"
)

// Rule weights. Their relative size fixes which rule wins when the summed
// force is clamped to MaxForce: evasion > avoidance > separation >
// alignment/cohesion.
const (
	separationWeight    = 1.5
	alignmentWeight     = 1.0
	cohesionWeight      = 1.0
	avoidanceWeight     = 2.0
	evasionWeight       = 3.0
	leaderWeight        = 1.5
	leaderCohesionBoost = 1.5
)

// isFlockmate reports whether an agent participates in the flocking rules.
// Leaders are boid variants and flock with ordinary boids.
func isFlockmate(t AgentType) bool {
	return t == TypeBoid || t == TypeLeader
}

// ComputeSteering turns an agent and its neighbor set into a single net
// steering force, switching exhaustively on the agent type. Obstacles ignore
// all forces. fired, when non-nil, records which rule categories produced a
// non-zero contribution.
func ComputeSteering(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	switch a.Type {
	case TypeObstacle:
		return geometry.Vector2D{}

	case TypePredator:
		force := hunt(a, neighbors, cfg, fired)
		force = force.Add(boundarySteer(a, cfg, fired))
		return force.Limit(a.MaxForce)

	default: // TypeBoid, TypeLeader
		force := separation(a, neighbors, cfg, fired).Mul(separationWeight)
		force = force.Add(alignment(a, neighbors, cfg, fired).Mul(alignmentWeight))

		coh := cohesionWeight
		if a.Type == TypeLeader {
			coh *= leaderCohesionBoost
		}
		force = force.Add(cohesion(a, neighbors, cfg, fired).Mul(coh))

		force = force.Add(avoidObstacles(a, neighbors, cfg, fired).Mul(avoidanceWeight))
		force = force.Add(evadePredators(a, neighbors, cfg, fired).Mul(evasionWeight))
		if a.Type == TypeBoid {
			force = force.Add(leaderInfluence(a, neighbors, cfg, fired).Mul(leaderWeight))
		}
		force = force.Add(boundarySteer(a, cfg, fired))
		return force.Limit(a.MaxForce)
	}
}

// seek is the classic Reynolds steering force toward a target: desired
// velocity at full speed minus current velocity, clamped to MaxForce.
func seek(a *Agent, target geometry.Vector2D) geometry.Vector2D {
	offset := target.Sub(a.Pos)
	if offset.LenSqr() < geometry.Epsilon {
		return geometry.Vector2D{}
	}
	desired := offset.ScaleTo(a.MaxSpeed)
	return desired.Sub(a.Vel).Limit(a.MaxForce)
}

// separation pushes away from flockmates strictly closer than the
// separation radius. Each term is the offset divided by the squared
// distance, so closer neighbors push harder. A coincident neighbor (d == 0)
// contributes nothing.
func separation(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var steer geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		if !isFlockmate(n.Type) {
			continue
		}
		dSq := a.Pos.DistanceSquaredTo(n.Pos)
		if dSq <= 0 || dSq >= cfg.DesiredSeparation*cfg.DesiredSeparation {
			continue
		}
		steer = steer.Add(a.Pos.Sub(n.Pos).Mul(1 / dSq))
		count++
	}
	if count == 0 {
		return geometry.Vector2D{}
	}
	steer = steer.Mul(1 / float64(count))
	if steer.LenSqr() < geometry.Epsilon {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.Separation = true
	}
	return steer.ScaleTo(a.MaxSpeed).Sub(a.Vel).Limit(a.MaxForce)
}

// alignment steers toward the average velocity of flockmates within the
// neighbor radius.
func alignment(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var sum geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		if !isFlockmate(n.Type) {
			continue
		}
		dSq := a.Pos.DistanceSquaredTo(n.Pos)
		if dSq <= 0 || dSq >= cfg.NeighborRadius*cfg.NeighborRadius {
			continue
		}
		sum = sum.Add(n.Vel)
		count++
	}
	if count == 0 {
		return geometry.Vector2D{}
	}
	avg := sum.Mul(1 / float64(count))
	if avg.LenSqr() < geometry.Epsilon {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.Alignment = true
	}
	return avg.ScaleTo(a.MaxSpeed).Sub(a.Vel).Limit(a.MaxForce)
}

// cohesion steers toward the centroid of flockmates within the neighbor
// radius.
func cohesion(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var sum geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		if !isFlockmate(n.Type) {
			continue
		}
		dSq := a.Pos.DistanceSquaredTo(n.Pos)
		if dSq <= 0 || dSq >= cfg.NeighborRadius*cfg.NeighborRadius {
			continue
		}
		sum = sum.Add(n.Pos)
		count++
	}
	if count == 0 {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.Cohesion = true
	}
	centroid := sum.Mul(1 / float64(count))
	return seek(a, centroid)
}

// avoidObstacles produces a strong repulsion from every obstacle whose
// surface is within the avoidance radius, approximating a hard boundary.
// The clamp allows up to twice MaxForce so avoidance outranks separation.
func avoidObstacles(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var steer geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		if n.Type != TypeObstacle {
			continue
		}
		d := a.Pos.DistanceTo(n.Pos)
		if d <= 0 || d >= cfg.ObstacleAvoidRadius+n.Radius {
			continue
		}
		steer = steer.Add(a.Pos.Sub(n.Pos).Mul(1 / (d * d)))
		count++
	}
	if count == 0 {
		return geometry.Vector2D{}
	}
	steer = steer.Mul(1 / float64(count))
	if steer.LenSqr() < geometry.Epsilon {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.ObstacleAvoidance = true
	}
	return steer.ScaleTo(a.MaxSpeed).Sub(a.Vel).Limit(a.MaxForce * 2)
}

// evadePredators flees every predator within the evasion radius. Desired
// speed is doubled and the clamp allows up to three times MaxForce, so a
// close predator dominates every other rule once the sum is clamped.
func evadePredators(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var steer geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		if n.Type != TypePredator {
			continue
		}
		d := a.Pos.DistanceTo(n.Pos)
		if d <= 0 || d >= cfg.PredatorAvoidRadius {
			continue
		}
		steer = steer.Add(a.Pos.Sub(n.Pos).Mul(1 / (d * d)))
		count++
	}
	if count == 0 {
		return geometry.Vector2D{}
	}
	steer = steer.Mul(1 / float64(count))
	if steer.LenSqr() < geometry.Epsilon {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.PredatorEvasion = true
	}
	return steer.ScaleTo(a.MaxSpeed * 2).Sub(a.Vel).Limit(a.MaxForce * 3)
}

// hunt attracts a predator toward the nearest boid (or leader, which is a
// boid variant) within the hunt radius. Equidistant prey resolve to the
// lowest agent ID so runs stay reproducible.
func hunt(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	prey := nearest(a, neighbors, cfg.HuntRadius, func(n *Agent) bool {
		return isFlockmate(n.Type)
	})
	if prey == nil {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.Predation = true
	}
	return seek(a, prey.Pos)
}

// leaderInfluence gives a boid an extra pull toward the nearest leader in
// range, plus a bias to match the leader's heading. Distinct from ordinary
// neighbor cohesion, which treats the leader as just another flockmate.
func leaderInfluence(a *Agent, neighbors []*Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	leader := nearest(a, neighbors, cfg.LeaderInfluenceRadius, func(n *Agent) bool {
		return n.Type == TypeLeader
	})
	if leader == nil {
		return geometry.Vector2D{}
	}
	if fired != nil {
		fired.LeaderFollow = true
	}
	pull := seek(a, leader.Pos)
	if leader.Vel.LenSqr() < geometry.Epsilon {
		return pull
	}
	match := leader.Vel.ScaleTo(a.MaxSpeed).Sub(a.Vel).Limit(a.MaxForce)
	return pull.Add(match.Mul(0.5))
}

// boundarySteer pushes an agent back toward the arena interior once it is
// within the boundary margin, scaled by how deep into the margin it is.
// Soft containment only; the Stepper applies the hard clamp after
// integration.
func boundarySteer(a *Agent, cfg *Config, fired *BehaviorSet) geometry.Vector2D {
	var steer geometry.Vector2D
	m := cfg.BoundaryMargin

	if a.Pos.X < m {
		steer.X += cfg.TurnFactor * (m - a.Pos.X) / m
	}
	if a.Pos.X > cfg.ScreenWidth-m {
		steer.X -= cfg.TurnFactor * (a.Pos.X - (cfg.ScreenWidth - m)) / m
	}
	if a.Pos.Y < m {
		steer.Y += cfg.TurnFactor * (m - a.Pos.Y) / m
	}
	if a.Pos.Y > cfg.ScreenHeight-m {
		steer.Y -= cfg.TurnFactor * (a.Pos.Y - (cfg.ScreenHeight - m)) / m
	}

	if fired != nil && steer.LenSqr() > 0 {
		fired.BoundaryTurn = true
	}
	return steer
}

// nearest returns the matching neighbor closest to a within the given
// radius, or nil. Distance ties break toward the lower ID.
func nearest(a *Agent, neighbors []*Agent, within float64, match func(*Agent) bool) *Agent {
	var best *Agent
	bestSq := within * within
	for _, n := range neighbors {
		if !match(n) {
			continue
		}
		dSq := a.Pos.DistanceSquaredTo(n.Pos)
		if dSq > bestSq {
			continue
		}
		if best == nil || dSq < bestSq || n.ID < best.ID {
			best = n
			bestSq = dSq
		}
	}
	return best
}
