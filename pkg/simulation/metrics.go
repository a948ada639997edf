package simulation

import "time"

// FrameMetrics holds the per-frame counters read by the display and the
// auto-test harness. Reset at the start of every frame.
type FrameMetrics struct {
	// NeighborQueries is the number of radius queries issued this frame.
	NeighborQueries int
	// DistanceChecks is the number of candidate distance comparisons the
	// grid actually performed.
	DistanceChecks int
	// ChecksAvoided is how many comparisons an all-pairs scan would have
	// needed on top of DistanceChecks.
	ChecksAvoided int
	// Duration is the wall time of the frame's update pipeline.
	Duration time.Duration
}

// Reset zeroes all counters.
func (m *FrameMetrics) Reset() {
	*m = FrameMetrics{}
}

// BehaviorSet records which steering rule categories have produced a
// non-zero contribution at least once. Accumulated over the run for the
// auto-test scorecard.
type BehaviorSet struct {
	Separation        bool
	Alignment         bool
	Cohesion          bool
	ObstacleAvoidance bool
	PredatorEvasion   bool
	Predation         bool
	LeaderFollow      bool
	BoundaryTurn      bool
}

// Merge ORs the other set into this one.
func (b *BehaviorSet) Merge(other BehaviorSet) {
	b.Separation = b.Separation || other.Separation
	b.Alignment = b.Alignment || other.Alignment
	b.Cohesion = b.Cohesion || other.Cohesion
	b.ObstacleAvoidance = b.ObstacleAvoidance || other.ObstacleAvoidance
	b.PredatorEvasion = b.PredatorEvasion || other.PredatorEvasion
	b.Predation = b.Predation || other.Predation
	b.LeaderFollow = b.LeaderFollow || other.LeaderFollow
	b.BoundaryTurn = b.BoundaryTurn || other.BoundaryTurn
}

// AsMap returns the set keyed by rule name, for reporting.
func (b BehaviorSet) AsMap() map[string]bool {
	return map[string]bool{
		"separation":        b.Separation,
		"alignment":         b.Alignment,
		"cohesion":          b.Cohesion,
		"obstacleAvoidance": b.ObstacleAvoidance,
		"predatorEvasion":   b.PredatorEvasion,
		"predation":         b.Predation,
		"leaderFollow":      b.LeaderFollow,
		"boundaryTurn":      b.BoundaryTurn,
	}
}

// CoreFired reports whether every behavior category the scorecard requires
// has fired: the three flocking rules, obstacle avoidance, evasion and
// predation.
func (b BehaviorSet) CoreFired() bool {
	return b.Separation && b.Alignment && b.Cohesion &&
		b.ObstacleAvoidance && b.PredatorEvasion && b.Predation
}
