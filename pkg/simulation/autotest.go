package simulation

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Scorecard is the headless auto-test report: how the run performed and
// which behavior categories were observed firing.
type Scorecard struct {
	RunID            string    `json:"runId"`
	Timestamp        time.Time `json:"timestamp"`
	Frames           int       `json:"frames"`
	SimulatedSeconds float64   `json:"simulatedSeconds"`
	AgentCount       int       `json:"agentCount"`

	AvgFPS     float64 `json:"avgFps"`
	FPSStdDev  float64 `json:"fpsStdDev"`
	AvgFrameMs float64 `json:"avgFrameMs"`

	TotalDistanceChecks int     `json:"totalDistanceChecks"`
	TotalChecksAvoided  int     `json:"totalChecksAvoided"`
	PruningRatio        float64 `json:"pruningRatio"`

	Behaviors map[string]bool `json:"behaviors"`
	Passed    bool            `json:"passed"`
}

// WriteJSON writes the scorecard to path as indented JSON.
func (sc *Scorecard) WriteJSON(path string) error {
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scorecard: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write scorecard: %w", err)
	}
	return nil
}

// RunAutoTest runs the simulation headless for the given simulated duration
// and returns a scorecard. The frame count is duration at the configured
// FPS target; each frame advances one fixed tick regardless of wall time,
// so the simulated span is exact and reproducible. Per-frame wall durations
// feed the FPS statistics.
//
// A run passes when every core behavior category fired at least once and
// the grid pruned more distance checks than it performed.
func RunAutoTest(cfg *Config, duration time.Duration, log *zap.Logger) (*Scorecard, error) {
	s, err := NewStepper(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	defer s.Stop()

	frames := int(duration.Seconds() * float64(cfg.FpsTarget))
	if frames < 1 {
		frames = 1
	}

	log.Info("auto-test run starting",
		zap.Duration("duration", duration),
		zap.Int("frames", frames),
	)

	frameMs := make([]float64, 0, frames)
	totalChecks := 0
	totalAvoided := 0

	for i := 0; i < frames; i++ {
		s.Step(1.0)
		m := s.LastMetrics()
		frameMs = append(frameMs, float64(m.Duration.Nanoseconds())/1e6)
		totalChecks += m.DistanceChecks
		totalAvoided += m.ChecksAvoided
	}

	avgMs := stat.Mean(frameMs, nil)
	stdMs := stat.StdDev(frameMs, nil)

	sc := &Scorecard{
		RunID:               uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		Frames:              frames,
		SimulatedSeconds:    float64(frames) / float64(cfg.FpsTarget),
		AgentCount:          cfg.BoidCount + cfg.PredatorCount + cfg.ObstacleCount + cfg.LeaderCount,
		AvgFrameMs:          avgMs,
		TotalDistanceChecks: totalChecks,
		TotalChecksAvoided:  totalAvoided,
		Behaviors:           s.BehaviorsFired().AsMap(),
	}
	if avgMs > 0 {
		sc.AvgFPS = 1000.0 / avgMs
		// First-order propagation from frame-time spread to FPS spread.
		sc.FPSStdDev = 1000.0 * stdMs / (avgMs * avgMs)
	}
	if total := totalChecks + totalAvoided; total > 0 {
		sc.PruningRatio = float64(totalAvoided) / float64(total)
	}
	sc.Passed = s.BehaviorsFired().CoreFired() && totalAvoided > totalChecks

	log.Info("auto-test run finished",
		zap.String("runId", sc.RunID),
		zap.Float64("avgFps", sc.AvgFPS),
		zap.Float64("pruningRatio", sc.PruningRatio),
		zap.Bool("passed", sc.Passed),
	)
	return sc, nil
}
