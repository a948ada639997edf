package simulation

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/OperaAIBot/BoidsSimulation/pkg/ui"
)

// Shared 1x1 white texture for DrawTriangles; agent color comes from the
// vertex colors.
var whiteImage = ebiten.NewImage(3, 3)

func init() {
	whiteImage.Fill(color.White)
}

var (
	boidColor     = color.RGBA{R: 80, G: 180, B: 255, A: 255}
	leaderColor   = color.RGBA{R: 255, G: 200, B: 50, A: 255}
	predatorColor = color.RGBA{R: 255, G: 60, B: 60, A: 255}
	obstacleColor = color.RGBA{R: 140, G: 140, B: 150, A: 255}
	gridColor     = color.RGBA{R: 60, G: 90, B: 60, A: 120}
)

// Game is the ebiten front end: it drives the Stepper one fixed tick per
// ebiten update and renders the latest snapshot.
type Game struct {
	stepper *Stepper
	log     *zap.Logger

	// UI Controls
	panel *ui.UIPanel

	widgetNeighborRadius  *ui.Slider
	widgetSeparation      *ui.Slider
	widgetPredatorAvoid   *ui.Slider
	widgetObstacleAvoid   *ui.Slider
	widgetLeaderInfluence *ui.Slider
	widgetHuntRadius      *ui.Slider
	widgetMaxSpeed        *ui.Slider
	widgetMaxForce        *ui.Slider
	widgetTurnFactor      *ui.Slider
	widgetSpeedMultiplier *ui.Slider
	widgetVisualizeGrid   *ui.Checkbox

	showHelp  bool
	showPanel bool

	// Timing instrumentation
	updateAvg float64 // Rolling average in ms
	drawAvg   float64 // Rolling average in ms
}

// NewGame builds the front end around an already constructed stepper and
// starts it.
func NewGame(stepper *Stepper, log *zap.Logger) (*Game, error) {
	if err := stepper.Start(); err != nil {
		return nil, err
	}
	cfg := stepper.Config()

	panel := ui.NewUIPanel(10, 10, 280, cfg.ScreenHeight-20)

	panel.AddSection("Perception Radii")
	widgetNeighborRadius := panel.AddSlider("Neighbor Radius", 10, 200, cfg.NeighborRadius)
	widgetSeparation := panel.AddSlider("Desired Separation", 5, 100, cfg.DesiredSeparation)
	widgetPredatorAvoid := panel.AddSlider("Predator Avoid Radius", 20, 300, cfg.PredatorAvoidRadius)
	widgetObstacleAvoid := panel.AddSlider("Obstacle Avoid Radius", 10, 200, cfg.ObstacleAvoidRadius)
	widgetLeaderInfluence := panel.AddSlider("Leader Influence Radius", 20, 300, cfg.LeaderInfluenceRadius)
	widgetHuntRadius := panel.AddSlider("Hunt Radius", 20, 400, cfg.HuntRadius)
	panel.EndSection()

	panel.AddSection("Physics")
	widgetMaxSpeed := panel.AddSlider("Max Speed", 0.5, 10, cfg.MaxSpeed)
	widgetMaxForce := panel.AddSlider("Max Force", 0.01, 1.0, cfg.MaxForce)
	widgetTurnFactor := panel.AddSlider("Turn Factor", 0.05, 1.0, cfg.TurnFactor)
	panel.EndSection()

	panel.AddSection("Pacing")
	widgetSpeedMultiplier := panel.AddSlider("Speed Multiplier", 0.1, 8.0, cfg.SpeedMultiplier)
	panel.EndSection()

	panel.AddSection("Visualization")
	widgetVisualizeGrid := panel.AddCheckbox("Show Spatial Grid", cfg.VisualizeGrid)
	panel.EndSection()

	panel.AddSection("Run Control")
	panel.AddButton("Pause / Resume", stepper.TogglePause)
	panel.EndSection()

	return &Game{
		stepper:               stepper,
		log:                   log,
		panel:                 panel,
		widgetNeighborRadius:  widgetNeighborRadius,
		widgetSeparation:      widgetSeparation,
		widgetPredatorAvoid:   widgetPredatorAvoid,
		widgetObstacleAvoid:   widgetObstacleAvoid,
		widgetLeaderInfluence: widgetLeaderInfluence,
		widgetHuntRadius:      widgetHuntRadius,
		widgetMaxSpeed:        widgetMaxSpeed,
		widgetMaxForce:        widgetMaxForce,
		widgetTurnFactor:      widgetTurnFactor,
		widgetSpeedMultiplier: widgetSpeedMultiplier,
		widgetVisualizeGrid:   widgetVisualizeGrid,
		showPanel:             true,
	}, nil
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	// Keyboard controls
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.stepper.Stop()
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.stepper.TogglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.widgetVisualizeGrid.Value = !g.widgetVisualizeGrid.Value
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.showHelp = !g.showHelp
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.showPanel = !g.showPanel
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.bumpSpeed(1.25)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.bumpSpeed(1 / 1.25)
	}

	if g.showPanel {
		g.panel.Update()
	}
	g.applyWidgets()

	g.stepper.Step(1.0)
	return nil
}

// bumpSpeed multiplies the speed multiplier, clamped to the slider range so
// keyboard and slider stay consistent.
func (g *Game) bumpSpeed(factor float64) {
	v := g.widgetSpeedMultiplier.Value * factor
	if v < g.widgetSpeedMultiplier.Min {
		v = g.widgetSpeedMultiplier.Min
	}
	if v > g.widgetSpeedMultiplier.Max {
		v = g.widgetSpeedMultiplier.Max
	}
	g.widgetSpeedMultiplier.Value = v
}

// applyWidgets stages a reconfiguration when any widget differs from the
// active config. Population is untouched, so Reconfigure always accepts.
func (g *Game) applyWidgets() {
	active := g.stepper.Config()
	next := active
	next.NeighborRadius = g.widgetNeighborRadius.Value
	next.DesiredSeparation = g.widgetSeparation.Value
	next.PredatorAvoidRadius = g.widgetPredatorAvoid.Value
	next.ObstacleAvoidRadius = g.widgetObstacleAvoid.Value
	next.LeaderInfluenceRadius = g.widgetLeaderInfluence.Value
	next.HuntRadius = g.widgetHuntRadius.Value
	next.MaxSpeed = g.widgetMaxSpeed.Value
	next.MaxForce = g.widgetMaxForce.Value
	next.TurnFactor = g.widgetTurnFactor.Value
	next.SpeedMultiplier = g.widgetSpeedMultiplier.Value
	next.VisualizeGrid = g.widgetVisualizeGrid.Value

	if next == active {
		return
	}
	if err := g.stepper.Reconfigure(&next); err != nil {
		g.log.Warn("live reconfiguration rejected", zap.Error(err))
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	snap := g.stepper.Snapshot()
	cfg := g.stepper.Config()

	if cfg.VisualizeGrid {
		g.drawGrid(screen, cfg)
	}

	for i := range snap.Agents {
		a := &snap.Agents[i]
		switch a.Type {
		case TypeObstacle:
			vector.StrokeCircle(screen,
				float32(a.Pos.X), float32(a.Pos.Y),
				float32(a.Radius), 2, obstacleColor, true)
		case TypePredator:
			drawAgentTriangle(screen, a, predatorColor)
		case TypeLeader:
			drawAgentTriangle(screen, a, leaderColor)
		default:
			drawAgentTriangle(screen, a, boidColor)
		}
	}

	if g.showPanel {
		g.panel.Draw(screen)
	}
	g.drawStats(screen, &snap, cfg)
	if g.showHelp {
		g.drawHelp(screen, cfg)
	}
	if snap.State == StatePaused {
		ebitenutil.DebugPrintAt(screen, "PAUSED (SPACE to resume)",
			int(cfg.ScreenWidth/2-80), int(cfg.ScreenHeight/2))
	}
}

// drawGrid outlines every occupied cell of the spatial hash.
func (g *Game) drawGrid(screen *ebiten.Image, cfg Config) {
	cell := float32(cfg.GridCellSize)
	g.stepper.Grid().OccupiedCells(func(x, y, count int) {
		vector.StrokeRect(screen,
			float32(x)*cell, float32(y)*cell,
			cell, cell, 1, gridColor, false)
		ebitenutil.DebugPrintAt(screen,
			fmt.Sprintf("%d", count),
			x*int(cfg.GridCellSize)+3, y*int(cfg.GridCellSize)+3)
	})
}

func (g *Game) drawStats(screen *ebiten.Image, snap *Snapshot, cfg Config) {
	m := snap.Metrics
	msg := fmt.Sprintf(
		"FPS: %.1f  TPS: %.1f\nState: %s  Frame: %d\nSpeed: x%.2f\n\nQueries: %d\nChecks:  %d\nAvoided: %d\n\nUpdate: %.2fms\nDraw:   %.2fms\nStep:   %.2fms\n\nH for help",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		snap.State,
		snap.Frame,
		cfg.SpeedMultiplier,
		m.NeighborQueries,
		m.DistanceChecks,
		m.ChecksAvoided,
		g.updateAvg,
		g.drawAvg,
		float64(m.Duration.Microseconds())/1000.0,
	)
	ebitenutil.DebugPrintAt(screen, msg, int(cfg.ScreenWidth)-160, 10)
}

func (g *Game) drawHelp(screen *ebiten.Image, cfg Config) {
	help := "CONTROLS\n" +
		"SPACE  pause / resume\n" +
		"G      toggle grid overlay\n" +
		"TAB    toggle config panel\n" +
		"+ / -  speed up / slow down\n" +
		"H      toggle this help\n" +
		"ESC    quit"
	ebitenutil.DebugPrintAt(screen, help, int(cfg.ScreenWidth/2-80), 40)
}

func (g *Game) Layout(w, h int) (int, int) {
	cfg := g.stepper.Config()
	return int(cfg.ScreenWidth), int(cfg.ScreenHeight)
}

// drawAgentTriangle renders a mover as a triangle pointing along its
// velocity, scaled by its radius.
func drawAgentTriangle(screen *ebiten.Image, a *AgentView, clr color.RGBA) {
	angle := 0.0
	if a.Vel.LenSqr() > 0 {
		angle = math.Atan2(a.Vel.Y, a.Vel.X)
	}
	size := a.Radius

	tipX := a.Pos.X + math.Cos(angle)*size*1.2
	tipY := a.Pos.Y + math.Sin(angle)*size*1.2
	rightX := a.Pos.X + math.Cos(angle+2.5)*size
	rightY := a.Pos.Y + math.Sin(angle+2.5)*size
	leftX := a.Pos.X + math.Cos(angle-2.5)*size
	leftY := a.Pos.Y + math.Sin(angle-2.5)*size

	cr := float32(clr.R) / 255
	cg := float32(clr.G) / 255
	cb := float32(clr.B) / 255

	vertices := []ebiten.Vertex{
		{DstX: float32(tipX), DstY: float32(tipY), SrcX: 1, SrcY: 1, ColorR: cr, ColorG: cg, ColorB: cb, ColorA: 1},
		{DstX: float32(rightX), DstY: float32(rightY), SrcX: 1, SrcY: 1, ColorR: cr, ColorG: cg, ColorB: cb, ColorA: 1},
		{DstX: float32(leftX), DstY: float32(leftY), SrcX: 1, SrcY: 1, ColorR: cr, ColorG: cg, ColorB: cb, ColorA: 1},
	}
	indices := []uint16{0, 1, 2}

	screen.DrawTriangles(vertices, indices, whiteImage, &ebiten.DrawTrianglesOptions{})
}
