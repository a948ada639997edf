package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/OperaAIBot/BoidsSimulation/pkg/simulation"
)

func main() {
	configFile := flag.String("config", "", "path to a JSON config file (defaults apply when empty)")
	autoTest := flag.Bool("auto-test", false, "run headless, write a scorecard and exit")
	duration := flag.Duration("duration", 30*time.Second, "simulated duration of the auto-test run")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		cfg, err = simulation.LoadConfig(*configFile)
		if err != nil {
			log.Fatal("invalid configuration", zap.String("file", *configFile), zap.Error(err))
		}
	}

	if *autoTest {
		sc, err := simulation.RunAutoTest(cfg, *duration, log)
		if err != nil {
			log.Fatal("auto-test failed", zap.Error(err))
		}
		if err := sc.WriteJSON(cfg.ScoreOutputFile); err != nil {
			log.Fatal("failed to write scorecard", zap.Error(err))
		}
		log.Info("scorecard written", zap.String("file", cfg.ScoreOutputFile))
		if !sc.Passed {
			os.Exit(1)
		}
		return
	}

	stepper, err := simulation.NewStepper(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize simulation", zap.Error(err))
	}

	game, err := simulation.NewGame(stepper, log)
	if err != nil {
		log.Fatal("failed to initialize game", zap.Error(err))
	}

	ebiten.SetWindowSize(int(cfg.ScreenWidth), int(cfg.ScreenHeight))
	ebiten.SetWindowTitle("Boids: Flocking Arena")

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal("game loop failed", zap.Error(err))
	}
	stepper.Stop()
}
