// Command td-sim plays a scripted match headless on a simulated clock and
// prints one line per wave.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

func main() {
	waves := flag.Int("waves", 20, "number of waves to play")
	players := flag.Int("players", 1, "number of scripted players (1 or 2)")
	tick := flag.Duration("tick", 50*time.Millisecond, "simulation tick")
	spawn := flag.Duration("spawn", 1200*time.Millisecond, "spawn interval")
	limit := flag.Duration("limit", 2*time.Hour, "maximum simulated duration")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	catalogPath := flag.String("catalog", "", "optional JSON catalog file")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cat := catalog.Default()
	if *catalogPath != "" {
		loaded, err := catalog.LoadFile(*catalogPath)
		if err != nil {
			log.Error(ctx, "failed to load catalog", logging.String("path", *catalogPath), logging.Err(err))
			os.Exit(1)
		}
		cat = loaded
	}

	settings := state.DefaultSettings()
	settings.MaxWaves = *waves
	cfg := simConfig{
		Settings:    settings,
		Catalog:     cat,
		Players:     *players,
		Tick:        *tick,
		Spawn:       *spawn,
		Limit:       *limit,
		Accelerated: *accelerated,
	}

	res, err := runSimulation(cfg, os.Stdout, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	fmt.Printf("result: %s after %d waves, %d lives left, simulated %s\n",
		res.Outcome, res.Waves, res.Lives, res.Elapsed.Round(time.Second))
}
