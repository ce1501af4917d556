package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/physicsprop"
	"github.com/zeusync/gamecore/internal/core/spatial"
	"github.com/zeusync/gamecore/internal/engine"
	"github.com/zeusync/gamecore/internal/injector"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		profMode   = flag.String("profile", "", "write a cpu or mem profile to the working directory")
		restore    = flag.Bool("restore", false, "load saved snapshots on start")
		demo       = flag.Int("demo", 0, "spawn this many falling spheres")
	)
	flag.Parse()

	switch *profMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", *profMode)
		return 2
	}

	if err := run(*configPath, *restore, *demo); err != nil {
		fmt.Fprintln(os.Stderr, "gamecore:", err)
		return 1
	}
	return 0
}

func run(configPath string, restore bool, demo int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := injector.NewApp(ctx, injector.ConfigPath(configPath))
	if err != nil {
		return err
	}
	logger := app.Logger
	defer func() { _ = logger.Sync() }()
	eng := app.Engine

	if restore {
		n, err := eng.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		logger.Info("snapshots restored", log.Int("entities", n))
	}
	if err = spawnDemo(eng, demo); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	if app.Inspector != nil {
		g.Go(func() error { return app.Inspector.ListenAndServe(gctx) })
	}
	logger.Info("engine started",
		log.Int("tick_rate", eng.Loop().Rate()),
		log.String("physics", app.Config.Physics.Backend),
		log.String("storage", app.Config.Storage.Backend),
	)

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	saveCtx := context.WithoutCancel(ctx)
	if err = eng.SaveAll(saveCtx); err != nil {
		logger.Error("saving snapshots failed", log.Error(err))
	}
	if err = eng.Close(); err != nil {
		logger.Error("closing engine failed", log.Error(err))
	}
	logger.Info("engine stopped", log.Uint64("ticks", eng.Loop().Ticks()))
	return runErr
}

func spawnDemo(eng *engine.Engine, n int) error {
	for i := range n {
		ent := eng.NewEntity(entity.WithName(fmt.Sprintf("sphere-%d", i)))
		p := eng.PhysicsProperty(
			physicsprop.WithPosition(spatial.Vec3{X: float64(i) * 2, Y: 10}),
			physicsprop.WithBounciness(0.3),
		)
		if err := ent.Attach(p); err != nil {
			return err
		}
		if err := eng.Spawn(ent.ID()); err != nil {
			return err
		}
	}
	return nil
}
