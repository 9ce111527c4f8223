// Command tellopilot flies a Tello drone from color tracking, hand
// gestures and operator keys, with a web console, an optional tray menu
// and MQTT status.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/tellopilot/internal/config"
	"github.com/ayusman/tellopilot/internal/emitter"
	"github.com/ayusman/tellopilot/internal/journal"
	"github.com/ayusman/tellopilot/internal/logging"
	"github.com/ayusman/tellopilot/internal/pilot"
	"github.com/ayusman/tellopilot/internal/server"
	"github.com/ayusman/tellopilot/internal/tray"
)

const (
	flagConfig = "config"
	flagAddr   = "addr"
	flagSim    = "sim"
	flagTray   = "tray"
	flagKeys   = "keys"
	flagDebug  = "debug"
)

func main() {
	app := &cli.App{
		Name:  "tellopilot",
		Usage: "fly a Tello from color tracking, hand gestures and keys",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` and reload it on change",
			},
			&cli.StringFlag{
				Name:  flagAddr,
				Usage: "console listen address (overrides server.addr)",
			},
			&cli.BoolFlag{
				Name:  flagSim,
				Usage: "fly a simulated drone over synthetic frames",
			},
			&cli.BoolFlag{
				Name:  flagTray,
				Usage: "show a system tray menu",
			},
			&cli.BoolFlag{
				Name:  flagKeys,
				Value: true,
				Usage: "read keys from stdin, one or more per line",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfgPath := c.String(flagConfig)
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.IsSet(flagAddr) {
		cfg.Server.Addr = c.String(flagAddr)
	}
	if c.Bool(flagDebug) {
		cfg.Log.Level = "debug"
	}

	logger, closeLog, err := logging.New(cfg.Log, "tellopilot")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "tello"
	if c.Bool(flagSim) {
		mode = "sim"
	}

	j, rec := openJournal(cfg.Journal.Path, mode, logger)
	if j != nil {
		defer j.Close()
	}
	if rec != nil {
		defer func() {
			if err := rec.End(time.Now()); err != nil {
				logger.Warnw("failed to end journal session", "error", err)
			}
		}()
	}

	hw, err := openRig(ctx, cfg, c.Bool(flagSim), logger)
	if err != nil {
		return err
	}

	deps := pilot.Deps{
		Drone:    hw.drone,
		Frames:   hw.frames,
		Hands:    hw.hands,
		Detector: hw.detector,
		Logger:   logger.Named("pilot"),
	}
	if rec != nil {
		deps.Journal = rec
	}
	p := pilot.New(pilotConfig(cfg), deps)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return p.Run(gctx)
	})

	srv := server.New(server.Config{
		StaticDir: findWebDir(),
		Pilot:     p,
		Frames:    p.Preview(),
		Journal:   j,
		Logger:    logger.Named("http"),
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Addr)
	})

	if cfgPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, cfgPath, logger.Named("config"), func(next *config.Config) {
				if changed := next.KeepStartup(cfg); len(changed) > 0 {
					logger.Warnw("ignoring reloaded sections that need a restart", "sections", changed)
				}
				p.Apply(settingsFrom(next))
				logger.Infow("settings reloaded", "speed", next.Speed, "area_min", next.Tracking.AreaMin)
			})
		})
	}

	if cfg.MQTT.Broker != "" {
		em := emitter.NewMQTTEmitter(cfg.MQTT, logger.Named("mqtt"))
		if err := em.Connect(ctx); err != nil {
			logger.Warnw("mqtt status disabled", "error", err)
		} else {
			p.OnStatus(em.Observe)
			g.Go(func() error {
				return em.Run(gctx)
			})
		}
	}

	if c.Bool(flagKeys) {
		term := newTerminal(p, logger.Named("keys"))
		go func() {
			if err := term.run(os.Stdin); err != nil {
				logger.Warnw("stdin closed", "error", err)
			}
		}()
	}

	logger.Infow("tellopilot started",
		"mode", mode,
		"addr", cfg.Server.Addr,
		"period", cfg.Loop.Period,
		"tracking", cfg.Tracking.Enabled,
		"gestures", hw.detector != nil)

	if !c.Bool(flagTray) {
		return g.Wait()
	}

	t := tray.New(p, logger.Named("tray"))
	p.OnStatus(t.Observe)
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		t.Quit()
	}()
	t.Run()
	cancel()
	return <-done
}

// pilotConfig maps the file configuration onto the loop settings.
func pilotConfig(cfg *config.Config) pilot.Config {
	return pilot.Config{
		Period:          cfg.Loop.Period,
		MaxReadErrors:   cfg.Loop.MaxReadErrors,
		StaleFrames:     cfg.Loop.StaleFrames,
		FrameWidth:      cfg.Frame.Width,
		FrameHeight:     cfg.Frame.Height,
		Mirror:          cfg.Gesture.Mirror,
		MotionThreshold: cfg.Gesture.MotionThreshold,
		Settings:        settingsFrom(cfg),
	}
}

// settingsFrom returns the live-adjustable part of cfg.
func settingsFrom(cfg *config.Config) pilot.Settings {
	return pilot.Settings{
		Vision:   cfg.VisionParams(),
		Control:  cfg.ControlParams(),
		Safety:   cfg.SafetyLimits(),
		FistHold: cfg.Gesture.FistHold,
	}
}

// openJournal opens the flight journal and starts a session. Journal
// failures are logged and leave the pilot without one.
func openJournal(path, mode string, logger *zap.SugaredLogger) (*journal.Journal, *journal.Recorder) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warnw("journal disabled", "error", err)
		return nil, nil
	}
	j, err := journal.Open(path)
	if err != nil {
		logger.Warnw("journal disabled", "path", path, "error", err)
		return nil, nil
	}
	rec, err := j.NewRecorder(mode, time.Now())
	if err != nil {
		logger.Warnw("journal session not started", "error", err)
		return j, nil
	}
	logger.Infow("journal session started", "path", path, "session", rec.Session().ID)
	return j, rec
}

// findWebDir searches for the console assets in common locations.
// It checks: "web", "../web", "../../web", and ~/.tellopilot/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".tellopilot", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
