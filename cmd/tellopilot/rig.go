package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/capture"
	"github.com/ayusman/tellopilot/internal/config"
	"github.com/ayusman/tellopilot/internal/detector"
	"github.com/ayusman/tellopilot/internal/drone"
)

const (
	simBatteryPct = 100
	simFrames     = 240
)

// rig is the hardware a pilot flies with. The pilot owns and closes it
// once the loop starts.
type rig struct {
	drone    drone.Drone
	frames   capture.Source
	hands    capture.Source
	detector detector.Detector
}

// close releases whatever was opened, for failures before the pilot
// takes ownership.
func (r *rig) close() error {
	var err error
	if r.detector != nil {
		err = multierr.Append(err, r.detector.Close())
	}
	if r.hands != nil {
		err = multierr.Append(err, r.hands.Close())
	}
	if r.frames != nil {
		err = multierr.Append(err, r.frames.Close())
	}
	if r.drone != nil {
		err = multierr.Append(err, r.drone.Close())
	}
	return err
}

// openRig connects the vehicle (or its simulation) and the optional
// gesture hardware.
func openRig(ctx context.Context, cfg *config.Config, sim bool, logger *zap.SugaredLogger) (*rig, error) {
	r := &rig{}

	if sim {
		d := drone.NewSim(simBatteryPct)
		d.ClimbPerMove = 0.1
		d.DrainEvery = 200
		r.drone = d
		r.frames = capture.NewSyntheticCamera(cfg.Frame.Width, cfg.Frame.Height, simFrames)
		logger.Infow("simulation mode", "frames", simFrames)
	} else {
		latest := capture.NewLatest()
		t := drone.NewTello(drone.TelloConfig{
			Port:           cfg.Drone.Port,
			ConnectTimeout: cfg.Drone.ConnectTimeout,
			FrameWidth:     cfg.Frame.Width,
			FrameHeight:    cfg.Frame.Height,
		}, latest, logger.Named("tello"))
		r.drone = t
		r.frames = latest
		if err := t.Connect(ctx); err != nil {
			return nil, multierr.Append(fmt.Errorf("connect tello: %w", err), r.close())
		}
	}

	if !cfg.Gesture.Enabled {
		return r, nil
	}

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig(), logger.Named("mediapipe"))
	if err != nil {
		if errors.Is(err, detector.ErrScriptNotFound) {
			logger.Warnw("gestures disabled", "error", err)
			return r, nil
		}
		return nil, multierr.Append(err, r.close())
	}
	if err := det.Start(); err != nil {
		logger.Warnw("gestures disabled", "error", err)
		if err := det.Close(); err != nil {
			logger.Debugw("mediapipe close failed", "error", err)
		}
		return r, nil
	}
	r.detector = det

	if cfg.Gesture.CameraID >= 0 {
		cam := capture.NewCamera(cfg.Gesture.CameraID, cfg.Frame.Width, cfg.Frame.Height)
		if err := cam.Open(); err != nil {
			logger.Warnw("gesture camera unavailable, reading hands from the drone feed",
				"camera_id", cfg.Gesture.CameraID,
				"error", err)
		} else {
			r.hands = cam
		}
	}
	return r, nil
}
