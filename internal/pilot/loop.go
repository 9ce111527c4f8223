package pilot

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/ayusman/tellopilot/internal/capture"
	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/detector"
	"github.com/ayusman/tellopilot/internal/journal"
	"github.com/ayusman/tellopilot/internal/vision"
)

// Result classifies how a cycle ended.
type Result int

const (
	// ResultOK means the command was sent.
	ResultOK Result = iota
	// ResultNoFrame means no frame was available yet; the cycle was skipped.
	ResultNoFrame
	// ResultReadError means the frame read failed within the error budget.
	ResultReadError
	// ResultFatal means the loop must tear down.
	ResultFatal
	// ResultQuit means the operator asked to quit.
	ResultQuit
)

var resultNames = [...]string{"ok", "no_frame", "read_error", "fatal", "quit"}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "unknown"
	}
	return resultNames[r]
}

// CycleResult is the outcome of one Cycle.
type CycleResult struct {
	Result Result
	Output control.Output
	Err    error
}

var markerColor = color.RGBA{R: 255, A: 255}

// Run drives Cycle every Config.Period until ctx is done, the operator
// quits, or a cycle fails fatally. Every exit goes through Close.
func (p *Pilot) Run(ctx context.Context) error {
	ticker := p.clock.Ticker(p.cfg.Period)
	defer ticker.Stop()

	p.logger.Infow("control loop started", "period", p.cfg.Period)

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("control loop cancelled")
			return p.Close()

		case <-ticker.C:
			res := p.Cycle()
			switch res.Result {
			case ResultQuit:
				p.logger.Infow("quit requested")
				return p.Close()
			case ResultFatal:
				p.logger.Errorw("control loop failed", "error", res.Err)
				return multierr.Append(res.Err, p.Close())
			}
		}
	}
}

// Cycle runs one perception-to-actuation pass.
//
// Steps:
// 1. Apply pending settings and queue operator events
// 2. Quit if an operator asked to, even without a frame
// 3. Read the latest drone frame, skipping the cycle when none is ready
// 4. Detect the target and the operator's hand
// 5. Step the controller with fresh telemetry
// 6. Perform takeoff/landing actions, then send the command
// 7. Publish the status and the preview frame
func (p *Pilot) Cycle() CycleResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return CycleResult{Result: ResultFatal, Err: ErrClosed}
	}

	p.takeSettings()
	p.drainEvents()

	if p.quitPending() {
		p.pending = nil
		return CycleResult{Result: ResultQuit}
	}

	frame, err := p.frames.ReadFrame()
	if err != nil {
		return p.readFailed(err)
	}
	defer frame.Close()
	if p.frozen() {
		return p.readFailed(ErrStaleFrame)
	}
	p.readErrors = 0

	vision.Resize(frame, p.cfg.FrameWidth, p.cfg.FrameHeight)

	params := p.ctrl.Params()
	var target *vision.Target
	if params.Tracking {
		target = vision.Detect(*frame, p.vision)
	}
	var hand *detector.HandLandmarks
	if params.Gestures {
		hand = p.detectHand(frame)
	}

	tel := p.drone.Telemetry()
	out := p.ctrl.Step(control.Input{
		Now:       p.clock.Now(),
		Target:    target,
		Hand:      hand,
		Telemetry: tel,
		Events:    p.pending,
	})
	p.pending = nil

	for _, w := range out.Raised {
		p.logger.Warnw("safety warning",
			"message", w.Message,
			"battery", tel.BatteryPct,
			"altitude_cm", tel.AltitudeCM,
		)
		p.record(journal.EventWarning, w.Message, tel)
	}

	if err := p.actuate(out, tel); err != nil {
		p.record(journal.EventError, err.Error(), tel)
		return CycleResult{Result: ResultFatal, Output: out, Err: err}
	}

	p.cycles++
	p.publishPreview(frame, target)
	p.publish(Status{
		At:         p.clock.Now(),
		Cycle:      p.cycles,
		State:      out.State,
		BatteryPct: tel.BatteryPct,
		AltitudeCM: tel.AltitudeCM,
		Speed:      params.Speed,
		Command:    out.Command,
		Target:     target,
		Label:      out.Label,
		Warning:    out.Warning,
	})

	return CycleResult{Result: ResultOK, Output: out}
}

// readFailed classifies a frame read error. Caller holds p.mu.
func (p *Pilot) readFailed(err error) CycleResult {
	if errors.Is(err, capture.ErrNoFrame) {
		return CycleResult{Result: ResultNoFrame, Err: err}
	}

	p.readErrors++
	if p.readErrors > p.cfg.MaxReadErrors {
		err = fmt.Errorf("read frame: %d consecutive failures: %w", p.readErrors, err)
		p.record(journal.EventError, err.Error(), p.drone.Telemetry())
		return CycleResult{Result: ResultFatal, Err: err}
	}

	p.logger.Warnw("frame read failed", "error", err, "consecutive", p.readErrors)
	return CycleResult{Result: ResultReadError, Err: err}
}

// sequencer is a frame source that numbers its frames.
type sequencer interface {
	Seq() uint64
}

// frozen reports whether the drone frame has not changed for more than
// Config.StaleFrames cycles. Caller holds p.mu.
func (p *Pilot) frozen() bool {
	src, ok := p.frames.(sequencer)
	if !ok || p.cfg.StaleFrames <= 0 {
		return false
	}
	seq := src.Seq()
	if seq != p.lastSeq {
		p.lastSeq = seq
		p.stale = 0
		return false
	}
	p.stale++
	return p.stale > p.cfg.StaleFrames
}

// actuate performs the cycle's actions and sends the command while
// airborne. Landings are preceded by a full stop; Land is sent even when
// the stop fails. A failed Land leaves the controller airborne.
func (p *Pilot) actuate(out control.Output, tel control.Telemetry) error {
	for _, a := range out.Actions {
		switch a.Kind {
		case control.ActionTakeOff:
			if err := p.drone.TakeOff(); err != nil {
				p.ctrl.ForceGrounded()
				return fmt.Errorf("takeoff: %w", err)
			}
			p.logger.Infow("takeoff", "reason", a.Reason, "battery", tel.BatteryPct)
			p.record(journal.EventTakeOff, a.Reason, tel)

		case control.ActionLand:
			stopErr := p.drone.Move(control.VelocityCommand{})
			if err := p.drone.Land(); err != nil {
				p.ctrl.ForceAirborne()
				return multierr.Append(wrap("stop before landing", stopErr), fmt.Errorf("land: %w", err))
			}
			if stopErr != nil {
				p.logger.Warnw("stop before landing failed", "error", stopErr)
			}
			p.logger.Infow("land", "reason", a.Reason, "battery", tel.BatteryPct, "altitude_cm", tel.AltitudeCM)
			p.record(journal.EventLand, a.Reason, tel)
		}
	}

	if out.State != control.Airborne {
		return nil
	}
	if err := p.drone.Move(out.Command); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// detectHand returns the operator's hand, reading it from the gesture
// camera when one is configured and from droneFrame otherwise. Still
// gesture frames reuse the previous landmarks. Caller holds p.mu.
func (p *Pilot) detectHand(droneFrame *gocv.Mat) *detector.HandLandmarks {
	if p.detector == nil {
		return nil
	}

	src := droneFrame
	if p.hands != nil {
		f, err := p.hands.ReadFrame()
		if err != nil {
			if !errors.Is(err, capture.ErrNoFrame) {
				p.logger.Debugw("gesture frame read failed", "error", err)
			}
			p.lastHand = nil
			return nil
		}
		defer f.Close()
		if p.cfg.Mirror {
			gocv.Flip(*f, f, 1)
		}
		src = f
	}

	if p.motion != nil {
		if moved, _ := p.motion.Detect(src); !moved {
			return p.lastHand
		}
	}

	hands, err := p.detector.Detect(src)
	if err != nil {
		if errors.Is(err, detector.ErrNotReady) {
			p.logger.Debugw("hand detector starting")
		} else {
			p.logger.Warnw("hand detection failed", "error", err)
		}
		p.lastHand = nil
		return nil
	}
	if len(hands) == 0 {
		p.lastHand = nil
		return nil
	}

	h := hands[0]
	p.lastHand = &h
	return p.lastHand
}

func (p *Pilot) publishPreview(frame *gocv.Mat, target *vision.Target) {
	preview := frame.Clone()
	if target != nil {
		gocv.Circle(&preview, target.Centroid, 6, markerColor, -1)
	}
	p.preview.Publish(preview)
}

// Close is the single teardown path. It stops the vehicle, lands it if
// airborne, and releases every resource. Later calls return the first
// result.
func (p *Pilot) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true

		tel := p.drone.Telemetry()
		var err error
		err = multierr.Append(err, wrap("stop", p.drone.Move(control.VelocityCommand{})))
		if p.ctrl.State() == control.Airborne {
			if landErr := p.drone.Land(); landErr != nil {
				err = multierr.Append(err, wrap("land", landErr))
			} else {
				p.logger.Infow("land", "reason", "teardown", "battery", tel.BatteryPct)
				p.record(journal.EventLand, "teardown", tel)
			}
			p.ctrl.ForceGrounded()
		}

		err = multierr.Append(err, wrap("close frames", p.frames.Close()))
		if p.hands != nil {
			err = multierr.Append(err, wrap("close gesture camera", p.hands.Close()))
		}
		if p.detector != nil {
			err = multierr.Append(err, wrap("close detector", p.detector.Close()))
		}
		if p.motion != nil {
			p.motion.Close()
		}
		err = multierr.Append(err, wrap("close preview", p.preview.Close()))
		err = multierr.Append(err, wrap("close drone", p.drone.Close()))

		p.publish(Status{
			At:         p.clock.Now(),
			Cycle:      p.cycles,
			State:      control.Grounded,
			BatteryPct: tel.BatteryPct,
			Speed:      p.ctrl.Params().Speed,
		})

		if err != nil {
			p.logger.Errorw("teardown finished with errors", "error", err)
		} else {
			p.logger.Infow("teardown finished")
		}
		p.closeErr = err
	})
	return p.closeErr
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
