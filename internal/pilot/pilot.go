// Package pilot runs the perception-to-actuation loop: it reads frames,
// detects the target and the operator's hand, steps the controller, and
// drives the transport.
package pilot

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/capture"
	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/detector"
	"github.com/ayusman/tellopilot/internal/drone"
	"github.com/ayusman/tellopilot/internal/gesture"
	"github.com/ayusman/tellopilot/internal/journal"
	"github.com/ayusman/tellopilot/internal/vision"
)

// EventQueueSize is the capacity of the operator event queue.
const EventQueueSize = 64

var (
	// ErrClosed is returned by Cycle after Close.
	ErrClosed = errors.New("pilot closed")
	// ErrStaleFrame is the read failure of a frozen video feed.
	ErrStaleFrame = errors.New("drone video frozen")
)

// Config holds the loop settings fixed at start.
type Config struct {
	Period time.Duration
	// MaxReadErrors is how many consecutive frame read failures are
	// tolerated before the loop tears down.
	MaxReadErrors int
	// StaleFrames is how many cycles in a row may see the same drone
	// frame before each further one counts as a read failure. It applies
	// to sources that number their frames. Zero disables the check.
	StaleFrames int
	FrameWidth  int
	FrameHeight int
	// Mirror flips gesture camera frames horizontally.
	Mirror bool
	// MotionThreshold gates hand detection on the gesture frames, in
	// percent of changed pixels. Zero disables gating.
	MotionThreshold float64

	Settings Settings
}

// Settings are the live-adjustable parameters.
type Settings struct {
	Vision   vision.Params
	Control  control.Params
	Safety   control.SafetyLimits
	FistHold time.Duration
}

// Journal records notable moments of a session.
type Journal interface {
	Record(e journal.Event) error
}

// Deps are the collaborators of a Pilot. Drone, Frames and Logger are
// required.
type Deps struct {
	Drone drone.Drone
	// Frames is the drone video.
	Frames capture.Source
	// Hands is the gesture camera. Nil reads hands from Frames.
	Hands capture.Source
	// Detector finds hand landmarks. Nil disables gestures.
	Detector detector.Detector
	Journal  Journal
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
}

// Status is the operator-facing snapshot of the last cycle.
type Status struct {
	At         time.Time               `json:"at"`
	Cycle      uint64                  `json:"cycle"`
	State      control.FlightState     `json:"state"`
	BatteryPct int                     `json:"battery_pct"`
	AltitudeCM int                     `json:"altitude_cm"`
	Speed      int                     `json:"speed"`
	Command    control.VelocityCommand `json:"command"`
	Target     *vision.Target          `json:"target,omitempty"`
	Label      gesture.Label           `json:"gesture"`
	Warning    *control.Warning        `json:"warning,omitempty"`
}

// Pilot owns the controller and every resource the loop touches. Cycle,
// Run and Close serialize on an internal lock; Submit, Apply, Status and
// OnStatus may be called from any goroutine.
type Pilot struct {
	cfg      Config
	ctrl     *control.Controller
	drone    drone.Drone
	frames   capture.Source
	hands    capture.Source
	detector detector.Detector
	motion   *capture.MotionDetector
	journal  Journal
	clock    clock.Clock
	logger   *zap.SugaredLogger
	preview  *capture.Latest

	events chan control.Event

	settingsMu sync.Mutex
	settings   *Settings

	mu         sync.Mutex
	vision     vision.Params
	pending    []control.Event
	readErrors int
	lastSeq    uint64
	stale      int
	lastHand   *detector.HandLandmarks
	cycles     uint64
	closed     bool
	closeOnce  sync.Once
	closeErr   error

	statusMu  sync.RWMutex
	status    Status
	observers []func(Status)
}

// New creates a grounded Pilot.
func New(cfg Config, deps Deps) *Pilot {
	if cfg.MaxReadErrors <= 0 {
		cfg.MaxReadErrors = 3
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	s := cfg.Settings
	p := &Pilot{
		cfg:      cfg,
		ctrl:     control.NewController(s.Control, s.Safety, s.FistHold),
		drone:    deps.Drone,
		frames:   deps.Frames,
		hands:    deps.Hands,
		detector: deps.Detector,
		journal:  deps.Journal,
		clock:    deps.Clock,
		logger:   deps.Logger,
		preview:  capture.NewLatest(),
		events:   make(chan control.Event, EventQueueSize),
		vision:   s.Vision,
	}
	if deps.Detector != nil && cfg.MotionThreshold > 0 {
		p.motion = capture.NewMotionDetector(cfg.MotionThreshold)
	}
	p.status = Status{State: control.Grounded, Speed: s.Control.Speed}
	return p
}

// Submit queues an operator event for the next cycle. It never blocks and
// reports false when the queue is full and the event was dropped.
func (p *Pilot) Submit(ev control.Event) bool {
	select {
	case p.events <- ev:
		return true
	default:
		p.logger.Warnw("event queue full, dropping event", "kind", ev.Kind, "source", ev.Source)
		return false
	}
}

// Apply replaces the live-adjustable parameters from the next cycle on.
// Only the most recent call before a cycle takes effect.
func (p *Pilot) Apply(s Settings) {
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()
	p.settings = &s
}

// Settings returns the parameters in effect.
func (p *Pilot) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Settings{
		Vision:   p.vision,
		Control:  p.ctrl.Params(),
		Safety:   p.ctrl.Monitor().Limits(),
		FistHold: p.ctrl.Classifier().Hold(),
	}
}

// Status returns the snapshot of the last completed cycle.
func (p *Pilot) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

// OnStatus registers fn to receive every new status. Observers run on the
// loop goroutine, must not block, and must not call State, Settings,
// Cycle or Close.
func (p *Pilot) OnStatus(fn func(Status)) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Preview is the mailbox holding the last processed drone frame.
func (p *Pilot) Preview() *capture.Latest {
	return p.preview
}

// State returns the flight state.
func (p *Pilot) State() control.FlightState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrl.State()
}

func (p *Pilot) publish(s Status) {
	p.statusMu.Lock()
	p.status = s
	observers := make([]func(Status), len(p.observers))
	copy(observers, p.observers)
	p.statusMu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// takeSettings applies a pending Apply call. Caller holds p.mu.
func (p *Pilot) takeSettings() {
	p.settingsMu.Lock()
	s := p.settings
	p.settings = nil
	p.settingsMu.Unlock()

	if s == nil {
		return
	}
	p.vision = s.Vision
	p.ctrl.SetParams(s.Control)
	p.ctrl.Monitor().SetLimits(s.Safety)
	p.ctrl.Classifier().SetHold(s.FistHold)
	p.logger.Infow("settings applied",
		"speed", s.Control.Speed,
		"area_min", s.Vision.MinArea,
		"tracking", s.Control.Tracking,
		"gestures", s.Control.Gestures,
	)
}

// drainEvents moves queued events to the pending list. Caller holds p.mu.
func (p *Pilot) drainEvents() {
	for {
		select {
		case ev := <-p.events:
			p.pending = append(p.pending, ev)
		default:
			return
		}
	}
}

func (p *Pilot) quitPending() bool {
	for _, ev := range p.pending {
		if ev.IsQuit() {
			return true
		}
	}
	return false
}

func (p *Pilot) record(kind journal.EventKind, detail string, t control.Telemetry) {
	if p.journal == nil {
		return
	}
	err := p.journal.Record(journal.Event{
		At:         p.clock.Now(),
		Kind:       kind,
		Detail:     detail,
		BatteryPct: t.BatteryPct,
		AltitudeCM: t.AltitudeCM,
	})
	if err != nil {
		p.logger.Warnw("journal record failed", "kind", kind, "error", err)
	}
}
