package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/vision"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) error = %v", err)
	}

	if diff := cmp.Diff(control.DefaultSafetyLimits(), cfg.SafetyLimits()); diff != "" {
		t.Errorf("SafetyLimits() mismatch (-want +got):\n%s", diff)
	}
	if cfg.Loop.Period != 50*time.Millisecond {
		t.Errorf("Loop.Period = %v, want 50ms", cfg.Loop.Period)
	}
	if cfg.Gesture.FistHold != time.Second {
		t.Errorf("Gesture.FistHold = %v, want 1s", cfg.Gesture.FistHold)
	}
	if cfg.Gesture.MaxHands != 1 {
		t.Errorf("Gesture.MaxHands = %d, want 1", cfg.Gesture.MaxHands)
	}
	if got := cfg.DetectorConfig().MaxHands; got != 1 {
		t.Errorf("DetectorConfig().MaxHands = %d, want 1", got)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	data := []byte(`
loop:
  period: 30ms
color:
  h_min: 100
  h_max: 130
  s_min: 80
  s_max: 255
  v_min: 40
  v_max: 255
  blur: 5
tracking:
  area_min: 500
speed: 40
safety:
  max_altitude_cm: 200
  warning_duration: 2s
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Loop.Period != 30*time.Millisecond {
		t.Errorf("Loop.Period = %v, want 30ms", cfg.Loop.Period)
	}
	if cfg.Loop.MaxReadErrors != 3 {
		t.Errorf("Loop.MaxReadErrors = %d, want default 3", cfg.Loop.MaxReadErrors)
	}

	wantVision := vision.Params{
		Range:   vision.ColorRange{HMin: 100, HMax: 130, SMin: 80, SMax: 255, VMin: 40, VMax: 255},
		MinArea: 500,
		Blur:    5,
	}
	if diff := cmp.Diff(wantVision, cfg.VisionParams()); diff != "" {
		t.Errorf("VisionParams() mismatch (-want +got):\n%s", diff)
	}

	limits := cfg.SafetyLimits()
	if limits.MaxAltitudeCM != 200 || limits.WarningDuration != 2*time.Second {
		t.Errorf("SafetyLimits() = %+v", limits)
	}
	if limits.LandBattery != 10 || limits.TakeoffBattery != 15 {
		t.Errorf("battery floors changed: %+v", limits)
	}

	if cfg.Speed != 40 {
		t.Errorf("Speed = %d, want 40", cfg.Speed)
	}
}

func TestControlParams(t *testing.T) {
	cfg := Default()
	got := cfg.ControlParams()

	want := control.Params{
		Speed:      30,
		SpeedLimit: 100,
		Geometry:   control.Geometry{CenterX: 320, CenterY: 240, ThresholdX: 96, ThresholdY: 72},
		Area:       control.AreaBounds{TooSmall: 1500, TooLarge: 20000},
		Tracking:   true,
		Gestures:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ControlParams() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectorConfig(t *testing.T) {
	cfg := Default()
	cfg.Gesture.MinConfidence = 0.7
	cfg.Gesture.Script = "/opt/tellopilot/mediapipe_service.py"

	got := cfg.DetectorConfig()
	if got.MaxHands != 1 || got.MinConfidence != 0.7 || got.ScriptPath != cfg.Gesture.Script {
		t.Errorf("DetectorConfig() = %+v", got)
	}
}

func TestKeepStartup(t *testing.T) {
	startup := Default()

	next, err := Parse([]byte(`
frame:
  width: 320
  height: 240
speed: 45
server:
  addr: ":9090"
tracking:
  threshold_x: 0.2
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	changed := next.KeepStartup(startup)
	if diff := cmp.Diff([]string{"frame", "server"}, changed); diff != "" {
		t.Errorf("KeepStartup() mismatch (-want +got):\n%s", diff)
	}
	if next.Frame != startup.Frame || next.Server != startup.Server {
		t.Errorf("startup sections not restored: frame %+v, server %+v", next.Frame, next.Server)
	}
	if next.Speed != 45 || next.Tracking.ThresholdX != 0.2 {
		t.Errorf("live settings lost: speed %d, threshold_x %v", next.Speed, next.Tracking.ThresholdX)
	}

	want := control.NewGeometry(640, 480, 0.2, 0.15)
	if diff := cmp.Diff(want, next.ControlParams().Geometry); diff != "" {
		t.Errorf("Geometry mismatch (-want +got):\n%s", diff)
	}

	if changed := Default().KeepStartup(startup); len(changed) != 0 {
		t.Errorf("KeepStartup() on an identical config = %v, want none", changed)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"malformed", "loop: [", "failed to parse config"},
		{"zero period", "loop:\n  period: 0s", "loop.period"},
		{"hue out of range", "color:\n  h_max: 200", "hue range"},
		{"inverted saturation", "color:\n  s_min: 200\n  s_max: 100", "saturation range"},
		{"negative blur", "color:\n  blur: -1", "blur"},
		{"inverted area bounds", "tracking:\n  area_too_small: 30000", "area_too_small"},
		{"threshold too wide", "tracking:\n  threshold_x: 0.5", "thresholds"},
		{"speed above limit", "speed: 60\nspeed_limit: 50", "exceeds speed_limit"},
		{"takeoff floor below land floor", "safety:\n  land_battery: 20\n  takeoff_battery: 15", "takeoff_battery"},
		{"zero fist hold", "gesture:\n  fist_hold: 0s", "fist_hold"},
		{"two hands", "gesture:\n  max_hands: 2", "gesture.max_hands"},
		{"negative stale frames", "loop:\n  stale_frames: -1", "loop.stale_frames"},
		{"mqtt qos", "mqtt:\n  broker: localhost:1883\n  qos: 3", "mqtt.qos"},
		{"log level", "log:\n  level: loud", "log.level"},
		{"log encoding", "log:\n  encoding: xml", "log.encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil for a missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want a not-exist error", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tellopilot.yaml")
	if err := os.WriteFile(path, []byte("speed: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t).Sugar(), func(c *Config) {
			reloaded <- c
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)

	// An invalid file is skipped.
	if err := os.WriteFile(path, []byte("speed: 500\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(path, []byte("speed: 45\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Speed != 45 {
			t.Errorf("reloaded Speed = %d, want 45", cfg.Speed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
