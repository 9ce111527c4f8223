// Package config loads the tellopilot YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/detector"
	"github.com/ayusman/tellopilot/internal/vision"
)

// Config represents the complete tellopilot configuration
type Config struct {
	Loop       LoopConfig     `yaml:"loop"`
	Frame      FrameConfig    `yaml:"frame"`
	Color      ColorConfig    `yaml:"color"`
	Tracking   TrackingConfig `yaml:"tracking"`
	Speed      int            `yaml:"speed"`       // magnitude of every bang-bang decision
	SpeedLimit int            `yaml:"speed_limit"` // clamp applied to the final command
	Gesture    GestureConfig  `yaml:"gesture"`
	Safety     SafetyConfig   `yaml:"safety"`
	Drone      DroneConfig    `yaml:"drone"`
	Server     ServerConfig   `yaml:"server"`
	Journal    JournalConfig  `yaml:"journal"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
	Log        LogConfig      `yaml:"log"`
}

// LoopConfig contains control loop timing
type LoopConfig struct {
	Period        time.Duration `yaml:"period"`
	MaxReadErrors int           `yaml:"max_read_errors"` // consecutive frame read failures before teardown
	StaleFrames   int           `yaml:"stale_frames"`    // cycles on an unchanged drone frame before it counts as a read failure, 0 disables
}

// FrameConfig is the size every frame is resized to before detection
type FrameConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ColorConfig is the tracked HSV range plus optional blur
type ColorConfig struct {
	vision.ColorRange `yaml:",inline"`
	Blur              int `yaml:"blur"` // gaussian kernel size, 0 disables
}

// TrackingConfig contains color tracking settings
type TrackingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	AreaMin      float64 `yaml:"area_min"`
	AreaTooSmall float64 `yaml:"area_too_small"`
	AreaTooLarge float64 `yaml:"area_too_large"`
	ThresholdX   float64 `yaml:"threshold_x"` // fraction of frame width
	ThresholdY   float64 `yaml:"threshold_y"` // fraction of frame height
}

// GestureConfig contains hand gesture settings
type GestureConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CameraID        int           `yaml:"camera_id"` // -1 reads gestures from the drone feed
	Mirror          bool          `yaml:"mirror"`
	FistHold        time.Duration `yaml:"fist_hold"`
	MaxHands        int           `yaml:"max_hands"`
	MinConfidence   float64       `yaml:"min_confidence"`
	MotionThreshold float64       `yaml:"motion_threshold"` // percent of changed pixels, 0 disables gating
	Script          string        `yaml:"script"`           // mediapipe_service.py, searched for when empty
	Python          string        `yaml:"python"`           // interpreter for the script, searched for when empty
}

// SafetyConfig contains the interlock thresholds
type SafetyConfig struct {
	LandBattery     int           `yaml:"land_battery"`
	TakeoffBattery  int           `yaml:"takeoff_battery"`
	MaxAltitudeCM   int           `yaml:"max_altitude_cm"`
	WarningDuration time.Duration `yaml:"warning_duration"`
}

// DroneConfig contains Tello transport settings
type DroneConfig struct {
	Port           string        `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ServerConfig contains the HTTP status server settings
type ServerConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// JournalConfig contains flight journal settings
type JournalConfig struct {
	Path string `yaml:"path"` // empty disables the journal
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // console, json
	File     string `yaml:"file"`     // rotated log file, empty logs to stderr only
}

// Default returns the stock configuration.
func Default() *Config {
	limits := control.DefaultSafetyLimits()
	det := detector.DefaultConfig()
	return &Config{
		Loop:  LoopConfig{Period: 50 * time.Millisecond, MaxReadErrors: 3, StaleFrames: 20},
		Frame: FrameConfig{Width: 640, Height: 480},
		Color: ColorConfig{ColorRange: vision.GreenCube},
		Tracking: TrackingConfig{
			Enabled:      true,
			AreaMin:      300,
			AreaTooSmall: 1500,
			AreaTooLarge: 20000,
			ThresholdX:   0.15,
			ThresholdY:   0.15,
		},
		Speed:      30,
		SpeedLimit: 100,
		Gesture: GestureConfig{
			Enabled:       true,
			CameraID:      0,
			Mirror:        true,
			FistHold:      time.Second,
			MaxHands:      det.MaxHands,
			MinConfidence: det.MinConfidence,
		},
		Safety: SafetyConfig{
			LandBattery:     limits.LandBattery,
			TakeoffBattery:  limits.TakeoffBattery,
			MaxAltitudeCM:   limits.MaxAltitudeCM,
			WarningDuration: limits.WarningDuration,
		},
		Drone:  DroneConfig{Port: "8890", ConnectTimeout: 10 * time.Second},
		Server: ServerConfig{Addr: ":8080"},
		MQTT:   MQTTConfig{Topic: "tellopilot/status", ClientID: "tellopilot"},
		Log:    LogConfig{Level: "info", Encoding: "console"},
	}
}

// KeepStartup copies the sections that only take effect at startup from
// startup into c and returns the names of those that differed. A reloaded
// file cannot move the frame size, loop timing, transports or sinks of a
// running pilot.
func (c *Config) KeepStartup(startup *Config) []string {
	var changed []string
	if c.Loop != startup.Loop {
		changed = append(changed, "loop")
		c.Loop = startup.Loop
	}
	if c.Frame != startup.Frame {
		changed = append(changed, "frame")
		c.Frame = startup.Frame
	}
	if c.Drone != startup.Drone {
		changed = append(changed, "drone")
		c.Drone = startup.Drone
	}
	if c.Server != startup.Server {
		changed = append(changed, "server")
		c.Server = startup.Server
	}
	if c.Journal != startup.Journal {
		changed = append(changed, "journal")
		c.Journal = startup.Journal
	}
	if c.MQTT != startup.MQTT {
		changed = append(changed, "mqtt")
		c.MQTT = startup.MQTT
	}
	if c.Log != startup.Log {
		changed = append(changed, "log")
		c.Log = startup.Log
	}
	return changed
}

// Load reads and parses a YAML configuration file. Keys missing from the
// file keep their Default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// VisionParams returns the detector parameters.
func (c *Config) VisionParams() vision.Params {
	return vision.Params{
		Range:   c.Color.ColorRange,
		MinArea: c.Tracking.AreaMin,
		Blur:    c.Color.Blur,
	}
}

// ControlParams returns the controller parameters.
func (c *Config) ControlParams() control.Params {
	return control.Params{
		Speed:      c.Speed,
		SpeedLimit: c.SpeedLimit,
		Geometry:   control.NewGeometry(c.Frame.Width, c.Frame.Height, c.Tracking.ThresholdX, c.Tracking.ThresholdY),
		Area: control.AreaBounds{
			TooSmall: c.Tracking.AreaTooSmall,
			TooLarge: c.Tracking.AreaTooLarge,
		},
		Tracking: c.Tracking.Enabled,
		Gestures: c.Gesture.Enabled,
	}
}

// SafetyLimits returns the interlock thresholds.
func (c *Config) SafetyLimits() control.SafetyLimits {
	return control.SafetyLimits{
		LandBattery:     c.Safety.LandBattery,
		TakeoffBattery:  c.Safety.TakeoffBattery,
		MaxAltitudeCM:   c.Safety.MaxAltitudeCM,
		WarningDuration: c.Safety.WarningDuration,
	}
}

// DetectorConfig returns the hand detector settings.
func (c *Config) DetectorConfig() detector.Config {
	det := detector.DefaultConfig()
	det.MaxHands = c.Gesture.MaxHands
	det.MinConfidence = c.Gesture.MinConfidence
	det.ScriptPath = c.Gesture.Script
	det.Python = c.Gesture.Python
	return det
}
