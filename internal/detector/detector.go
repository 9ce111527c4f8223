package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Default helper timeouts.
const (
	// DefaultResponseTimeout bounds one frame round trip.
	DefaultResponseTimeout = 250 * time.Millisecond
	// DefaultStartTimeout bounds the helper start, model load included.
	DefaultStartTimeout = 15 * time.Second
	// DefaultStopTimeout is the grace period before the helper is killed.
	DefaultStopTimeout = 2 * time.Second
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the search for mediapipe_service.py.
	ScriptPath string

	// Python is the interpreter that runs the script. Empty looks for a
	// virtual environment, then python3.
	Python string

	// ResponseTimeout bounds one Detect round trip. A helper that misses
	// it is killed and restarted in the background.
	ResponseTimeout time.Duration

	// StartTimeout bounds Start, model load included.
	StartTimeout time.Duration

	// StopTimeout is how long Close waits for the helper to exit before
	// killing it.
	StopTimeout time.Duration

	// IdleTimeout stops the helper process after this long without a
	// detection. Zero keeps it running.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ResponseTimeout: DefaultResponseTimeout,
		StartTimeout:    DefaultStartTimeout,
		StopTimeout:     DefaultStopTimeout,
	}
}
