package config

import (
	"fmt"
	"strings"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.Loop.Period <= 0 {
		return fmt.Errorf("loop.period must be > 0")
	}
	if cfg.Loop.MaxReadErrors <= 0 {
		cfg.Loop.MaxReadErrors = 3
	}
	if cfg.Loop.StaleFrames < 0 {
		return fmt.Errorf("loop.stale_frames must be >= 0")
	}

	if cfg.Frame.Width <= 0 || cfg.Frame.Height <= 0 {
		return fmt.Errorf("frame.width and frame.height must be > 0")
	}

	if err := ValidateColor(cfg.Color); err != nil {
		return fmt.Errorf("color validation failed: %w", err)
	}

	if err := ValidateTracking(cfg.Tracking); err != nil {
		return fmt.Errorf("tracking validation failed: %w", err)
	}

	if cfg.Speed < 0 || cfg.Speed > 100 {
		return fmt.Errorf("speed must be in [0, 100]")
	}
	if cfg.SpeedLimit <= 0 {
		cfg.SpeedLimit = 100
	}
	if cfg.Speed > cfg.SpeedLimit {
		return fmt.Errorf("speed %d exceeds speed_limit %d", cfg.Speed, cfg.SpeedLimit)
	}

	if cfg.Gesture.FistHold <= 0 {
		return fmt.Errorf("gesture.fist_hold must be > 0")
	}
	if cfg.Gesture.MaxHands <= 0 {
		cfg.Gesture.MaxHands = 1
	}
	if cfg.Gesture.MaxHands > 1 {
		return fmt.Errorf("gesture.max_hands must be 1: only one operator hand is read")
	}
	if cfg.Gesture.MinConfidence < 0 || cfg.Gesture.MinConfidence > 1 {
		return fmt.Errorf("gesture.min_confidence must be in [0, 1]")
	}
	if cfg.Gesture.MotionThreshold < 0 {
		return fmt.Errorf("gesture.motion_threshold must be >= 0")
	}

	if cfg.Safety.LandBattery < 0 || cfg.Safety.TakeoffBattery > 100 {
		return fmt.Errorf("safety battery floors must be in [0, 100]")
	}
	if cfg.Safety.TakeoffBattery < cfg.Safety.LandBattery {
		return fmt.Errorf("safety.takeoff_battery must be >= safety.land_battery")
	}
	if cfg.Safety.MaxAltitudeCM <= 0 {
		return fmt.Errorf("safety.max_altitude_cm must be > 0")
	}
	if cfg.Safety.WarningDuration <= 0 {
		return fmt.Errorf("safety.warning_duration must be > 0")
	}

	if cfg.Drone.Port == "" {
		return fmt.Errorf("drone.port is required")
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", cfg.Log.Level)
	}
	switch cfg.Log.Encoding {
	case "":
		cfg.Log.Encoding = "console"
	case "console", "json":
	default:
		return fmt.Errorf("unknown log.encoding %q", cfg.Log.Encoding)
	}

	return nil
}

// ValidateColor checks the HSV bounds against the OpenCV scale.
func ValidateColor(c ColorConfig) error {
	r := c.ColorRange
	if r.HMin < 0 || r.HMax > 179 || r.HMin > r.HMax {
		return fmt.Errorf("hue range [%g, %g] outside [0, 179]", r.HMin, r.HMax)
	}
	if r.SMin < 0 || r.SMax > 255 || r.SMin > r.SMax {
		return fmt.Errorf("saturation range [%g, %g] outside [0, 255]", r.SMin, r.SMax)
	}
	if r.VMin < 0 || r.VMax > 255 || r.VMin > r.VMax {
		return fmt.Errorf("value range [%g, %g] outside [0, 255]", r.VMin, r.VMax)
	}
	if c.Blur < 0 {
		return fmt.Errorf("blur must be >= 0")
	}
	return nil
}

// ValidateTracking checks the area bounds and axis thresholds.
func ValidateTracking(t TrackingConfig) error {
	if t.AreaMin < 0 {
		return fmt.Errorf("area_min must be >= 0")
	}
	if t.AreaTooSmall > t.AreaTooLarge {
		return fmt.Errorf("area_too_small %g exceeds area_too_large %g", t.AreaTooSmall, t.AreaTooLarge)
	}
	if t.ThresholdX < 0 || t.ThresholdX >= 0.5 || t.ThresholdY < 0 || t.ThresholdY >= 0.5 {
		return fmt.Errorf("thresholds must be in [0, 0.5)")
	}
	return nil
}
