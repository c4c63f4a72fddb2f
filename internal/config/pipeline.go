// Package config loads the tuning file shared by every trajectory
// command. Fields left out of the file fall back to the Get* defaults, so
// partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// PipelineConfig is the root of a tuning file. It parses from JSON or
// YAML with the same keys.
type PipelineConfig struct {
	FPS                    *float64 `json:"fps,omitempty" yaml:"fps,omitempty" validate:"omitempty,gt=0"`
	GPSAngleThresholdDeg   *float64 `json:"gps_angle_threshold_deg,omitempty" yaml:"gps_angle_threshold_deg,omitempty" validate:"omitempty,gte=0,lte=180"`
	TrackAngleThresholdDeg *float64 `json:"track_angle_threshold_deg,omitempty" yaml:"track_angle_threshold_deg,omitempty" validate:"omitempty,gte=0,lte=180"`
	TrackGapFrames         *int     `json:"track_gap_frames,omitempty" yaml:"track_gap_frames,omitempty" validate:"omitempty,gte=0"`
	TrackLookaheadFrames   *int     `json:"track_lookahead_frames,omitempty" yaml:"track_lookahead_frames,omitempty" validate:"omitempty,gte=1"`
	MaxAccAgeSeconds       *float64 `json:"max_acc_age_seconds,omitempty" yaml:"max_acc_age_seconds,omitempty" validate:"omitempty,gt=0"`
	DetectionYawLimitDeg   *float64 `json:"detection_yaw_limit_deg,omitempty" yaml:"detection_yaw_limit_deg,omitempty" validate:"omitempty,gte=0,lte=180"`
	MaxBridgeFrames        *int     `json:"max_bridge_frames,omitempty" yaml:"max_bridge_frames,omitempty" validate:"omitempty,gte=0"`
	SmoothRepeat           *int     `json:"smooth_repeat,omitempty" yaml:"smooth_repeat,omitempty" validate:"omitempty,gte=0,lte=100"`
	EPSG                   *string  `json:"epsg,omitempty" yaml:"epsg,omitempty" validate:"omitempty,epsg"`
}

const maxFileSize = 1 * 1024 * 1024 // 1MB

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// RegisterValidation only fails for an empty or reserved tag.
	_ = v.RegisterValidation("epsg", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == geo.AutoZone {
			return true
		}
		_, err := geo.LookupZone(code)
		return err == nil
	})
	return v
}

// LoadPipelineConfig reads a .json, .yaml or .yml tuning file no larger
// than 1MB and validates it.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	var unmarshal func([]byte, any) error
	switch ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("%w: config file must be .json, .yaml or .yml, got %q", trajectory.ErrConfiguration, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", trajectory.ErrConfiguration, fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", trajectory.ErrConfiguration, cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: invalid configuration: %v", trajectory.ErrConfiguration, err)
	}
	return nil
}

func (c *PipelineConfig) GetFPS() float64 {
	if c.FPS == nil {
		return 30
	}
	return *c.FPS
}

func (c *PipelineConfig) GetGPSAngleThresholdDeg() float64 {
	if c.GPSAngleThresholdDeg == nil {
		return 45
	}
	return *c.GPSAngleThresholdDeg
}

func (c *PipelineConfig) GetTrackAngleThresholdDeg() float64 {
	if c.TrackAngleThresholdDeg == nil {
		return 45
	}
	return *c.TrackAngleThresholdDeg
}

func (c *PipelineConfig) GetTrackGapFrames() int {
	if c.TrackGapFrames == nil {
		return 15
	}
	return *c.TrackGapFrames
}

func (c *PipelineConfig) GetTrackLookaheadFrames() int {
	if c.TrackLookaheadFrames == nil {
		return 30
	}
	return *c.TrackLookaheadFrames
}

func (c *PipelineConfig) GetMaxAccAgeSeconds() float64 {
	if c.MaxAccAgeSeconds == nil {
		return 1
	}
	return *c.MaxAccAgeSeconds
}

func (c *PipelineConfig) GetDetectionYawLimitDeg() float64 {
	if c.DetectionYawLimitDeg == nil {
		return 10
	}
	return *c.DetectionYawLimitDeg
}

// GetMaxBridgeFrames returns the densifier gap limit; 0 bridges every gap.
func (c *PipelineConfig) GetMaxBridgeFrames() int {
	if c.MaxBridgeFrames == nil {
		return 0
	}
	return *c.MaxBridgeFrames
}

func (c *PipelineConfig) GetSmoothRepeat() int {
	if c.SmoothRepeat == nil {
		return 1
	}
	return *c.SmoothRepeat
}

// GetEPSG returns the projection zone code, or geo.AutoZone.
func (c *PipelineConfig) GetEPSG() string {
	if c.EPSG == nil || *c.EPSG == "" {
		return geo.AutoZone
	}
	return *c.EPSG
}

// Params converts the configuration into the value the stages read.
func (c *PipelineConfig) Params() trajectory.Params {
	return trajectory.Params{
		FPS:                  c.GetFPS(),
		GPSAngleThreshold:    c.GetGPSAngleThresholdDeg(),
		TrackAngleThreshold:  c.GetTrackAngleThresholdDeg(),
		TrackGapFrames:       c.GetTrackGapFrames(),
		TrackLookaheadFrames: c.GetTrackLookaheadFrames(),
		MaxAccAge:            c.GetMaxAccAgeSeconds(),
		DetectionYawLimit:    c.GetDetectionYawLimitDeg(),
		MaxBridgeFrames:      c.GetMaxBridgeFrames(),
	}
}
