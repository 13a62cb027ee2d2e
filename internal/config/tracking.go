package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tracking defaults file.
const DefaultConfigPath = "config/tracking.defaults.json"

// Association strategy names accepted by association_strategy.
const (
	StrategyNearest = "nearest"
	StrategyOptimal = "optimal"
)

// TrackingConfig is the root configuration for a tracking run. Every
// field is optional; the Get* accessors supply defaults for absent ones.
type TrackingConfig struct {
	// Linking params
	SamplingFrequencyHz *float64 `json:"sampling_frequency_hz,omitempty"`
	SearchRadiusM       *float64 `json:"search_radius_m,omitempty"`
	MaxLookbackFrames   *int     `json:"max_lookback_frames,omitempty"`
	CoerceZeroVelocity  *bool    `json:"coerce_zero_velocity,omitempty"`
	AssociationStrategy *string  `json:"association_strategy,omitempty"`

	// Assembly and repair params
	MaxFramesSkipped *int `json:"max_frames_skipped,omitempty"`
	FrameOffset      *int `json:"frame_offset,omitempty"`
	AssembleWorkers  *int `json:"assemble_workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackingConfig returns a TrackingConfig with all fields set to nil.
func EmptyTrackingConfig() *TrackingConfig {
	return &TrackingConfig{}
}

// DefaultTrackingConfig returns a TrackingConfig with every field set to
// its built-in default.
func DefaultTrackingConfig() *TrackingConfig {
	c := EmptyTrackingConfig()
	return &TrackingConfig{
		SamplingFrequencyHz: ptrFloat64(c.GetSamplingFrequencyHz()),
		SearchRadiusM:       ptrFloat64(c.GetSearchRadiusM()),
		MaxLookbackFrames:   ptrInt(c.GetMaxLookbackFrames()),
		CoerceZeroVelocity:  ptrBool(c.GetCoerceZeroVelocity()),
		AssociationStrategy: ptrString(c.GetAssociationStrategy()),
		MaxFramesSkipped:    ptrInt(c.GetMaxFramesSkipped()),
		FrameOffset:         ptrInt(c.GetFrameOffset()),
		AssembleWorkers:     ptrInt(c.GetAssembleWorkers()),
	}
}

// LoadTrackingConfig loads a TrackingConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
// Fields omitted from the file fall back to defaults, so partial configs
// are safe.
func LoadTrackingConfig(path string) (*TrackingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TrackingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/ptv/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTrackingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TrackingConfig) Validate() error {
	if c.SamplingFrequencyHz != nil && *c.SamplingFrequencyHz <= 0 {
		return fmt.Errorf("sampling_frequency_hz must be positive, got %g", *c.SamplingFrequencyHz)
	}
	if c.SearchRadiusM != nil && *c.SearchRadiusM <= 0 {
		return fmt.Errorf("search_radius_m must be positive, got %g", *c.SearchRadiusM)
	}
	if c.MaxLookbackFrames != nil && *c.MaxLookbackFrames < 0 {
		return fmt.Errorf("max_lookback_frames must be non-negative, got %d", *c.MaxLookbackFrames)
	}
	if c.MaxFramesSkipped != nil && *c.MaxFramesSkipped < 0 {
		return fmt.Errorf("max_frames_skipped must be non-negative, got %d", *c.MaxFramesSkipped)
	}
	if c.AssembleWorkers != nil && *c.AssembleWorkers < 1 {
		return fmt.Errorf("assemble_workers must be at least 1, got %d", *c.AssembleWorkers)
	}
	if c.AssociationStrategy != nil {
		switch *c.AssociationStrategy {
		case StrategyNearest, StrategyOptimal:
		default:
			return fmt.Errorf("association_strategy must be %q or %q, got %q",
				StrategyNearest, StrategyOptimal, *c.AssociationStrategy)
		}
	}
	return nil
}

// GetSamplingFrequencyHz returns the sampling_frequency_hz value or the default.
func (c *TrackingConfig) GetSamplingFrequencyHz() float64 {
	if c.SamplingFrequencyHz == nil {
		return 100.0
	}
	return *c.SamplingFrequencyHz
}

// GetSearchRadiusM returns the search_radius_m value or the default.
func (c *TrackingConfig) GetSearchRadiusM() float64 {
	if c.SearchRadiusM == nil {
		return 0.01
	}
	return *c.SearchRadiusM
}

// GetMaxLookbackFrames returns the max_lookback_frames value or the default
// (0: scan back to the first frame).
func (c *TrackingConfig) GetMaxLookbackFrames() int {
	if c.MaxLookbackFrames == nil {
		return 0
	}
	return *c.MaxLookbackFrames
}

// GetCoerceZeroVelocity returns the coerce_zero_velocity value or the default.
func (c *TrackingConfig) GetCoerceZeroVelocity() bool {
	if c.CoerceZeroVelocity == nil {
		return true
	}
	return *c.CoerceZeroVelocity
}

// GetAssociationStrategy returns the association_strategy value or the default.
func (c *TrackingConfig) GetAssociationStrategy() string {
	if c.AssociationStrategy == nil || *c.AssociationStrategy == "" {
		return StrategyNearest
	}
	return *c.AssociationStrategy
}

// GetMaxFramesSkipped returns the max_frames_skipped value or the default.
func (c *TrackingConfig) GetMaxFramesSkipped() int {
	if c.MaxFramesSkipped == nil {
		return 1
	}
	return *c.MaxFramesSkipped
}

// GetFrameOffset returns the frame_offset value or the default.
func (c *TrackingConfig) GetFrameOffset() int {
	if c.FrameOffset == nil {
		return -2
	}
	return *c.FrameOffset
}

// GetAssembleWorkers returns the assemble_workers value or the default.
func (c *TrackingConfig) GetAssembleWorkers() int {
	if c.AssembleWorkers == nil {
		return 4
	}
	return *c.AssembleWorkers
}

// SetSamplingFrequencyHz overrides sampling_frequency_hz.
func (c *TrackingConfig) SetSamplingFrequencyHz(v float64) { c.SamplingFrequencyHz = ptrFloat64(v) }

// SetSearchRadiusM overrides search_radius_m.
func (c *TrackingConfig) SetSearchRadiusM(v float64) { c.SearchRadiusM = ptrFloat64(v) }

// SetMaxFramesSkipped overrides max_frames_skipped.
func (c *TrackingConfig) SetMaxFramesSkipped(v int) { c.MaxFramesSkipped = ptrInt(v) }

// SetAssociationStrategy overrides association_strategy.
func (c *TrackingConfig) SetAssociationStrategy(v string) { c.AssociationStrategy = ptrString(v) }

// SetCoerceZeroVelocity overrides coerce_zero_velocity.
func (c *TrackingConfig) SetCoerceZeroVelocity(v bool) { c.CoerceZeroVelocity = ptrBool(v) }
