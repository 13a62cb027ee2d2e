package pipeline

import (
	"github.com/banshee-data/lagrangian.tracks/internal/config"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/linking"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/tracks"
)

// Config bundles the stage configurations of one run.
type Config struct {
	Linking linking.Config
	Tracks  tracks.Config
}

// ConfigFromTracking maps the JSON tracking config onto stage configs.
func ConfigFromTracking(tc *config.TrackingConfig) Config {
	fs := tc.GetSamplingFrequencyHz()
	radius := tc.GetSearchRadiusM()
	return Config{
		Linking: linking.Config{
			SamplingFrequencyHz: fs,
			SearchRadius:        radius,
			MaxLookback:         tc.GetMaxLookbackFrames(),
			CoerceZeroVelocity:  tc.GetCoerceZeroVelocity(),
			Strategy:            linking.Strategy(tc.GetAssociationStrategy()),
		},
		Tracks: tracks.Config{
			SamplingFrequencyHz: fs,
			SearchRadius:        radius,
			MaxFramesSkipped:    tc.GetMaxFramesSkipped(),
			FrameOffset:         tc.GetFrameOffset(),
			Workers:             tc.GetAssembleWorkers(),
		},
	}
}

// DefaultConfig returns the stage configs built from the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromTracking(config.DefaultTrackingConfig())
}
