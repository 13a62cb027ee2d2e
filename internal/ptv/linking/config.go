package linking

import "fmt"

// Strategy selects how detections are paired with predicted positions.
type Strategy string

const (
	// StrategyNearest pairs every detection with its nearest prediction and
	// keeps only the closest detection per predecessor.
	StrategyNearest Strategy = "nearest"
	// StrategyOptimal solves a global minimum-distance assignment.
	StrategyOptimal Strategy = "optimal"
)

// Config holds the linking parameters.
type Config struct {
	SamplingFrequencyHz float64  // Frame rate; Δt = 1/fs
	SearchRadius        float64  // Maximum prediction error accepted (metres)
	MaxLookback         int      // Frames scanned backward for an anchor (0 = unbounded)
	CoerceZeroVelocity  bool     // Map exactly-zero displacement and velocity to undefined
	Strategy            Strategy // Association strategy (default nearest)
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.SamplingFrequencyHz <= 0 {
		return fmt.Errorf("sampling frequency must be positive, got %g", c.SamplingFrequencyHz)
	}
	if c.SearchRadius <= 0 {
		return fmt.Errorf("search radius must be positive, got %g", c.SearchRadius)
	}
	if c.MaxLookback < 0 {
		return fmt.Errorf("max lookback must be non-negative, got %d", c.MaxLookback)
	}
	switch c.Strategy {
	case "", StrategyNearest, StrategyOptimal:
	default:
		return fmt.Errorf("unknown association strategy %q", c.Strategy)
	}
	return nil
}
