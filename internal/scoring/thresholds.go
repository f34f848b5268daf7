package scoring

import (
	"fmt"

	"github.com/savegress/amldesk/pkg/models"
)

// Thresholds holds the band cut points and the clamp bounds.
// Every consumer classifies through the same value so that per-client
// badges and population counts agree.
type Thresholds struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
	Min  int `yaml:"min" json:"min"`
	Max  int `yaml:"max" json:"max"`
}

// DefaultThresholds are the AML cut points used by compliance
var DefaultThresholds = Thresholds{Low: 33, High: 66, Min: 0, Max: 100}

// Validate checks Min <= Low <= High <= Max
func (t Thresholds) Validate() error {
	if t.Min > t.Low || t.Low > t.High || t.High > t.Max {
		return fmt.Errorf("invalid thresholds: want min <= low <= high <= max, got %d/%d/%d/%d",
			t.Min, t.Low, t.High, t.Max)
	}
	return nil
}

// Clamp bounds v to [Min, Max]
func (t Thresholds) Clamp(v int) int {
	if v < t.Min {
		return t.Min
	}
	if v > t.Max {
		return t.Max
	}
	return v
}

// Classify maps a score to its band using half-open intervals:
// [.., Low) is low, [Low, High) is medium, [High, ..] is high.
func (t Thresholds) Classify(score int) models.RiskBand {
	switch {
	case score < t.Low:
		return models.RiskBandLow
	case score < t.High:
		return models.RiskBandMedium
	default:
		return models.RiskBandHigh
	}
}

// Classify uses DefaultThresholds
func Classify(score int) models.RiskBand {
	return DefaultThresholds.Classify(score)
}
