// Package risk derives flood risk from instantaneous readings or from the
// threat level reported by the relief-fund contract.
package risk

// Thresholds shared with the contract's own risk logic. A reading equal to a
// threshold is not a risk.
const (
	WaterLevelThreshold     = 2.00 // meters
	TidePredictionThreshold = 1.50 // meters
	CurrentSpeedThreshold   = 2.00 // cm/s
)

// Evaluate reports whether all three readings exceed their thresholds
func Evaluate(waterLevel, tidePrediction, currentSpeed float64) bool {
	return waterLevel > WaterLevelThreshold &&
		tidePrediction > TidePredictionThreshold &&
		currentSpeed > CurrentSpeedThreshold
}

// ThresholdSet is the named triple used by docs and the CLI
type ThresholdSet struct {
	WaterLevel     float64 `json:"waterLevel" yaml:"waterLevel"`
	TidePrediction float64 `json:"tidePrediction" yaml:"tidePrediction"`
	CurrentSpeed   float64 `json:"currentSpeed" yaml:"currentSpeed"`
}

// Thresholds returns the fixed evaluation thresholds
func Thresholds() ThresholdSet {
	return ThresholdSet{
		WaterLevel:     WaterLevelThreshold,
		TidePrediction: TidePredictionThreshold,
		CurrentSpeed:   CurrentSpeedThreshold,
	}
}

// ThreatLevel is the contract's tri-level classification
type ThreatLevel uint8

const (
	ThreatUnknown ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatUnknown:
		return "unknown"
	case ThreatLow:
		return "low"
	case ThreatMedium:
		return "medium"
	case ThreatHigh:
		return "high"
	default:
		return "invalid"
	}
}

// FromThreatLevel maps an on-chain threat level to the boolean flood risk.
// The mapping is lossy; there is deliberately no inverse.
func FromThreatLevel(level ThreatLevel) bool {
	return level >= ThreatMedium
}
