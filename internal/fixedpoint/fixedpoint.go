// Package fixedpoint converts readings to and from the ×100 integer encoding
// the relief-fund contract stores.
package fixedpoint

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"floodguard/internal/models"
)

// Scale is shared by all three metric fields
const Scale = 100

var scale = decimal.NewFromInt(Scale)

// Encode returns floor(x*100). The product is computed in decimal so that
// values like 1.15 encode to 115 rather than the binary-float 114.
func Encode(x float64) (uint64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, &models.ValidationError{
			Field:   "value",
			Value:   fmt.Sprintf("%v", x),
			Message: "value must be a finite number",
		}
	}
	if x < 0 {
		return 0, &models.ValidationError{
			Field:   "value",
			Value:   fmt.Sprintf("%v", x),
			Message: "value must not be negative",
		}
	}

	scaled := decimal.NewFromFloat(x).Mul(scale).Floor()
	if !scaled.BigInt().IsUint64() {
		return 0, &models.ValidationError{
			Field:   "value",
			Value:   fmt.Sprintf("%v", x),
			Message: "value is too large to encode",
		}
	}
	return scaled.BigInt().Uint64(), nil
}

// Decode returns n/100
func Decode(n uint64) float64 {
	return float64(n) / Scale
}

// EncodeMetrics encodes the three readings of m
func EncodeMetrics(m *models.FloodMetrics) (models.FixedPointMetrics, error) {
	var out models.FixedPointMetrics
	var err error

	if out.WaterLevel, err = Encode(m.WaterLevel); err != nil {
		return out, fieldError("waterLevel", err)
	}
	if out.TidePrediction, err = Encode(m.TidePrediction); err != nil {
		return out, fieldError("tidePrediction", err)
	}
	if out.CurrentSpeed, err = Encode(m.CurrentSpeed); err != nil {
		return out, fieldError("currentSpeed", err)
	}
	return out, nil
}

// DecodeMetrics decodes the three integers back into readings
func DecodeMetrics(fp models.FixedPointMetrics) (waterLevel, tidePrediction, currentSpeed float64) {
	return Decode(fp.WaterLevel), Decode(fp.TidePrediction), Decode(fp.CurrentSpeed)
}

func fieldError(field string, err error) error {
	if ve, ok := err.(*models.ValidationError); ok {
		return &models.ValidationError{
			Field:   field,
			Value:   ve.Value,
			Message: fmt.Sprintf("%s: %s", field, ve.Message),
		}
	}
	return err
}
