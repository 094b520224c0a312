package fixedpoint

import (
	"errors"
	"math"
	"testing"
	"time"

	"floodguard/internal/models"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in   float64
		want uint64
	}{
		{0, 0},
		{1.5, 150},
		{1.15, 115},
		{2.01, 201},
		{0.29, 29},
		{1.999, 199},
		{2.5, 250},
		{0.009, 0},
		{123.456, 12345},
	}

	for _, tt := range tests {
		got, err := Encode(tt.in)
		if err != nil {
			t.Errorf("Encode(%v) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Encode(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncode_RejectsInvalid(t *testing.T) {
	for _, in := range []float64{-0.01, -5, math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
		_, err := Encode(in)
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Encode(%v) error = %v, want ValidationError", in, err)
		}
	}
}

func TestRoundTrip_TwoDecimals(t *testing.T) {
	// every value with at most two fractional digits survives the round trip
	for cents := 0; cents <= 100000; cents++ {
		x := float64(cents) / 100
		n, err := Encode(x)
		if err != nil {
			t.Fatalf("Encode(%v): %v", x, err)
		}
		if got := Decode(n); got != x {
			t.Fatalf("Decode(Encode(%v)) = %v", x, got)
		}
	}
}

func TestRoundTrip_Truncates(t *testing.T) {
	for _, x := range []float64{0.001, 1.159, 2.999, 3.14159, 7.777} {
		n, err := Encode(x)
		if err != nil {
			t.Fatalf("Encode(%v): %v", x, err)
		}
		got := Decode(n)
		if got > x {
			t.Errorf("Decode(Encode(%v)) = %v rounds up", x, got)
		}
		if x-got >= 0.01 {
			t.Errorf("Decode(Encode(%v)) = %v loses more than 0.01", x, got)
		}
	}
}

func TestEncode_Monotonic(t *testing.T) {
	prev := uint64(0)
	for i := 0; i <= 5000; i++ {
		x := float64(i) * 0.0037
		n, err := Encode(x)
		if err != nil {
			t.Fatalf("Encode(%v): %v", x, err)
		}
		if n < prev {
			t.Fatalf("Encode not monotonic at %v: %d < %d", x, n, prev)
		}
		prev = n
	}
}

func TestEncodeMetrics(t *testing.T) {
	m := models.NewFloodMetrics(2.5, 1.8, 3.0, time.Now(), "Station 1")
	fp, err := EncodeMetrics(m)
	if err != nil {
		t.Fatalf("EncodeMetrics: %v", err)
	}
	want := models.FixedPointMetrics{WaterLevel: 250, TidePrediction: 180, CurrentSpeed: 300}
	if fp != want {
		t.Errorf("EncodeMetrics = %+v, want %+v", fp, want)
	}

	w, tide, c := DecodeMetrics(fp)
	if w != 2.5 || tide != 1.8 || c != 3.0 {
		t.Errorf("DecodeMetrics = %v, %v, %v", w, tide, c)
	}

	m.TidePrediction = -1
	_, err = EncodeMetrics(m)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "tidePrediction" {
		t.Errorf("EncodeMetrics negative tide error = %v", err)
	}
}
