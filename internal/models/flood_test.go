package models

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"floodguard/internal/risk"
)

func TestParseProduct(t *testing.T) {
	tests := []struct {
		in   string
		want Product
	}{
		{"water_level", ProductWaterLevel},
		{"tides", ProductTides},
		{"currents", ProductCurrents},
		{"all", ProductAll},
		{"", ProductAll},
		{"salinity", ProductAll},
		{" Tides ", ProductTides},
	}

	for _, tt := range tests {
		if got := ParseProduct(tt.in); got != tt.want {
			t.Errorf("ParseProduct(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFloodMetrics(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name               string
		water, tide, speed float64
		wantRisk           bool
	}{
		{"high risk", 2.5, 1.8, 3.0, true},
		{"partial risk", 2.5, 1.8, 1.0, false},
		{"all fallback", 1.5, 1.2, 1.8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFloodMetrics(tt.water, tt.tide, tt.speed, ts, "Station 8518750")
			if m.FloodRisk != tt.wantRisk {
				t.Errorf("FloodRisk = %v, want %v", m.FloodRisk, tt.wantRisk)
			}
			if m.Location != "Station 8518750" {
				t.Errorf("Location = %q", m.Location)
			}
		})
	}
}

func TestNewOnChainMetrics(t *testing.T) {
	m := NewOnChainMetrics(0.5, 0.5, 0.5, risk.ThreatHigh)
	if !m.FloodRisk {
		t.Error("High threat level must map to FloodRisk=true regardless of readings")
	}
	m = NewOnChainMetrics(9, 9, 9, risk.ThreatLow)
	if m.FloodRisk {
		t.Error("Low threat level must map to FloodRisk=false regardless of readings")
	}
}

func TestNewFloodSnapshot_FallbackFlags(t *testing.T) {
	ts := time.Unix(1714564800, 0).UTC()
	m := NewFloodMetrics(1.5, 0.9, 1.8, ts, "Station 1")
	m.Fallbacks = []Product{ProductWaterLevel, ProductCurrents}

	s := NewFloodSnapshot("id-1", "1", m, ts.Add(time.Minute))
	if !s.WaterLevelFallback || s.TideFallback || !s.CurrentFallback {
		t.Errorf("unexpected fallback flags: %+v", s)
	}
	if s.ObservedAt != 1714564800 || s.CreatedAt != 1714564860 {
		t.Errorf("unexpected timestamps: %d, %d", s.ObservedAt, s.CreatedAt)
	}
}

func TestNewFundsInfo_TotalIsSum(t *testing.T) {
	wei := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			t.Fatalf("bad int %q", s)
		}
		return v
	}

	tests := []struct {
		name     string
		sponsor  *big.Int
		investor *big.Int
		want     FundsInfo
	}{
		{
			name:     "both zero",
			sponsor:  big.NewInt(0),
			investor: big.NewInt(0),
			want:     FundsInfo{"0", "0", "0"},
		},
		{
			name:     "fractional ether",
			sponsor:  wei("1500000000000000000"),
			investor: wei("250000000000000000"),
			want:     FundsInfo{"1.5", "0.25", "1.75"},
		},
		{
			name:     "one wei each",
			sponsor:  big.NewInt(1),
			investor: big.NewInt(1),
			want:     FundsInfo{"0.000000000000000001", "0.000000000000000001", "0.000000000000000002"},
		},
		{
			name:     "nil treated as zero",
			sponsor:  nil,
			investor: wei("2000000000000000000"),
			want:     FundsInfo{"0", "2", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFundsInfo(tt.sponsor, tt.investor, 18)
			if *got != tt.want {
				t.Errorf("NewFundsInfo = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1000000000000000000", false},
		{"0.5", "500000000000000000", false},
		{"0.000000000000000001", "1", false},
		{"1.0000000000000000000", "1000000000000000000", false},
		{"0.0000000000000000001", "", true},
		{"0", "", true},
		{"-1", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := ParseUnits(tt.in, 18)
		if tt.wantErr {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("ParseUnits(%q) error = %v, want ValidationError", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUnits(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseUnits(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEmptyDeposit(t *testing.T) {
	d := EmptyDeposit()
	if d.Amount != "0" || d.DepositTime != 0 || d.Withdrawn {
		t.Errorf("EmptyDeposit = %+v", d)
	}
}

func TestFloodError(t *testing.T) {
	cause := errors.New("execution reverted: 0x118cdaa7")
	err := fmt.Errorf("submit: %w", NewFloodError(KindAuthorizationDenied, "submitMetrics", "caller is not authorized", cause))

	if got := KindOf(err); got != KindAuthorizationDenied {
		t.Errorf("KindOf = %q", got)
	}
	if got := ReasonOf(err); got != "caller is not authorized" {
		t.Errorf("ReasonOf = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("FloodError should unwrap to its cause")
	}

	var fe *FloodError
	errors.As(err, &fe)
	if fe.IsTransient() {
		t.Error("authorization failures are not transient")
	}

	timeout := &FloodError{Kind: KindGenericFailure, Reason: "timed out", Timeout: true}
	if !IsTimeout(timeout) || !timeout.IsTransient() {
		t.Error("timeouts should be transient and detectable")
	}

	if KindOf(errors.New("plain")) != KindGenericFailure {
		t.Error("unclassified errors should be generic failures")
	}
	if KindOf(nil) != "" {
		t.Error("nil has no kind")
	}
}
