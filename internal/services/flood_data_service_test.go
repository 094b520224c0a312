package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"floodguard/internal/models"
	"floodguard/internal/noaa"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// fakeSource returns canned readings or errors per product
type fakeSource struct {
	mu       sync.Mutex
	values   map[models.Product]float64
	errs     map[models.Product]error
	calls    []models.Product
	stations []string
}

func (f *fakeSource) Fetch(ctx context.Context, product models.Product, station string) (*models.Reading, error) {
	f.mu.Lock()
	f.calls = append(f.calls, product)
	f.stations = append(f.stations, station)
	f.mu.Unlock()

	if err := f.errs[product]; err != nil {
		return nil, err
	}
	v, ok := f.values[product]
	if !ok {
		return nil, fmt.Errorf("%s: %w", product, noaa.ErrNoData)
	}
	return &models.Reading{Value: v, StationID: station, Product: product, Timestamp: time.Now()}, nil
}

var defaultFallbacks = Fallbacks{WaterLevel: 1.5, TidePrediction: 1.2, CurrentSpeed: 1.8}

func newFloodDataService(src MetricSource, fallbackEnabled bool) (*FloodDataService, *metrics.Collector) {
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	svc := NewFloodDataService(src, FloodDataOptions{
		DefaultStation:  "8518750",
		Timeout:         time.Second,
		FallbackEnabled: fallbackEnabled,
		Fallbacks:       defaultFallbacks,
	}, logging.NewNopLogger(), collector)
	return svc, collector
}

func TestFetchMetrics_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		values        map[models.Product]float64
		errs          map[models.Product]error
		want          [3]float64
		wantRisk      bool
		wantFallbacks int
	}{
		{
			name:          "all fallback",
			values:        map[models.Product]float64{},
			want:          [3]float64{1.5, 1.2, 1.8},
			wantRisk:      false,
			wantFallbacks: 3,
		},
		{
			name: "high risk",
			values: map[models.Product]float64{
				models.ProductWaterLevel: 2.5,
				models.ProductTides:      1.8,
				models.ProductCurrents:   3.0,
			},
			want:     [3]float64{2.5, 1.8, 3.0},
			wantRisk: true,
		},
		{
			name: "partial risk",
			values: map[models.Product]float64{
				models.ProductWaterLevel: 2.5,
				models.ProductTides:      1.8,
				models.ProductCurrents:   1.0,
			},
			want:     [3]float64{2.5, 1.8, 1.0},
			wantRisk: false,
		},
		{
			name: "one product errors, others survive",
			values: map[models.Product]float64{
				models.ProductWaterLevel: 2.5,
				models.ProductTides:      1.8,
			},
			errs: map[models.Product]error{
				models.ProductCurrents: errors.New("connection reset"),
			},
			want:          [3]float64{2.5, 1.8, 1.8},
			wantRisk:      false,
			wantFallbacks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{values: tt.values, errs: tt.errs}
			svc, _ := newFloodDataService(src, true)

			m, err := svc.FetchMetrics(context.Background(), "", models.ProductAll)
			if err != nil {
				t.Fatalf("FetchMetrics: %v", err)
			}

			got := [3]float64{m.WaterLevel, m.TidePrediction, m.CurrentSpeed}
			if got != tt.want {
				t.Errorf("values = %v, want %v", got, tt.want)
			}
			if m.FloodRisk != tt.wantRisk {
				t.Errorf("FloodRisk = %v, want %v", m.FloodRisk, tt.wantRisk)
			}
			if len(m.Fallbacks) != tt.wantFallbacks {
				t.Errorf("Fallbacks = %v, want %d entries", m.Fallbacks, tt.wantFallbacks)
			}
			if m.Location != "Station 8518750" {
				t.Errorf("Location = %q", m.Location)
			}
			if len(src.calls) != 3 {
				t.Errorf("expected 3 source calls, got %d", len(src.calls))
			}
			for _, s := range src.stations {
				if s != "8518750" {
					t.Errorf("empty station should resolve to default, got %q", s)
				}
			}
		})
	}
}

func TestFetchMetrics_SingleProduct(t *testing.T) {
	src := &fakeSource{values: map[models.Product]float64{models.ProductTides: 1.9}}
	svc, collector := newFloodDataService(src, true)

	m, err := svc.FetchMetrics(context.Background(), "9414290", models.ProductTides)
	if err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}

	if len(src.calls) != 1 || src.calls[0] != models.ProductTides {
		t.Errorf("calls = %v, want only tides", src.calls)
	}
	if m.TidePrediction != 1.9 || m.WaterLevel != 1.5 || m.CurrentSpeed != 1.8 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.UsedFallback(models.ProductTides) {
		t.Error("tides was fetched and must not be flagged as fallback")
	}
	if got := testutil.ToFloat64(collector.NOAAFallbackTotal.WithLabelValues("water_level", models.FallbackNotRequested)); got != 1 {
		t.Errorf("not_requested counter = %v", got)
	}
}

func TestFetchMetrics_FallbackTelemetry(t *testing.T) {
	src := &fakeSource{
		values: map[models.Product]float64{models.ProductWaterLevel: 2.1},
		errs:   map[models.Product]error{models.ProductCurrents: errors.New("timeout")},
	}
	svc, collector := newFloodDataService(src, true)

	if _, err := svc.FetchMetrics(context.Background(), "8518750", models.ProductAll); err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}

	if got := testutil.ToFloat64(collector.NOAAFallbackTotal.WithLabelValues("tides", models.FallbackNoData)); got != 1 {
		t.Errorf("tides no_data counter = %v", got)
	}
	if got := testutil.ToFloat64(collector.NOAAFallbackTotal.WithLabelValues("currents", models.FallbackError)); got != 1 {
		t.Errorf("currents error counter = %v", got)
	}
	if got := testutil.ToFloat64(collector.FloodRisk.WithLabelValues("8518750")); got != 0 {
		t.Errorf("flood risk gauge = %v", got)
	}
}

func TestFetchMetrics_FallbackDisabled(t *testing.T) {
	src := &fakeSource{values: map[models.Product]float64{
		models.ProductWaterLevel: 2.5,
		models.ProductTides:      1.8,
	}}
	svc, _ := newFloodDataService(src, false)

	_, err := svc.FetchMetrics(context.Background(), "8518750", models.ProductAll)
	if models.KindOf(err) != models.KindDataUnavailable {
		t.Fatalf("error = %v, want DataUnavailable", err)
	}

	// an unrequested product is not a data failure
	m, err := svc.FetchMetrics(context.Background(), "8518750", models.ProductWaterLevel)
	if err != nil {
		t.Fatalf("single product fetch: %v", err)
	}
	if m.WaterLevel != 2.5 {
		t.Errorf("WaterLevel = %v", m.WaterLevel)
	}
}
