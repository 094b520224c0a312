package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"floodguard/internal/models"
	"floodguard/internal/noaa"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// MetricSource fetches a single reading for a product
type MetricSource interface {
	Fetch(ctx context.Context, product models.Product, station string) (*models.Reading, error)
}

// Fallbacks are the demo values substituted for missing readings
type Fallbacks struct {
	WaterLevel     float64
	TidePrediction float64
	CurrentSpeed   float64
}

// FloodDataOptions configures the metric source adapter
type FloodDataOptions struct {
	DefaultStation  string
	Timeout         time.Duration
	FallbackEnabled bool
	Fallbacks       Fallbacks
}

// FloodDataService assembles FloodMetrics from the three NOAA products
type FloodDataService struct {
	source  MetricSource
	opts    FloodDataOptions
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewFloodDataService creates a new flood data service
func NewFloodDataService(source MetricSource, opts FloodDataOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FloodDataService {
	return &FloodDataService{
		source:  source,
		opts:    opts,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

var metricProducts = [...]models.Product{models.ProductWaterLevel, models.ProductTides, models.ProductCurrents}

// FetchMetrics queries the requested product (or all three concurrently) and
// fills every missing value from the configured fallbacks
func (s *FloodDataService) FetchMetrics(ctx context.Context, station string, product models.Product) (*models.FloodMetrics, error) {
	if station == "" {
		station = s.opts.DefaultStation
	}
	ctx = logging.WithStation(ctx, station)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var (
		readings [len(metricProducts)]*models.Reading
		errs     [len(metricProducts)]error
		fetched  [len(metricProducts)]bool
	)

	// Sub-queries never fail the group; each error is kept for its own slot
	var g errgroup.Group
	for i, p := range metricProducts {
		if product != models.ProductAll && product != p {
			continue
		}
		fetched[i] = true
		g.Go(func() error {
			readings[i], errs[i] = s.source.Fetch(ctx, p, station)
			return nil
		})
	}
	_ = g.Wait()

	fallbackValues := [len(metricProducts)]float64{
		s.opts.Fallbacks.WaterLevel,
		s.opts.Fallbacks.TidePrediction,
		s.opts.Fallbacks.CurrentSpeed,
	}

	var values [len(metricProducts)]float64
	var substituted []models.Product

	for i, p := range metricProducts {
		if fetched[i] && errs[i] == nil && readings[i] != nil {
			values[i] = readings[i].Value
			continue
		}

		reason := models.FallbackNotRequested
		if fetched[i] {
			reason = models.FallbackError
			if errs[i] == nil || errors.Is(errs[i], noaa.ErrNoData) {
				reason = models.FallbackNoData
			}

			if !s.opts.FallbackEnabled {
				return nil, &models.FloodError{
					Kind:    models.KindDataUnavailable,
					Op:      "fetchMetrics",
					Reason:  fmt.Sprintf("%s data unavailable for station %s", p, station),
					Timeout: errors.Is(errs[i], context.DeadlineExceeded),
					Err:     errs[i],
				}
			}
		}

		values[i] = fallbackValues[i]
		substituted = append(substituted, p)
		s.metrics.RecordFallback(string(p), reason)

		fields := logging.Fields{
			"product": p,
			"reason":  reason,
			"value":   values[i],
		}
		if reason == models.FallbackNotRequested {
			s.logger.Debug(ctx, "[NOAA_FALLBACK] Filling unrequested product with fallback", fields)
		} else {
			s.logger.WarnErr(ctx, "[NOAA_FALLBACK] Substituting fallback value", fields, errs[i])
		}
	}

	m := models.NewFloodMetrics(values[0], values[1], values[2], s.now().UTC(), "Station "+station)
	m.Fallbacks = substituted

	s.metrics.SetFloodRisk(station, m.FloodRisk)

	s.logger.Info(ctx, "[NOAA_FETCH] Flood metrics assembled", logging.Fields{
		"product":         product,
		"water_level":     m.WaterLevel,
		"tide_prediction": m.TidePrediction,
		"current_speed":   m.CurrentSpeed,
		"flood_risk":      m.FloodRisk,
		"fallbacks":       len(substituted),
	})

	return m, nil
}
