package services

import (
	"context"
	"fmt"
	"time"

	"floodguard/internal/models"
	"floodguard/internal/repository"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// DefaultStatisticsWindow is used when no window is requested
const DefaultStatisticsWindow = 7 * 24 * time.Hour

// StatisticsService answers history queries over stored snapshots
type StatisticsService struct {
	repo    repository.SnapshotRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.SnapshotRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// GetStationStatistics aggregates a station's snapshots over the trailing window
func (s *StatisticsService) GetStationStatistics(ctx context.Context, stationID string, window time.Duration) (*models.StationStatistics, error) {
	if stationID == "" {
		return nil, &models.ValidationError{Field: "station", Message: "station is required"}
	}
	if window <= 0 {
		window = DefaultStatisticsWindow
	}

	since := s.now().Add(-window)
	stats, err := s.repo.CalculateStationStatistics(ctx, stationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate statistics for %s: %w", stationID, err)
	}

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Station statistics calculated", logging.Fields{
		"station_id":     stationID,
		"window_hours":   window.Hours(),
		"snapshot_count": stats.SnapshotCount,
		"at_risk_count":  stats.AtRiskCount,
	})

	return stats, nil
}

// GetLatestSnapshot retrieves the newest stored snapshot of a station
func (s *StatisticsService) GetLatestSnapshot(ctx context.Context, stationID string) (*models.FloodSnapshot, error) {
	return s.repo.GetLatestSnapshot(ctx, stationID)
}

// GetSnapshots retrieves snapshots with filtering
func (s *StatisticsService) GetSnapshots(ctx context.Context, filter repository.SnapshotFilter) ([]*models.FloodSnapshot, int, error) {
	return s.repo.GetSnapshots(ctx, filter)
}

// GetSubmissions retrieves ledger submissions with filtering
func (s *StatisticsService) GetSubmissions(ctx context.Context, filter repository.SubmissionFilter) ([]*models.LedgerSubmission, int, error) {
	return s.repo.GetSubmissions(ctx, filter)
}
