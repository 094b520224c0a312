package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"floodguard/internal/models"
	"floodguard/pkg/database"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// SnapshotRepository provides data access for flood history
type SnapshotRepository interface {
	// Snapshot operations
	CreateSnapshot(ctx context.Context, snapshot *models.FloodSnapshot) error
	GetLatestSnapshot(ctx context.Context, stationID string) (*models.FloodSnapshot, error)
	GetSnapshots(ctx context.Context, filter SnapshotFilter) ([]*models.FloodSnapshot, int, error)

	// Submission operations
	CreateSubmission(ctx context.Context, submission *models.LedgerSubmission) error
	GetSubmissions(ctx context.Context, filter SubmissionFilter) ([]*models.LedgerSubmission, int, error)

	// Statistics operations
	CalculateStationStatistics(ctx context.Context, stationID string, since time.Time) (*models.StationStatistics, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SnapshotFilter defines filters for querying snapshots
type SnapshotFilter struct {
	StationID  *string
	Since      *time.Time
	Until      *time.Time
	AtRiskOnly bool
	Limit      int
	Offset     int
}

// SubmissionFilter defines filters for querying ledger submissions
type SubmissionFilter struct {
	StationID *string
	Status    *string
	Limit     int
	Offset    int
}

const snapshotColumns = `id, station_id, water_level, tide_prediction, current_speed,
		       flood_risk, water_level_fallback, tide_fallback, current_fallback,
		       observed_at, created_at`

const submissionColumns = `id, snapshot_id, station_id, status, tx_hash, block_number, gas_used,
		       encoded_water_level, encoded_tide_prediction, encoded_current_speed,
		       threat_level, on_chain_flood_risk, error_kind, error_reason, submitted_at`

// snapshotRepository implements SnapshotRepository
type snapshotRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SnapshotRepository {
	return &snapshotRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateSnapshot stores a flood snapshot
func (r *snapshotRepository) CreateSnapshot(ctx context.Context, snapshot *models.FloodSnapshot) error {
	query := `
		INSERT INTO flood_snapshots (
			id, station_id, water_level, tide_prediction, current_speed,
			flood_risk, water_level_fallback, tide_fallback, current_fallback,
			observed_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, "insert_snapshot", query,
		snapshot.ID,
		snapshot.StationID,
		snapshot.WaterLevel,
		snapshot.TidePrediction,
		snapshot.CurrentSpeed,
		snapshot.FloodRisk,
		snapshot.WaterLevelFallback,
		snapshot.TideFallback,
		snapshot.CurrentFallback,
		snapshot.ObservedAt,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_SNAPSHOT] Snapshot created", logging.Fields{
		"snapshot_id": snapshot.ID,
		"station_id":  snapshot.StationID,
		"flood_risk":  snapshot.FloodRisk,
	})

	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot of a station
func (r *snapshotRepository) GetLatestSnapshot(ctx context.Context, stationID string) (*models.FloodSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM flood_snapshots
		WHERE station_id = ?
		ORDER BY observed_at DESC, created_at DESC
		LIMIT 1
	`

	var snapshot models.FloodSnapshot
	err := r.db.GetContext(ctx, "get_latest_snapshot", &snapshot, query, stationID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "flood_snapshot",
			ID:       stationID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &snapshot, nil
}

// GetSnapshots retrieves snapshots with filtering and pagination
func (r *snapshotRepository) GetSnapshots(ctx context.Context, filter SnapshotFilter) ([]*models.FloodSnapshot, int, error) {
	// Build query with filters
	query := `
		SELECT ` + snapshotColumns + `
		FROM flood_snapshots
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.StationID != nil {
		query += " AND station_id = ?"
		args = append(args, *filter.StationID)
	}

	if filter.Since != nil {
		query += " AND observed_at >= ?"
		args = append(args, filter.Since.Unix())
	}

	if filter.Until != nil {
		query += " AND observed_at <= ?"
		args = append(args, filter.Until.Unix())
	}

	if filter.AtRiskOnly {
		query += " AND flood_risk = ?"
		args = append(args, true)
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_snapshots", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY observed_at DESC, created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	snapshots := []*models.FloodSnapshot{}
	err = r.db.SelectContext(ctx, "get_snapshots", &snapshots, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get snapshots: %w", err)
	}

	return snapshots, totalCount, nil
}

// CreateSubmission stores the outcome of a ledger write
func (r *snapshotRepository) CreateSubmission(ctx context.Context, submission *models.LedgerSubmission) error {
	query := `
		INSERT INTO ledger_submissions (
			id, snapshot_id, station_id, status, tx_hash, block_number, gas_used,
			encoded_water_level, encoded_tide_prediction, encoded_current_speed,
			threat_level, on_chain_flood_risk, error_kind, error_reason, submitted_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, "insert_submission", query,
		submission.ID,
		submission.SnapshotID,
		submission.StationID,
		submission.Status,
		submission.TxHash,
		submission.BlockNumber,
		submission.GasUsed,
		submission.EncodedWaterLevel,
		submission.EncodedTidePrediction,
		submission.EncodedCurrentSpeed,
		submission.ThreatLevel,
		submission.OnChainFloodRisk,
		submission.ErrorKind,
		submission.ErrorReason,
		submission.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_SUBMISSION] Submission recorded", logging.Fields{
		"submission_id": submission.ID,
		"snapshot_id":   submission.SnapshotID,
		"status":        submission.Status,
	})

	return nil
}

// GetSubmissions retrieves ledger submissions, newest first
func (r *snapshotRepository) GetSubmissions(ctx context.Context, filter SubmissionFilter) ([]*models.LedgerSubmission, int, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM ledger_submissions
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.StationID != nil {
		query += " AND station_id = ?"
		args = append(args, *filter.StationID)
	}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_submissions", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query += " ORDER BY submitted_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	submissions := []*models.LedgerSubmission{}
	err = r.db.SelectContext(ctx, "get_submissions", &submissions, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get submissions: %w", err)
	}

	return submissions, totalCount, nil
}

// CalculateStationStatistics aggregates the snapshots of a station observed since the given time
func (r *snapshotRepository) CalculateStationStatistics(ctx context.Context, stationID string, since time.Time) (*models.StationStatistics, error) {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_CALC_STATS] Statistics calculated", logging.Fields{
			"station_id":  stationID,
			"since":       since.Unix(),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	query := `
		SELECT
			COUNT(*) AS snapshot_count,
			COALESCE(SUM(CASE WHEN flood_risk THEN 1 ELSE 0 END), 0) AS at_risk_count,
			COALESCE(SUM(CASE WHEN water_level_fallback OR tide_fallback OR current_fallback THEN 1 ELSE 0 END), 0) AS fallback_count,
			AVG(water_level) AS avg_water_level,
			MAX(water_level) AS max_water_level,
			AVG(tide_prediction) AS avg_tide_prediction,
			MAX(tide_prediction) AS max_tide_prediction,
			AVG(current_speed) AS avg_current_speed,
			MAX(current_speed) AS max_current_speed,
			MIN(observed_at) AS first_observed_at,
			MAX(observed_at) AS last_observed_at
		FROM flood_snapshots
		WHERE station_id = ?
		  AND observed_at >= ?
	`

	stats := models.StationStatistics{}
	err := r.db.GetContext(ctx, "calculate_statistics", &stats, query, stationID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to calculate statistics: %w", err)
	}

	stats.StationID = stationID
	stats.Since = since.Unix()
	if stats.SnapshotCount > 0 {
		stats.RiskRatio = float64(stats.AtRiskCount) / float64(stats.SnapshotCount)
		stats.FallbackRatio = float64(stats.FallbackCount) / float64(stats.SnapshotCount)
	}

	return &stats, nil
}

// HealthCheck performs a repository health check
func (r *snapshotRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
