package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"floodguard/internal/models"
	"floodguard/internal/notifier"
	"floodguard/internal/repository"
	"floodguard/internal/wallet"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// MetricsFetcher assembles FloodMetrics for a station
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, station string, product models.Product) (*models.FloodMetrics, error)
}

// LedgerSyncer is the part of the ledger gateway a sync cycle drives
type LedgerSyncer interface {
	SubmitMetrics(ctx context.Context, sess *wallet.Session, m *models.FloodMetrics) (*models.SubmitResult, error)
	ReadMetrics(ctx context.Context) (*models.OnChainMetrics, error)
}

// SyncOptions configures the sync service
type SyncOptions struct {
	DefaultStation string
	SubmitOnChain  bool
}

// SyncService runs fetch, persist, submit and notify cycles
type SyncService struct {
	fetcher  MetricsFetcher
	repo     repository.SnapshotRepository
	ledger   LedgerSyncer
	session  *wallet.Session
	notifier notifier.Notifier
	opts     SyncOptions
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	now      func() time.Time
	newID    func() string

	// runs are serialized; failures counts the current failure streak
	mu       sync.Mutex
	failures int
}

// SyncResult contains the outcome of one cycle
type SyncResult struct {
	RunID      string                   `json:"run_id"`
	StationID  string                   `json:"station_id"`
	Metrics    *models.FloodMetrics     `json:"metrics"`
	SnapshotID string                   `json:"snapshot_id,omitempty"`
	Submission *models.LedgerSubmission `json:"submission,omitempty"`
	OnChain    *models.OnChainMetrics   `json:"on_chain,omitempty"`
	Notified   bool                     `json:"notified"`
	Duration   time.Duration            `json:"duration_ns"`
}

// Summary renders the result as aligned report lines
func (r *SyncResult) Summary() []string {
	lines := []string{
		fmt.Sprintf("Run ID:             %s", r.RunID),
		fmt.Sprintf("Station:            %s", r.StationID),
	}
	if r.Metrics != nil {
		lines = append(lines,
			fmt.Sprintf("Water Level:        %.2f m", r.Metrics.WaterLevel),
			fmt.Sprintf("Tide Prediction:    %.2f m", r.Metrics.TidePrediction),
			fmt.Sprintf("Current Speed:      %.2f", r.Metrics.CurrentSpeed),
			fmt.Sprintf("Flood Risk:         %t", r.Metrics.FloodRisk),
		)
		if len(r.Metrics.Fallbacks) > 0 {
			lines = append(lines, fmt.Sprintf("Fallbacks:          %v", r.Metrics.Fallbacks))
		}
	}
	if r.SnapshotID != "" {
		lines = append(lines, fmt.Sprintf("Snapshot:           %s", r.SnapshotID))
	}
	if r.Submission != nil {
		lines = append(lines, fmt.Sprintf("Submission:         %s", r.Submission.Status))
		if r.Submission.TxHash != "" {
			lines = append(lines, fmt.Sprintf("Transaction:        %s (block %d)", r.Submission.TxHash, r.Submission.BlockNumber))
		}
	}
	if r.OnChain != nil {
		lines = append(lines, fmt.Sprintf("On-chain Threat:    %s", r.OnChain.ThreatLevel))
	}
	return append(lines,
		fmt.Sprintf("Notified:           %t", r.Notified),
		fmt.Sprintf("Duration:           %v", r.Duration),
	)
}

// NewSyncService creates a new sync service. repo and ledger may be nil when
// history or on-chain submission is disabled.
func NewSyncService(
	fetcher MetricsFetcher,
	repo repository.SnapshotRepository,
	ledger LedgerSyncer,
	session *wallet.Session,
	notify notifier.Notifier,
	opts SyncOptions,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *SyncService {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &SyncService{
		fetcher:  fetcher,
		repo:     repo,
		ledger:   ledger,
		session:  session,
		notifier: notify,
		opts:     opts,
		logger:   logger,
		metrics:  metricsCollector,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RunOnce performs one cycle for station. On a ledger failure the partial
// result is returned together with the classified error.
func (s *SyncService) RunOnce(ctx context.Context, station string) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if station == "" {
		station = s.opts.DefaultStation
	}
	startTime := s.now()
	result := &SyncResult{
		RunID:     s.newID(),
		StationID: station,
	}
	ctx = logging.WithStation(ctx, station)
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, result.RunID)
	}

	s.logger.Info(ctx, "[SYNC_START] Starting sync cycle", logging.Fields{
		"submit_on_chain": s.opts.SubmitOnChain && s.ledger != nil,
		"stage":           "INITIALIZATION",
	})

	err := s.run(ctx, station, result)
	result.Duration = s.now().Sub(startTime)
	s.metrics.SyncDuration.Observe(result.Duration.Seconds())

	if err != nil {
		s.metrics.RecordSyncRun("error")
		s.failures++
		s.logger.Error(ctx, "[SYNC_ERROR] Sync cycle failed", logging.Fields{
			"kind":             models.KindOf(err),
			"failure_streak":   s.failures,
			"duration_seconds": result.Duration.Seconds(),
			"stage":            "COMPLETE",
		}, err)
		if s.failures == 1 {
			s.notify(ctx, "failure", s.notifier.NotifyFailure(ctx, station, err))
		}
		return result, err
	}

	s.metrics.RecordSyncRun("success")
	if s.failures > 0 {
		s.notify(ctx, "recovery", s.notifier.NotifyRecovery(ctx, station, s.failures))
		s.failures = 0
	}

	onChainRisk := result.OnChain != nil && result.OnChain.FloodRisk
	if result.Metrics.FloodRisk || onChainRisk {
		alert := &notifier.Alert{
			StationID: station,
			Metrics:   result.Metrics,
			OnChain:   result.OnChain,
		}
		if result.Submission != nil {
			alert.TxHash = result.Submission.TxHash
		}
		err := s.notifier.NotifyFloodAlert(ctx, alert)
		s.notify(ctx, "flood_alert", err)
		result.Notified = err == nil
	}

	s.logger.Info(ctx, "[SYNC_COMPLETE] Sync cycle completed", logging.Fields{
		"flood_risk":       result.Metrics.FloodRisk,
		"on_chain_risk":    onChainRisk,
		"snapshot_id":      result.SnapshotID,
		"notified":         result.Notified,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *SyncService) run(ctx context.Context, station string, result *SyncResult) error {
	m, err := s.fetcher.FetchMetrics(ctx, station, models.ProductAll)
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	result.Metrics = m

	var snapshot *models.FloodSnapshot
	if s.repo != nil {
		snapshot = models.NewFloodSnapshot(s.newID(), station, m, s.now())
		if err := s.repo.CreateSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}
		result.SnapshotID = snapshot.ID
	}

	if !s.opts.SubmitOnChain || s.ledger == nil {
		return nil
	}

	submission := &models.LedgerSubmission{
		ID:          s.newID(),
		SnapshotID:  result.SnapshotID,
		StationID:   station,
		SubmittedAt: s.now().Unix(),
	}
	result.Submission = submission

	submitted, submitErr := s.ledger.SubmitMetrics(ctx, s.session, m)
	if submitErr != nil {
		submission.Status = models.SubmissionFailed
		submission.ErrorKind = string(models.KindOf(submitErr))
		submission.ErrorReason = models.ReasonOf(submitErr)
	} else {
		submission.Status = models.SubmissionConfirmed
		submission.TxHash = submitted.TxHash
		submission.BlockNumber = int64(submitted.BlockNumber)
		submission.GasUsed = int64(submitted.GasUsed)
		submission.EncodedWaterLevel = int64(submitted.Encoded.WaterLevel)
		submission.EncodedTidePrediction = int64(submitted.Encoded.TidePrediction)
		submission.EncodedCurrentSpeed = int64(submitted.Encoded.CurrentSpeed)

		// Only read back once the write is final
		onChain, err := s.ledger.ReadMetrics(ctx)
		if err != nil {
			s.logger.WarnErr(ctx, "[SYNC_READBACK] Failed to read metrics after submission", logging.Fields{
				"tx_hash": submission.TxHash,
			}, err)
		} else {
			result.OnChain = onChain
			submission.ThreatLevel = int(onChain.ThreatLevel)
			submission.OnChainFloodRisk = onChain.FloodRisk
		}
	}

	if snapshot != nil {
		if err := s.repo.CreateSubmission(ctx, submission); err != nil {
			s.logger.Error(ctx, "[SYNC_PERSIST_ERROR] Failed to record submission", logging.Fields{
				"submission_id": submission.ID,
				"status":        submission.Status,
			}, err)
		}
	}

	return submitErr
}

func (s *SyncService) notify(ctx context.Context, kind string, err error) {
	if err != nil {
		s.logger.WarnErr(ctx, "[SYNC_NOTIFY] Notification failed", logging.Fields{
			"kind": kind,
		}, err)
	}
}
