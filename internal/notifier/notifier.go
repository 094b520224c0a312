// Package notifier delivers flood alerts and sync health messages.
package notifier

import (
	"context"

	"floodguard/internal/models"
)

// Alert is a flood risk observation worth telling someone about
type Alert struct {
	StationID string
	Metrics   *models.FloodMetrics
	OnChain   *models.OnChainMetrics
	TxHash    string
}

// Notifier sends sync outcomes to operators
type Notifier interface {
	NotifyFloodAlert(ctx context.Context, alert *Alert) error
	// NotifyFailure should be called only for the first failure of a streak
	NotifyFailure(ctx context.Context, stationID string, err error) error
	NotifyRecovery(ctx context.Context, stationID string, failures int) error
}

// Nop discards every notification
type Nop struct{}

func (Nop) NotifyFloodAlert(ctx context.Context, alert *Alert) error { return nil }

func (Nop) NotifyFailure(ctx context.Context, stationID string, err error) error { return nil }

func (Nop) NotifyRecovery(ctx context.Context, stationID string, failures int) error { return nil }
