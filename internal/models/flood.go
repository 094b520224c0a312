package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"floodguard/internal/risk"
)

// Product selects which NOAA series the metric source queries
type Product string

const (
	ProductWaterLevel Product = "water_level"
	ProductTides      Product = "tides"
	ProductCurrents   Product = "currents"
	ProductAll        Product = "all"
)

// ParseProduct maps a query value to a Product; empty or unknown values mean all
func ParseProduct(s string) Product {
	switch p := Product(strings.ToLower(strings.TrimSpace(s))); p {
	case ProductWaterLevel, ProductTides, ProductCurrents:
		return p
	default:
		return ProductAll
	}
}

// Reading is one physical measurement from the data provider
type Reading struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	StationID string    `json:"stationId"`
	Product   Product   `json:"product"`
}

// Fallback reasons recorded when a reading is substituted
const (
	FallbackNoData       = "no_data"
	FallbackError        = "error"
	FallbackNotRequested = "not_requested"
)

// FloodMetrics aggregates the three readings at a point in time.
// FloodRisk is always derived from the three values.
type FloodMetrics struct {
	WaterLevel     float64   `json:"waterLevel" yaml:"waterLevel"`
	TidePrediction float64   `json:"tidePrediction" yaml:"tidePrediction"`
	CurrentSpeed   float64   `json:"currentSpeed" yaml:"currentSpeed"`
	FloodRisk      bool      `json:"floodRisk" yaml:"floodRisk"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	Location       string    `json:"location" yaml:"location"`

	// Fallbacks lists the products whose value is a demo substitute
	Fallbacks []Product `json:"-" yaml:"fallbacks,omitempty"`
}

// NewFloodMetrics builds metrics with FloodRisk evaluated from the readings
func NewFloodMetrics(waterLevel, tidePrediction, currentSpeed float64, ts time.Time, location string) *FloodMetrics {
	return &FloodMetrics{
		WaterLevel:     waterLevel,
		TidePrediction: tidePrediction,
		CurrentSpeed:   currentSpeed,
		FloodRisk:      risk.Evaluate(waterLevel, tidePrediction, currentSpeed),
		Timestamp:      ts,
		Location:       location,
	}
}

// UsedFallback reports whether the given product was substituted
func (m *FloodMetrics) UsedFallback(p Product) bool {
	for _, f := range m.Fallbacks {
		if f == p {
			return true
		}
	}
	return false
}

// FixedPointMetrics is the ×100 integer encoding stored by the contract
type FixedPointMetrics struct {
	WaterLevel     uint64 `json:"waterLevel" yaml:"waterLevel"`
	TidePrediction uint64 `json:"tidePrediction" yaml:"tidePrediction"`
	CurrentSpeed   uint64 `json:"currentSpeed" yaml:"currentSpeed"`
}

// OnChainMetrics is what the contract reports back, decoded
type OnChainMetrics struct {
	WaterLevel     float64          `json:"waterLevel" yaml:"waterLevel"`
	TidePrediction float64          `json:"tidePrediction" yaml:"tidePrediction"`
	CurrentSpeed   float64          `json:"currentSpeed" yaml:"currentSpeed"`
	ThreatLevel    risk.ThreatLevel `json:"threatLevel" yaml:"threatLevel"`
	FloodRisk      bool             `json:"floodRisk" yaml:"floodRisk"`
}

// NewOnChainMetrics derives FloodRisk from the contract's threat level
func NewOnChainMetrics(waterLevel, tidePrediction, currentSpeed float64, level risk.ThreatLevel) *OnChainMetrics {
	return &OnChainMetrics{
		WaterLevel:     waterLevel,
		TidePrediction: tidePrediction,
		CurrentSpeed:   currentSpeed,
		ThreatLevel:    level,
		FloodRisk:      risk.FromThreatLevel(level),
	}
}

// Deposit is an investor's stake as recorded by the contract
type Deposit struct {
	Amount      string `json:"amount" yaml:"amount"`
	DepositTime int64  `json:"depositTime" yaml:"depositTime"`
	Withdrawn   bool   `json:"withdrawn" yaml:"withdrawn"`
}

// EmptyDeposit is returned for addresses without a stake
func EmptyDeposit() *Deposit {
	return &Deposit{Amount: "0", DepositTime: 0, Withdrawn: false}
}

// FundsInfo aggregates the relief fund totals
type FundsInfo struct {
	SponsorFunds  string `json:"sponsorFunds" yaml:"sponsorFunds"`
	InvestorFunds string `json:"investorFunds" yaml:"investorFunds"`
	TotalFunds    string `json:"totalFunds" yaml:"totalFunds"`
}

// NewFundsInfo sums the two totals in wei before formatting so the total is exact
func NewFundsInfo(sponsorWei, investorWei *big.Int, decimals int32) *FundsInfo {
	if sponsorWei == nil {
		sponsorWei = new(big.Int)
	}
	if investorWei == nil {
		investorWei = new(big.Int)
	}
	total := new(big.Int).Add(sponsorWei, investorWei)

	return &FundsInfo{
		SponsorFunds:  FormatUnits(sponsorWei, decimals),
		InvestorFunds: FormatUnits(investorWei, decimals),
		TotalFunds:    FormatUnits(total, decimals),
	}
}

// FormatUnits renders an integer amount of base units as a decimal string
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseUnits converts a decimal string into base units, rejecting excess precision
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, &ValidationError{Field: "amount", Value: amount, Message: fmt.Sprintf("invalid amount %q", amount)}
	}
	if !d.IsPositive() {
		return nil, &ValidationError{Field: "amount", Value: amount, Message: "amount must be greater than zero"}
	}
	if -d.Exponent() > decimals {
		// Trailing zeros beyond the unit precision are harmless
		if !d.Equal(d.Truncate(decimals)) {
			return nil, &ValidationError{
				Field:   "amount",
				Value:   amount,
				Message: fmt.Sprintf("amount has more than %d fractional digits", decimals),
			}
		}
	}
	return d.Shift(decimals).BigInt(), nil
}

// DebugInfo is the composite diagnostic read of the contract deployment
type DebugInfo struct {
	Address     string            `json:"address" yaml:"address"`
	IsDeployed  bool              `json:"isDeployed" yaml:"isDeployed"`
	Balance     string            `json:"balance" yaml:"balance"`
	Network     string            `json:"network" yaml:"network"`
	Owner       string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	UserAddress string            `json:"userAddress,omitempty" yaml:"userAddress,omitempty"`
	IsOwner     *bool             `json:"isOwner,omitempty" yaml:"isOwner,omitempty"`
	Errors      map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// SubmitResult describes a finalized metrics write
type SubmitResult struct {
	TxHash      string            `json:"txHash" yaml:"txHash"`
	BlockNumber uint64            `json:"blockNumber" yaml:"blockNumber"`
	GasUsed     uint64            `json:"gasUsed" yaml:"gasUsed"`
	Encoded     FixedPointMetrics `json:"encoded" yaml:"encoded"`
}

// TxResult describes any other finalized write
type TxResult struct {
	Method      string `json:"method" yaml:"method"`
	TxHash      string `json:"txHash" yaml:"txHash"`
	BlockNumber uint64 `json:"blockNumber" yaml:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed" yaml:"gasUsed"`
}

// FloodSnapshot is a persisted FloodMetrics observation.
// Timestamps are unix seconds to stay portable across drivers.
type FloodSnapshot struct {
	ID                 string  `json:"id" db:"id"`
	StationID          string  `json:"station_id" db:"station_id"`
	WaterLevel         float64 `json:"water_level" db:"water_level"`
	TidePrediction     float64 `json:"tide_prediction" db:"tide_prediction"`
	CurrentSpeed       float64 `json:"current_speed" db:"current_speed"`
	FloodRisk          bool    `json:"flood_risk" db:"flood_risk"`
	WaterLevelFallback bool    `json:"water_level_fallback" db:"water_level_fallback"`
	TideFallback       bool    `json:"tide_fallback" db:"tide_fallback"`
	CurrentFallback    bool    `json:"current_fallback" db:"current_fallback"`
	ObservedAt         int64   `json:"observed_at" db:"observed_at"`
	CreatedAt          int64   `json:"created_at" db:"created_at"`
}

// NewFloodSnapshot converts fetched metrics into a persistable record
func NewFloodSnapshot(id, stationID string, m *FloodMetrics, now time.Time) *FloodSnapshot {
	return &FloodSnapshot{
		ID:                 id,
		StationID:          stationID,
		WaterLevel:         m.WaterLevel,
		TidePrediction:     m.TidePrediction,
		CurrentSpeed:       m.CurrentSpeed,
		FloodRisk:          m.FloodRisk,
		WaterLevelFallback: m.UsedFallback(ProductWaterLevel),
		TideFallback:       m.UsedFallback(ProductTides),
		CurrentFallback:    m.UsedFallback(ProductCurrents),
		ObservedAt:         m.Timestamp.Unix(),
		CreatedAt:          now.Unix(),
	}
}

// Submission statuses
const (
	SubmissionConfirmed = "confirmed"
	SubmissionFailed    = "failed"
)

// LedgerSubmission records one on-chain write attempt and its read-back
type LedgerSubmission struct {
	ID                    string `json:"id" db:"id"`
	SnapshotID            string `json:"snapshot_id" db:"snapshot_id"`
	StationID             string `json:"station_id" db:"station_id"`
	Status                string `json:"status" db:"status"`
	TxHash                string `json:"tx_hash,omitempty" db:"tx_hash"`
	BlockNumber           int64  `json:"block_number,omitempty" db:"block_number"`
	GasUsed               int64  `json:"gas_used,omitempty" db:"gas_used"`
	EncodedWaterLevel     int64  `json:"encoded_water_level" db:"encoded_water_level"`
	EncodedTidePrediction int64  `json:"encoded_tide_prediction" db:"encoded_tide_prediction"`
	EncodedCurrentSpeed   int64  `json:"encoded_current_speed" db:"encoded_current_speed"`
	ThreatLevel           int    `json:"threat_level" db:"threat_level"`
	OnChainFloodRisk      bool   `json:"on_chain_flood_risk" db:"on_chain_flood_risk"`
	ErrorKind             string `json:"error_kind,omitempty" db:"error_kind"`
	ErrorReason           string `json:"error_reason,omitempty" db:"error_reason"`
	SubmittedAt           int64  `json:"submitted_at" db:"submitted_at"`
}

// StationStatistics summarizes the snapshots of one station over a window
type StationStatistics struct {
	StationID         string   `json:"station_id" db:"station_id"`
	Since             int64    `json:"since" db:"-"`
	SnapshotCount     int      `json:"snapshot_count" db:"snapshot_count"`
	AtRiskCount       int      `json:"at_risk_count" db:"at_risk_count"`
	FallbackCount     int      `json:"fallback_count" db:"fallback_count"`
	AvgWaterLevel     *float64 `json:"avg_water_level,omitempty" db:"avg_water_level"`
	MaxWaterLevel     *float64 `json:"max_water_level,omitempty" db:"max_water_level"`
	AvgTidePrediction *float64 `json:"avg_tide_prediction,omitempty" db:"avg_tide_prediction"`
	MaxTidePrediction *float64 `json:"max_tide_prediction,omitempty" db:"max_tide_prediction"`
	AvgCurrentSpeed   *float64 `json:"avg_current_speed,omitempty" db:"avg_current_speed"`
	MaxCurrentSpeed   *float64 `json:"max_current_speed,omitempty" db:"max_current_speed"`
	FirstObservedAt   *int64   `json:"first_observed_at,omitempty" db:"first_observed_at"`
	LastObservedAt    *int64   `json:"last_observed_at,omitempty" db:"last_observed_at"`
	RiskRatio         float64  `json:"risk_ratio" db:"-"`
	FallbackRatio     float64  `json:"fallback_ratio" db:"-"`
}
