package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"floodguard/internal/fixedpoint"
	"floodguard/internal/models"
	"floodguard/internal/risk"
	"floodguard/internal/wallet"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// Options configures the gateway
type Options struct {
	NetworkName string
	Decimals    int32
	GasLimit    uint64
	Timeout     time.Duration
}

// Gateway reads and writes the FloodPredictor contract
type Gateway struct {
	backend Backend
	opts    Options
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewGateway creates a new ledger gateway
func NewGateway(backend Backend, opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Gateway {
	if opts.Decimals == 0 {
		opts.Decimals = 18
	}
	return &Gateway{
		backend: backend,
		opts:    opts,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Address returns the contract address as a checksummed hex string
func (g *Gateway) Address() string {
	return g.backend.ContractAddress().Hex()
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.Timeout > 0 {
		return context.WithTimeout(ctx, g.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// fail classifies, counts and logs err. Only the returned Reason is meant for users.
func (g *Gateway) fail(ctx context.Context, method string, fe *models.FloodError) error {
	g.metrics.RecordLedgerCall(method, "error")
	g.metrics.RecordLedgerError(string(fe.Kind))
	g.logger.Error(ctx, "[LEDGER_ERROR] Contract call failed", logging.Fields{
		"method":  method,
		"kind":    fe.Kind,
		"timeout": fe.Timeout,
		"reason":  fe.Reason,
	}, fe.Err)
	return fe
}

// ensureDeployed fails with ContractNotDeployed when no code lives at the address
func (g *Gateway) ensureDeployed(ctx context.Context, op string) error {
	code, err := g.backend.CodeAt(ctx, g.backend.ContractAddress())
	if err != nil {
		return Classify(op, err)
	}
	if len(code) == 0 {
		return models.NewFloodError(models.KindContractNotDeployed, op,
			fmt.Sprintf("no contract deployed at %s", g.backend.ContractAddress().Hex()), nil)
	}
	return nil
}

// call performs one view call, counting and timing it
func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	timer := g.metrics.NewTimer(g.metrics.LedgerCallDuration.WithLabelValues(method))
	defer timer.ObserveDuration()

	out, err := g.backend.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordLedgerCall(method, "success")
	return out, nil
}

// callUint reads a single uint output, substituting zero on failure
func (g *Gateway) callUint(ctx context.Context, method string) *big.Int {
	out, err := g.call(ctx, method)
	if err == nil {
		if v, ok := toBigInt(out, 0); ok {
			return v
		}
		err = fmt.Errorf("unexpected %s output %v", method, out)
	}

	fe := Classify(method, err)
	g.metrics.RecordLedgerCall(method, "error")
	g.metrics.RecordLedgerError(string(fe.Kind))
	g.logger.WarnErr(ctx, "[LEDGER_READ] Read failed, using zero", logging.Fields{
		"method": method,
		"kind":   fe.Kind,
	}, err)
	return new(big.Int)
}

// transact runs the estimate, send and wait sequence of a write
func (g *Gateway) transact(ctx context.Context, sess *wallet.Session, method string, value *big.Int, args ...interface{}) (*types.Receipt, error) {
	if sess == nil {
		return nil, g.fail(ctx, method, models.NewFloodError(models.KindNoProvider, method, "no wallet session", nil))
	}
	if err := sess.Require(); err != nil {
		return nil, g.fail(ctx, method, Classify(method, err))
	}
	if _, ok := g.backend.From(); !ok {
		return nil, g.fail(ctx, method, models.NewFloodError(models.KindNoProvider, method, "no signer configured for ledger writes", nil))
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.ensureDeployed(ctx, method); err != nil {
		return nil, g.fail(ctx, method, Classify(method, err))
	}

	timer := g.metrics.NewTimer(g.metrics.LedgerCallDuration.WithLabelValues(method))
	defer timer.ObserveDuration()

	estimate, err := g.backend.EstimateGas(ctx, method, value, args...)
	if err != nil {
		return nil, g.fail(ctx, method, classifyEstimate(method, err))
	}

	tx, err := g.backend.Transact(ctx, method, value, g.opts.GasLimit, args...)
	if err != nil {
		return nil, g.fail(ctx, method, Classify(method, err))
	}

	g.logger.Info(ctx, "[LEDGER_TX] Transaction sent", logging.Fields{
		"method":       method,
		"tx_hash":      tx.Hash().Hex(),
		"gas_estimate": estimate,
		"gas_limit":    g.opts.GasLimit,
	})

	receipt, err := g.backend.WaitMined(ctx, tx)
	if err != nil {
		return nil, g.fail(ctx, method, Classify(method, err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, g.fail(ctx, method, models.NewFloodError(models.KindGenericFailure, method,
			fmt.Sprintf("transaction %s reverted", tx.Hash().Hex()), nil))
	}

	g.metrics.RecordLedgerCall(method, "success")
	g.logger.Info(ctx, "[LEDGER_TX] Transaction confirmed", logging.Fields{
		"method":       method,
		"tx_hash":      tx.Hash().Hex(),
		"block_number": receiptBlock(receipt),
		"gas_used":     receipt.GasUsed,
	})
	return receipt, nil
}

// SubmitMetrics encodes metrics and writes them with updateAllMetrics. It
// returns only after the transaction is finalized.
func (g *Gateway) SubmitMetrics(ctx context.Context, sess *wallet.Session, m *models.FloodMetrics) (*models.SubmitResult, error) {
	encoded, err := fixedpoint.EncodeMetrics(m)
	if err != nil {
		return nil, err
	}

	receipt, err := g.transact(ctx, sess, MethodUpdateAllMetrics, nil,
		new(big.Int).SetUint64(encoded.WaterLevel),
		new(big.Int).SetUint64(encoded.TidePrediction),
		new(big.Int).SetUint64(encoded.CurrentSpeed),
	)
	if err != nil {
		return nil, err
	}

	return &models.SubmitResult{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receiptBlock(receipt),
		GasUsed:     receipt.GasUsed,
		Encoded:     encoded,
	}, nil
}

// ReadMetrics reads the stored metrics and threat level. Individual read
// failures yield zero; only a missing deployment fails the whole read.
func (g *Gateway) ReadMetrics(ctx context.Context) (*models.OnChainMetrics, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.ensureDeployed(ctx, "readMetrics"); err != nil {
		return nil, g.fail(ctx, "readMetrics", Classify("readMetrics", err))
	}

	methods := [...]string{MethodWaterLevel, MethodTidePrediction, MethodCurrentSpeed, MethodCurrentThreatLevel}
	var values [len(methods)]*big.Int

	var eg errgroup.Group
	for i, method := range methods {
		eg.Go(func() error {
			values[i] = g.callUint(ctx, method)
			return nil
		})
	}
	_ = eg.Wait()

	level := risk.ThreatUnknown
	if values[3].IsUint64() && values[3].Uint64() <= uint64(risk.ThreatHigh) {
		level = risk.ThreatLevel(values[3].Uint64())
	}

	result := models.NewOnChainMetrics(
		decodeUint(values[0]),
		decodeUint(values[1]),
		decodeUint(values[2]),
		level,
	)
	g.metrics.ThreatLevel.Set(float64(level))

	g.logger.Debug(ctx, "[LEDGER_READ] Metrics read", logging.Fields{
		"water_level":     result.WaterLevel,
		"tide_prediction": result.TidePrediction,
		"current_speed":   result.CurrentSpeed,
		"threat_level":    level.String(),
	})
	return result, nil
}

// ReadBalance returns the contract balance in whole currency units
func (g *Gateway) ReadBalance(ctx context.Context) (string, error) {
	const op = "readBalance"
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.ensureDeployed(ctx, op); err != nil {
		return "", g.fail(ctx, op, Classify(op, err))
	}

	out, err := g.call(ctx, MethodGetContractBalance)
	if err == nil {
		if v, ok := toBigInt(out, 0); ok {
			return models.FormatUnits(v, g.opts.Decimals), nil
		}
		err = fmt.Errorf("unexpected %s output %v", MethodGetContractBalance, out)
	}

	fe := Classify(MethodGetContractBalance, err)
	g.metrics.RecordLedgerCall(MethodGetContractBalance, "error")
	g.metrics.RecordLedgerError(string(fe.Kind))
	g.logger.WarnErr(ctx, "[LEDGER_READ] getContractBalance failed, reading native balance", logging.Fields{
		"address": g.Address(),
		"kind":    fe.Kind,
	}, err)

	balance, err := g.backend.BalanceAt(ctx, g.backend.ContractAddress())
	if err != nil {
		return "", g.fail(ctx, op, Classify(op, err))
	}
	return models.FormatUnits(balance, g.opts.Decimals), nil
}

// ReadDeposit returns an investor's stake, or an empty deposit when the read fails
func (g *Gateway) ReadDeposit(ctx context.Context, address string) (*models.Deposit, error) {
	const op = "readDeposit"
	if !common.IsHexAddress(address) {
		return nil, &models.ValidationError{Field: "address", Value: address, Message: fmt.Sprintf("invalid address %q", address)}
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.ensureDeployed(ctx, op); err != nil {
		return nil, g.fail(ctx, op, Classify(op, err))
	}

	out, err := g.call(ctx, MethodGetInvestorDeposit, common.HexToAddress(address))
	if err != nil {
		g.metrics.RecordLedgerCall(MethodGetInvestorDeposit, "error")
		g.logger.WarnErr(ctx, "[LEDGER_READ] Deposit read failed, returning empty deposit", logging.Fields{
			"investor": address,
		}, err)
		return models.EmptyDeposit(), nil
	}

	amount, okAmount := toBigInt(out, 0)
	depositTime, okTime := toBigInt(out, 1)
	withdrawn, okWithdrawn := toBool(out, 2)
	if !okAmount || !okTime || !okWithdrawn {
		g.logger.Warn(ctx, "[LEDGER_READ] Unexpected deposit output, returning empty deposit", logging.Fields{
			"investor": address,
			"output":   fmt.Sprint(out),
		})
		return models.EmptyDeposit(), nil
	}

	return &models.Deposit{
		Amount:      models.FormatUnits(amount, g.opts.Decimals),
		DepositTime: depositTime.Int64(),
		Withdrawn:   withdrawn,
	}, nil
}

// ReadFundsInfo returns the sponsor and investor totals and their exact sum
func (g *Gateway) ReadFundsInfo(ctx context.Context) (*models.FundsInfo, error) {
	const op = "readFundsInfo"
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.ensureDeployed(ctx, op); err != nil {
		return nil, g.fail(ctx, op, Classify(op, err))
	}

	var sponsor, investor *big.Int
	var eg errgroup.Group
	eg.Go(func() error {
		sponsor = g.callUint(ctx, MethodTotalSponsorFunds)
		return nil
	})
	eg.Go(func() error {
		investor = g.callUint(ctx, MethodTotalInvestorFunds)
		return nil
	})
	_ = eg.Wait()

	return models.NewFundsInfo(sponsor, investor, g.opts.Decimals), nil
}

// DepositAsSponsor sends amount (in whole currency units) as a sponsor deposit
func (g *Gateway) DepositAsSponsor(ctx context.Context, sess *wallet.Session, amount string) (*models.TxResult, error) {
	return g.deposit(ctx, sess, MethodDepositAsSponsor, amount)
}

// DepositAsInvestor sends amount (in whole currency units) as an investor deposit
func (g *Gateway) DepositAsInvestor(ctx context.Context, sess *wallet.Session, amount string) (*models.TxResult, error) {
	return g.deposit(ctx, sess, MethodDepositAsInvestor, amount)
}

func (g *Gateway) deposit(ctx context.Context, sess *wallet.Session, method, amount string) (*models.TxResult, error) {
	value, err := models.ParseUnits(amount, g.opts.Decimals)
	if err != nil {
		return nil, err
	}
	receipt, err := g.transact(ctx, sess, method, value)
	if err != nil {
		return nil, err
	}
	return txResult(method, receipt), nil
}

// AddBeneficiary registers a relief beneficiary
func (g *Gateway) AddBeneficiary(ctx context.Context, sess *wallet.Session, address string) (*models.TxResult, error) {
	if !common.IsHexAddress(address) {
		return nil, &models.ValidationError{Field: "address", Value: address, Message: fmt.Sprintf("invalid address %q", address)}
	}
	receipt, err := g.transact(ctx, sess, MethodAddBeneficiary, nil, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	return txResult(MethodAddBeneficiary, receipt), nil
}

// TriggerWithdrawals releases matured investor deposits
func (g *Gateway) TriggerWithdrawals(ctx context.Context, sess *wallet.Session) (*models.TxResult, error) {
	receipt, err := g.transact(ctx, sess, MethodTriggerWithdrawals, nil)
	if err != nil {
		return nil, err
	}
	return txResult(MethodTriggerWithdrawals, receipt), nil
}

// Debug reports the deployment state. Each field is read independently and
// failures are collected in Errors instead of failing the call.
func (g *Gateway) Debug(ctx context.Context, sess *wallet.Session) *models.DebugInfo {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	info := &models.DebugInfo{
		Address: g.Address(),
		Balance: "0",
		Errors:  map[string]string{},
	}
	record := func(field string, err error) {
		info.Errors[field] = Classify(field, err).Reason
		g.logger.WarnErr(ctx, "[LEDGER_DEBUG] Diagnostic read failed", logging.Fields{"field": field}, err)
	}

	if chainID, err := g.backend.ChainID(ctx); err != nil {
		record("network", err)
	} else {
		info.Network = fmt.Sprintf("%s (%s)", g.opts.NetworkName, chainID.String())
	}

	if code, err := g.backend.CodeAt(ctx, g.backend.ContractAddress()); err != nil {
		record("isDeployed", err)
	} else {
		info.IsDeployed = len(code) > 0
	}

	if balance, err := g.backend.BalanceAt(ctx, g.backend.ContractAddress()); err != nil {
		record("balance", err)
	} else {
		info.Balance = models.FormatUnits(balance, g.opts.Decimals)
	}

	if sess != nil && sess.Snapshot().IsConnected {
		info.UserAddress = sess.Snapshot().Account
	} else if from, ok := g.backend.From(); ok {
		info.UserAddress = from.Hex()
	}

	if info.IsDeployed {
		out, err := g.call(ctx, MethodOwner)
		owner, ok := toAddress(out, 0)
		switch {
		case err != nil:
			record("owner", err)
		case !ok:
			record("owner", fmt.Errorf("unexpected owner output %v", out))
		default:
			info.Owner = owner.Hex()
			if info.UserAddress != "" {
				isOwner := strings.EqualFold(info.Owner, info.UserAddress)
				info.IsOwner = &isOwner
			}
		}
	}

	if len(info.Errors) == 0 {
		info.Errors = nil
	}
	return info
}

func txResult(method string, receipt *types.Receipt) *models.TxResult {
	return &models.TxResult{
		Method:      method,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receiptBlock(receipt),
		GasUsed:     receipt.GasUsed,
	}
}

func receiptBlock(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

// decodeUint converts a ×100 contract value, saturating oversized values
func decodeUint(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsUint64() {
		f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(fixedpoint.Scale)).Float64()
		return f
	}
	return fixedpoint.Decode(v.Uint64())
}

func toBigInt(out []interface{}, i int) (*big.Int, bool) {
	if i >= len(out) {
		return nil, false
	}
	switch v := out[i].(type) {
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return v, true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	default:
		return nil, false
	}
}

func toBool(out []interface{}, i int) (bool, bool) {
	if i >= len(out) {
		return false, false
	}
	v, ok := out[i].(bool)
	return v, ok
}

func toAddress(out []interface{}, i int) (common.Address, bool) {
	if i >= len(out) {
		return common.Address{}, false
	}
	v, ok := out[i].(common.Address)
	return v, ok
}
