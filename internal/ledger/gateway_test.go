package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"floodguard/internal/models"
	"floodguard/internal/wallet"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

var (
	contractAddr = common.HexToAddress("0x8AB8315fa4aFD44923E834623f04b757b23f039e")
	signerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

var testNetwork = wallet.NetworkConfig{
	ChainID:        1043,
	ChainName:      "Primordial BlockDAG Testnet",
	CurrencyName:   "BDAG",
	CurrencySymbol: "BDAG",
	Decimals:       18,
}

type sentTx struct {
	method   string
	value    *big.Int
	gasLimit uint64
	args     []interface{}
}

// fakeBackend scripts view results and write outcomes
type fakeBackend struct {
	mu sync.Mutex

	code     []byte
	codeErr  error
	balance  *big.Int
	chainID  *big.Int
	readOnly bool

	results map[string][]interface{}
	callErr map[string]error

	estimateErr error
	transactErr error
	waitErr     error
	waitBlocks  bool
	status      uint64

	calls     []string
	estimated []string
	sent      []sentTx
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		code:    []byte{0x60, 0x80},
		balance: big.NewInt(0),
		chainID: big.NewInt(1043),
		results: map[string][]interface{}{},
		callErr: map[string]error{},
		status:  types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) ContractAddress() common.Address { return contractAddr }

func (f *fakeBackend) From() (common.Address, bool) {
	if f.readOnly {
		return common.Address{}, false
	}
	return signerAddr, true
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return f.code, f.codeErr
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if f.balance == nil {
		return nil, errors.New("balance unavailable")
	}
	return f.balance, nil
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err := f.callErr[method]; err != nil {
		return nil, err
	}
	out, ok := f.results[method]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, method string, value *big.Int, args ...interface{}) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated = append(f.estimated, method)
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 51234, nil
}

func (f *fakeBackend) Transact(ctx context.Context, method string, value *big.Int, gasLimit uint64, args ...interface{}) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	f.sent = append(f.sent, sentTx{method: method, value: value, gasLimit: gasLimit, args: args})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.sent)), Gas: gasLimit, Value: value}), nil
}

func (f *fakeBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if f.waitBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &types.Receipt{
		Status:      f.status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(42),
		GasUsed:     48000,
	}, nil
}

// dataError mimics a node error carrying revert data
type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

// stubProvider answers the two requests a session needs to connect
type stubProvider struct {
	chainID string
}

func (p *stubProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		return json.Marshal([]string{signerAddr.Hex()})
	case "eth_chainId":
		return json.Marshal(p.chainID)
	}
	return json.Marshal(nil)
}

func (p *stubProvider) Subscribe(event string, handler func(json.RawMessage)) func() {
	return func() {}
}

func connectedSession(t *testing.T, chainID string) *wallet.Session {
	t.Helper()
	s := wallet.NewSession(&stubProvider{chainID: chainID}, testNetwork, logging.NewNopLogger())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func newTestGateway(b Backend, timeout time.Duration) (*Gateway, *metrics.Collector) {
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	g := NewGateway(b, Options{
		NetworkName: "Primordial BlockDAG Testnet",
		Decimals:    18,
		GasLimit:    300000,
		Timeout:     timeout,
	}, logging.NewNopLogger(), collector)
	return g, collector
}

func testMetrics() *models.FloodMetrics {
	return models.NewFloodMetrics(2.5, 1.8, 2.1, time.Unix(1700000000, 0), "Station 8518750")
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}

func TestSubmitMetrics_Success(t *testing.T) {
	b := newFakeBackend()
	g, collector := newTestGateway(b, time.Second)

	m := models.NewFloodMetrics(1.15, 1.8, 2.1, time.Unix(1700000000, 0), "Station 8518750")
	result, err := g.SubmitMetrics(context.Background(), connectedSession(t, "0x413"), m)
	if err != nil {
		t.Fatalf("SubmitMetrics: %v", err)
	}

	if len(b.estimated) != 1 || len(b.sent) != 1 {
		t.Fatalf("estimated=%v sent=%d, want one estimate then one send", b.estimated, len(b.sent))
	}
	sent := b.sent[0]
	if sent.method != MethodUpdateAllMetrics || sent.gasLimit != 300000 {
		t.Errorf("sent %s with gas %d", sent.method, sent.gasLimit)
	}
	want := []int64{115, 180, 210}
	for i, w := range want {
		if got := sent.args[i].(*big.Int).Int64(); got != w {
			t.Errorf("arg %d = %d, want %d", i, got, w)
		}
	}

	if result.BlockNumber != 42 || result.GasUsed != 48000 || result.TxHash == "" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Encoded.WaterLevel != 115 {
		t.Errorf("Encoded.WaterLevel = %d", result.Encoded.WaterLevel)
	}
	if got := testutil.ToFloat64(collector.LedgerCallsTotal.WithLabelValues(MethodUpdateAllMetrics, "success")); got != 1 {
		t.Errorf("success counter = %v", got)
	}
}

func TestSubmitMetrics_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(b *fakeBackend)
		wantKind   models.ErrorKind
		wantReason string
		wantSent   bool
	}{
		{
			name: "restricted selector in revert data",
			setup: func(b *fakeBackend) {
				b.estimateErr = &dataError{msg: "execution reverted", data: "0x118cdaa7000000000000000000000000bb"}
			},
			wantKind:   models.KindAuthorizationDenied,
			wantReason: "only the contract owner",
		},
		{
			name: "other estimate revert",
			setup: func(b *fakeBackend) {
				b.estimateErr = errors.New("execution reverted: paused")
			},
			wantKind:   models.KindGenericFailure,
			wantReason: "transaction will fail",
		},
		{
			name: "user rejected",
			setup: func(b *fakeBackend) {
				b.transactErr = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "denied"}
			},
			wantKind:   models.KindUserRejected,
			wantReason: "cancelled by user",
		},
		{
			name: "insufficient funds",
			setup: func(b *fakeBackend) {
				b.transactErr = errors.New("insufficient funds for gas * price + value")
			},
			wantKind:   models.KindInsufficientFunds,
			wantReason: "insufficient balance",
		},
		{
			name: "not deployed",
			setup: func(b *fakeBackend) {
				b.code = nil
			},
			wantKind:   models.KindContractNotDeployed,
			wantReason: "no contract deployed",
		},
		{
			name: "reverted receipt",
			setup: func(b *fakeBackend) {
				b.status = types.ReceiptStatusFailed
			},
			wantKind:   models.KindGenericFailure,
			wantReason: "reverted",
			wantSent:   true,
		},
		{
			name: "read-only backend",
			setup: func(b *fakeBackend) {
				b.readOnly = true
			},
			wantKind:   models.KindNoProvider,
			wantReason: "no signer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			tt.setup(b)
			g, collector := newTestGateway(b, time.Second)

			_, err := g.SubmitMetrics(context.Background(), connectedSession(t, "0x413"), testMetrics())
			if models.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q (%v), want %q", models.KindOf(err), err, tt.wantKind)
			}
			if !strings.Contains(models.ReasonOf(err), tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", models.ReasonOf(err), tt.wantReason)
			}
			if (len(b.sent) > 0) != tt.wantSent {
				t.Errorf("sent = %d transactions", len(b.sent))
			}
			if got := testutil.ToFloat64(collector.LedgerErrorsTotal.WithLabelValues(string(tt.wantKind))); got != 1 {
				t.Errorf("error counter = %v", got)
			}
		})
	}
}

func TestSubmitMetrics_SessionGate(t *testing.T) {
	tests := []struct {
		name     string
		session  func(t *testing.T) *wallet.Session
		wantKind models.ErrorKind
	}{
		{
			name:     "nil session",
			session:  func(t *testing.T) *wallet.Session { return nil },
			wantKind: models.KindNoProvider,
		},
		{
			name: "not connected",
			session: func(t *testing.T) *wallet.Session {
				return wallet.NewSession(&stubProvider{chainID: "0x413"}, testNetwork, logging.NewNopLogger())
			},
			wantKind: models.KindNoProvider,
		},
		{
			name:     "wrong network",
			session:  func(t *testing.T) *wallet.Session { return connectedSession(t, "0x1") },
			wantKind: models.KindNetworkMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			g, _ := newTestGateway(b, time.Second)

			_, err := g.SubmitMetrics(context.Background(), tt.session(t), testMetrics())
			if models.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q, want %q", models.KindOf(err), tt.wantKind)
			}
			if len(b.estimated)+len(b.sent) != 0 {
				t.Error("gated write must not reach the ledger")
			}
		})
	}
}

func TestSubmitMetrics_Timeout(t *testing.T) {
	b := newFakeBackend()
	b.waitBlocks = true
	g, _ := newTestGateway(b, 20*time.Millisecond)

	_, err := g.SubmitMetrics(context.Background(), connectedSession(t, "0x413"), testMetrics())
	if models.KindOf(err) != models.KindGenericFailure || !models.IsTimeout(err) {
		t.Fatalf("err = %v, want GenericFailure with timeout", err)
	}
}

func TestSubmitMetrics_InvalidInput(t *testing.T) {
	b := newFakeBackend()
	g, _ := newTestGateway(b, time.Second)

	m := testMetrics()
	m.WaterLevel = -1
	_, err := g.SubmitMetrics(context.Background(), connectedSession(t, "0x413"), m)
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(b.estimated) != 0 {
		t.Error("invalid metrics must not be estimated")
	}
}

func TestReadMetrics(t *testing.T) {
	b := newFakeBackend()
	b.results[MethodWaterLevel] = []interface{}{big.NewInt(250)}
	b.results[MethodTidePrediction] = []interface{}{big.NewInt(180)}
	b.results[MethodCurrentSpeed] = []interface{}{big.NewInt(210)}
	b.results[MethodCurrentThreatLevel] = []interface{}{uint8(2)}
	g, collector := newTestGateway(b, time.Second)

	first, err := g.ReadMetrics(context.Background())
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if first.WaterLevel != 2.5 || first.TidePrediction != 1.8 || first.CurrentSpeed != 2.1 {
		t.Errorf("unexpected values: %+v", first)
	}
	if !first.FloodRisk || first.ThreatLevel != 2 {
		t.Errorf("threat level 2 should mean flood risk: %+v", first)
	}
	if got := testutil.ToFloat64(collector.ThreatLevel); got != 2 {
		t.Errorf("threat gauge = %v", got)
	}

	second, err := g.ReadMetrics(context.Background())
	if err != nil || *second != *first {
		t.Errorf("repeated read differs: %+v vs %+v (%v)", second, first, err)
	}
}

func TestReadMetrics_PartialFailureReadsZero(t *testing.T) {
	b := newFakeBackend()
	b.results[MethodWaterLevel] = []interface{}{big.NewInt(250)}
	b.callErr[MethodTidePrediction] = errors.New("rpc unavailable")
	b.results[MethodCurrentSpeed] = []interface{}{big.NewInt(210)}
	b.results[MethodCurrentThreatLevel] = []interface{}{uint8(1)}
	g, _ := newTestGateway(b, time.Second)

	got, err := g.ReadMetrics(context.Background())
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if got.TidePrediction != 0 || got.WaterLevel != 2.5 {
		t.Errorf("unexpected values: %+v", got)
	}
	if got.FloodRisk {
		t.Error("threat level 1 must not mean flood risk")
	}
}

func TestReadMetrics_NotDeployed(t *testing.T) {
	b := newFakeBackend()
	b.code = []byte{}
	g, _ := newTestGateway(b, time.Second)

	if _, err := g.ReadMetrics(context.Background()); models.KindOf(err) != models.KindContractNotDeployed {
		t.Fatalf("err = %v, want ContractNotDeployed", err)
	}
	if len(b.calls) != 0 {
		t.Errorf("reads issued against a missing contract: %v", b.calls)
	}
}

func TestReadBalance(t *testing.T) {
	t.Run("contract view", func(t *testing.T) {
		b := newFakeBackend()
		b.results[MethodGetContractBalance] = []interface{}{wei("1500000000000000000")}
		g, _ := newTestGateway(b, time.Second)

		got, err := g.ReadBalance(context.Background())
		if err != nil || got != "1.5" {
			t.Errorf("ReadBalance = %q, %v", got, err)
		}
	})

	t.Run("falls back to native balance", func(t *testing.T) {
		b := newFakeBackend()
		b.balance = wei("250000000000000000")
		g, collector := newTestGateway(b, time.Second)

		got, err := g.ReadBalance(context.Background())
		if err != nil || got != "0.25" {
			t.Errorf("ReadBalance = %q, %v", got, err)
		}
		if got := testutil.ToFloat64(collector.LedgerCallsTotal.WithLabelValues(MethodGetContractBalance, "error")); got != 1 {
			t.Errorf("error counter = %v, want 1", got)
		}
	})

	t.Run("unexpected view output falls back", func(t *testing.T) {
		b := newFakeBackend()
		b.results[MethodGetContractBalance] = []interface{}{"not a number"}
		b.balance = wei("3000000000000000000")
		g, collector := newTestGateway(b, time.Second)

		got, err := g.ReadBalance(context.Background())
		if err != nil || got != "3" {
			t.Errorf("ReadBalance = %q, %v", got, err)
		}
		if got := testutil.ToFloat64(collector.LedgerCallsTotal.WithLabelValues(MethodGetContractBalance, "error")); got != 1 {
			t.Errorf("error counter = %v, want 1", got)
		}
	})

	t.Run("both reads fail", func(t *testing.T) {
		b := newFakeBackend()
		b.balance = nil
		g, _ := newTestGateway(b, time.Second)

		if _, err := g.ReadBalance(context.Background()); models.KindOf(err) != models.KindGenericFailure {
			t.Errorf("err = %v, want GenericFailure", err)
		}
	})
}

func TestReadDeposit(t *testing.T) {
	investor := "0x00000000000000000000000000000000000000bb"

	t.Run("invalid address", func(t *testing.T) {
		b := newFakeBackend()
		g, _ := newTestGateway(b, time.Second)

		_, err := g.ReadDeposit(context.Background(), "0x1234")
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		if len(b.calls) != 0 {
			t.Error("invalid address must not reach the ledger")
		}
	})

	t.Run("read failure returns empty deposit", func(t *testing.T) {
		b := newFakeBackend()
		g, _ := newTestGateway(b, time.Second)

		got, err := g.ReadDeposit(context.Background(), investor)
		if err != nil {
			t.Fatalf("ReadDeposit: %v", err)
		}
		if *got != *models.EmptyDeposit() {
			t.Errorf("got %+v, want empty deposit", got)
		}
	})

	t.Run("stake", func(t *testing.T) {
		b := newFakeBackend()
		b.results[MethodGetInvestorDeposit] = []interface{}{wei("2000000000000000000"), big.NewInt(1700000000), true}
		g, _ := newTestGateway(b, time.Second)

		got, err := g.ReadDeposit(context.Background(), investor)
		if err != nil {
			t.Fatalf("ReadDeposit: %v", err)
		}
		want := models.Deposit{Amount: "2", DepositTime: 1700000000, Withdrawn: true}
		if *got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
}

func TestReadFundsInfo(t *testing.T) {
	b := newFakeBackend()
	b.results[MethodTotalSponsorFunds] = []interface{}{wei("1500000000000000000")}
	b.results[MethodTotalInvestorFunds] = []interface{}{wei("2250000000000000000")}
	g, _ := newTestGateway(b, time.Second)

	got, err := g.ReadFundsInfo(context.Background())
	if err != nil {
		t.Fatalf("ReadFundsInfo: %v", err)
	}
	want := models.FundsInfo{SponsorFunds: "1.5", InvestorFunds: "2.25", TotalFunds: "3.75"}
	if *got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	delete(b.results, MethodTotalInvestorFunds)
	got, err = g.ReadFundsInfo(context.Background())
	if err != nil {
		t.Fatalf("ReadFundsInfo: %v", err)
	}
	if got.InvestorFunds != "0" || got.TotalFunds != "1.5" {
		t.Errorf("failed field should read zero: %+v", got)
	}
}

func TestDeposits(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		wantValue string
		wantErr   bool
	}{
		{"half unit", "0.5", "500000000000000000", false},
		{"whole units", "3", "3000000000000000000", false},
		{"zero", "0", "", true},
		{"negative", "-1", "", true},
		{"too precise", "0.0000000000000000001", "", true},
		{"garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			g, _ := newTestGateway(b, time.Second)
			sess := connectedSession(t, "0x413")

			result, err := g.DepositAsInvestor(context.Background(), sess, tt.amount)
			if tt.wantErr {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				if len(b.sent) != 0 {
					t.Error("rejected amount must not be sent")
				}
				return
			}
			if err != nil {
				t.Fatalf("DepositAsInvestor: %v", err)
			}
			if result.Method != MethodDepositAsInvestor || b.sent[0].value.String() != tt.wantValue {
				t.Errorf("sent %s value %s", b.sent[0].method, b.sent[0].value)
			}
		})
	}

	b := newFakeBackend()
	g, _ := newTestGateway(b, time.Second)
	if _, err := g.DepositAsSponsor(context.Background(), connectedSession(t, "0x413"), "1"); err != nil {
		t.Fatalf("DepositAsSponsor: %v", err)
	}
	if b.sent[0].method != MethodDepositAsSponsor {
		t.Errorf("sent %s", b.sent[0].method)
	}
}

func TestAddBeneficiaryAndWithdrawals(t *testing.T) {
	b := newFakeBackend()
	g, _ := newTestGateway(b, time.Second)
	sess := connectedSession(t, "0x413")

	if _, err := g.AddBeneficiary(context.Background(), sess, "not-an-address"); err == nil {
		t.Error("invalid beneficiary should fail validation")
	}
	if len(b.sent) != 0 {
		t.Fatal("invalid beneficiary reached the ledger")
	}

	beneficiary := "0x00000000000000000000000000000000000000cc"
	if _, err := g.AddBeneficiary(context.Background(), sess, beneficiary); err != nil {
		t.Fatalf("AddBeneficiary: %v", err)
	}
	if got := b.sent[0].args[0].(common.Address); got != common.HexToAddress(beneficiary) {
		t.Errorf("beneficiary arg = %s", got.Hex())
	}

	result, err := g.TriggerWithdrawals(context.Background(), sess)
	if err != nil {
		t.Fatalf("TriggerWithdrawals: %v", err)
	}
	if result.Method != MethodTriggerWithdrawals || result.BlockNumber != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestDebug(t *testing.T) {
	b := newFakeBackend()
	b.balance = wei("1000000000000000000")
	b.results[MethodOwner] = []interface{}{signerAddr}
	g, _ := newTestGateway(b, time.Second)

	info := g.Debug(context.Background(), connectedSession(t, "0x413"))
	if info.Network != "Primordial BlockDAG Testnet (1043)" {
		t.Errorf("Network = %q", info.Network)
	}
	if !info.IsDeployed || info.Balance != "1" {
		t.Errorf("unexpected deployment info: %+v", info)
	}
	if info.IsOwner == nil || !*info.IsOwner {
		t.Errorf("signer should be the owner: %+v", info)
	}
	if info.Errors != nil {
		t.Errorf("Errors = %v", info.Errors)
	}
}

func TestDebug_IndependentFields(t *testing.T) {
	b := newFakeBackend()
	b.balance = nil
	g, _ := newTestGateway(b, time.Second)

	info := g.Debug(context.Background(), nil)
	if !info.IsDeployed || info.Network == "" {
		t.Errorf("healthy fields should still be reported: %+v", info)
	}
	if _, ok := info.Errors["balance"]; !ok {
		t.Errorf("balance failure not reported: %v", info.Errors)
	}
	if _, ok := info.Errors["owner"]; !ok {
		t.Errorf("owner failure not reported: %v", info.Errors)
	}
	if info.UserAddress != signerAddr.Hex() || info.IsOwner != nil {
		t.Errorf("user address should fall back to the signer: %+v", info)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    models.ErrorKind
		wantTimeout bool
	}{
		{"deadline", context.DeadlineExceeded, models.KindGenericFailure, true},
		{"code 4001", &wallet.ProviderError{Code: 4001, Message: "nope"}, models.KindUserRejected, false},
		{"user rejected text", errors.New("User rejected the transaction"), models.KindUserRejected, false},
		{"insufficient funds", errors.New("err: insufficient funds for transfer"), models.KindInsufficientFunds, false},
		{"restricted data", &dataError{msg: "execution reverted", data: "0x118cdaa7"}, models.KindAuthorizationDenied, false},
		{"restricted inline", errors.New("execution reverted: custom error 0x118cdaa7"), models.KindAuthorizationDenied, false},
		{"other", errors.New("nonce too low"), models.KindGenericFailure, false},
		{"already classified", models.NewFloodError(models.KindNetworkMismatch, "x", "y", nil), models.KindNetworkMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Classify("op", tt.err)
			if fe.Kind != tt.wantKind || fe.Timeout != tt.wantTimeout {
				t.Errorf("Classify = %+v, want kind %q timeout %v", fe, tt.wantKind, tt.wantTimeout)
			}
		})
	}

	if Classify("op", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	long := errors.New(strings.Repeat("x", 500) + "\nstack")
	if r := Classify("op", long).Reason; len(r) > maxReasonLength+3 || strings.Contains(r, "stack") {
		t.Errorf("reason not shortened: %d chars", len(r))
	}
}

func TestParsedABI(t *testing.T) {
	parsed := ParsedABI()
	for _, method := range []string{
		MethodUpdateAllMetrics, MethodDepositAsSponsor, MethodDepositAsInvestor, MethodAddBeneficiary,
		MethodTriggerWithdrawals, MethodOwner, MethodGetContractBalance, MethodGetInvestorDeposit,
		MethodWaterLevel, MethodTidePrediction, MethodCurrentSpeed, MethodCurrentThreatLevel,
		MethodTotalSponsorFunds, MethodTotalInvestorFunds,
	} {
		if _, ok := parsed.Methods[method]; !ok {
			t.Errorf("ABI missing method %s", method)
		}
	}
	if len(parsed.Events) != 6 {
		t.Errorf("ABI has %d events, want 6", len(parsed.Events))
	}
	if !parsed.Methods[MethodDepositAsSponsor].IsPayable() {
		t.Error("depositAsSponsor must be payable")
	}
}
