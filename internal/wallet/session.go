package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"floodguard/internal/models"
	"floodguard/pkg/logging"
)

// State is the session record. It is replaced wholesale on every transition.
type State struct {
	Account          string            `json:"account,omitempty"`
	IsConnected      bool              `json:"isConnected"`
	IsCorrectNetwork bool              `json:"isCorrectNetwork"`
	LastError        *models.ErrorKind `json:"lastError,omitempty"`
}

// Session tracks one signer connection against the expected network
type Session struct {
	provider Provider
	network  NetworkConfig
	logger   *logging.StructuredLogger

	mu    sync.RWMutex
	state State
}

// NewSession creates a disconnected session; provider may be nil
func NewSession(provider Provider, network NetworkConfig, logger *logging.StructuredLogger) *Session {
	return &Session{
		provider: provider,
		network:  network,
		logger:   logger,
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.LastError != nil {
		kind := *st.LastError
		st.LastError = &kind
	}
	return st
}

// Network returns the network the session expects
func (s *Session) Network() NetworkConfig {
	return s.network
}

func (s *Session) replace(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// fail records err's kind on the current record and returns err
func (s *Session) fail(err *models.FloodError) error {
	s.mu.Lock()
	next := s.state
	kind := err.Kind
	next.LastError = &kind
	s.state = next
	s.mu.Unlock()
	return err
}

// Connect requests accounts and checks the chain
func (s *Session) Connect(ctx context.Context) error {
	if s.provider == nil {
		return s.fail(noProvider("connect"))
	}

	raw, err := s.provider.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return s.fail(s.classify("connect", "failed to connect wallet", err))
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil || len(accounts) == 0 {
		return s.fail(models.NewFloodError(models.KindNoProvider, "connect", "wallet returned no accounts", err))
	}

	correct, err := s.onExpectedChain(ctx)
	if err != nil {
		return s.fail(s.classify("connect", "failed to read chain id", err))
	}

	s.replace(State{
		Account:          accounts[0],
		IsConnected:      true,
		IsCorrectNetwork: correct,
	})

	s.logger.Info(ctx, "[WALLET_CONNECT] Session connected", logging.Fields{
		"account":            accounts[0],
		"is_correct_network": correct,
	})
	return nil
}

// SwitchNetwork asks the provider to switch chains, adding the chain when the
// provider reports it as unrecognized
func (s *Session) SwitchNetwork(ctx context.Context) error {
	if s.provider == nil {
		return s.fail(noProvider("switchNetwork"))
	}

	_, err := s.provider.Request(ctx, "wallet_switchEthereumChain", SwitchChainParams{ChainID: s.network.ChainIDHex()})
	if err != nil {
		if providerCode(err) != CodeUnrecognizedChain {
			return s.fail(s.classify("switchNetwork", "failed to switch network", err))
		}

		s.logger.Info(ctx, "[WALLET_ADD_CHAIN] Chain unknown to provider, adding it", logging.Fields{
			"chain_id":   s.network.ChainID,
			"chain_name": s.network.ChainName,
		})
		if _, err := s.provider.Request(ctx, "wallet_addEthereumChain", s.network.AddChainParams()); err != nil {
			return s.fail(s.classify("switchNetwork", fmt.Sprintf("failed to add %s network", s.network.ChainName), err))
		}
	}

	s.mu.Lock()
	next := s.state
	next.IsCorrectNetwork = true
	next.LastError = nil
	s.state = next
	s.mu.Unlock()
	return nil
}

// Disconnect resets the session
func (s *Session) Disconnect() {
	s.replace(State{})
}

// OnAccountsChanged applies an accountsChanged notification
func (s *Session) OnAccountsChanged(accounts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(accounts) == 0 {
		s.state = State{}
		return
	}
	s.state = State{
		Account:          accounts[0],
		IsConnected:      true,
		IsCorrectNetwork: s.state.IsCorrectNetwork,
	}
}

// OnChainChanged applies a chainChanged notification
func (s *Session) OnChainChanged(chainID string) {
	id, err := ParseChainID(chainID)
	correct := err == nil && id == s.network.ChainID

	s.mu.Lock()
	next := s.state
	next.IsCorrectNetwork = correct
	s.state = next
	s.mu.Unlock()
}

// Watch subscribes the session to provider notifications
func (s *Session) Watch(provider Provider) (unsubscribe func()) {
	if provider == nil {
		return func() {}
	}

	unsubAccounts := provider.Subscribe(EventAccountsChanged, func(payload json.RawMessage) {
		var accounts []string
		if err := json.Unmarshal(payload, &accounts); err != nil {
			s.logger.Warn(context.Background(), "[WALLET_EVENT] Ignoring malformed accountsChanged payload", logging.Fields{
				"payload": string(payload),
			})
			return
		}
		s.OnAccountsChanged(accounts)
	})
	unsubChain := provider.Subscribe(EventChainChanged, func(payload json.RawMessage) {
		var chainID string
		if err := json.Unmarshal(payload, &chainID); err != nil {
			chainID = string(payload)
		}
		s.OnChainChanged(chainID)
	})

	return func() {
		unsubAccounts()
		unsubChain()
	}
}

// Require gates ledger writes on a connected session on the right network
func (s *Session) Require() error {
	if s.provider == nil {
		return noProvider("require")
	}
	st := s.Snapshot()
	if !st.IsConnected {
		return models.NewFloodError(models.KindNoProvider, "require", "wallet is not connected", nil)
	}
	if !st.IsCorrectNetwork {
		return models.NewFloodError(models.KindNetworkMismatch, "require",
			fmt.Sprintf("wallet is not on %s", s.network.ChainName), nil)
	}
	return nil
}

func (s *Session) onExpectedChain(ctx context.Context) (bool, error) {
	raw, err := s.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return false, err
	}
	var chainID string
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return false, fmt.Errorf("invalid eth_chainId response: %w", err)
	}
	id, err := ParseChainID(chainID)
	if err != nil {
		return false, err
	}
	return id == s.network.ChainID, nil
}

func (s *Session) classify(op, reason string, err error) *models.FloodError {
	s.logger.Error(context.Background(), "[WALLET_ERROR] Provider request failed", logging.Fields{
		"op": op,
	}, err)

	kind := models.KindGenericFailure
	if providerCode(err) == CodeUserRejected || strings.Contains(strings.ToLower(err.Error()), "user rejected") {
		kind = models.KindUserRejected
		reason = "request rejected by user"
	}
	return &models.FloodError{
		Kind:    kind,
		Op:      op,
		Reason:  reason,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

func noProvider(op string) *models.FloodError {
	return models.NewFloodError(models.KindNoProvider, op, "no wallet provider available", nil)
}

func providerCode(err error) int {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return 0
}
