package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"floodguard/pkg/logging"
)

// Caller is the JSON-RPC surface RPCProvider needs; *rpc.Client satisfies it
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

var _ Caller = (*rpc.Client)(nil)

// RPCProvider adapts a JSON-RPC node plus an optional local signer to the
// Provider boundary. Account and chain changes are detected by polling.
type RPCProvider struct {
	caller   Caller
	signer   *common.Address
	interval time.Duration
	logger   *logging.StructuredLogger

	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func(json.RawMessage)
	observed bool
	accounts string
	chainID  string

	startOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewRPCProvider creates a provider; signer may be nil for read-only use
func NewRPCProvider(caller Caller, signer *common.Address, pollInterval time.Duration, logger *logging.StructuredLogger) *RPCProvider {
	return &RPCProvider{
		caller:   caller,
		signer:   signer,
		interval: pollInterval,
		logger:   logger,
		handlers: make(map[string]map[int]func(json.RawMessage)),
		stop:     make(chan struct{}),
	}
}

// Request answers account queries from the local signer and forwards the rest
func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		if p.signer != nil {
			return json.Marshal([]string{p.signer.Hex()})
		}
		if method == "eth_requestAccounts" {
			return nil, &ProviderError{Code: CodeUnauthorized, Message: "no signer configured"}
		}
	case "wallet_switchEthereumChain", "wallet_addEthereumChain":
		return p.switchChain(ctx, method, params)
	}

	var raw json.RawMessage
	if err := p.caller.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, asProviderError(err)
	}
	return raw, nil
}

// A node-backed provider cannot change chains; it only confirms the one it serves
func (p *RPCProvider) switchChain(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	want := ""
	if len(params) > 0 {
		switch v := params[0].(type) {
		case SwitchChainParams:
			want = v.ChainID
		case AddChainParams:
			want = v.ChainID
		}
	}

	var current string
	if err := p.caller.CallContext(ctx, &current, "eth_chainId"); err != nil {
		return nil, asProviderError(err)
	}

	wantID, err := ParseChainID(want)
	if err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	currentID, err := ParseChainID(current)
	if err != nil {
		return nil, &ProviderError{Code: -32603, Message: err.Error()}
	}

	if wantID != currentID {
		if method == "wallet_switchEthereumChain" {
			return nil, &ProviderError{Code: CodeUnrecognizedChain, Message: "unrecognized chain ID " + want}
		}
		return nil, &ProviderError{Code: CodeChainUnavailable, Message: "RPC endpoint serves chain " + current}
	}
	return json.RawMessage("null"), nil
}

// Subscribe registers handler and starts the change watcher on first use
func (p *RPCProvider) Subscribe(event string, handler func(payload json.RawMessage)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[int]func(json.RawMessage))
	}
	p.handlers[event][id] = handler
	p.mu.Unlock()

	if p.interval > 0 {
		p.startOnce.Do(func() { go p.watch() })
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers[event], id)
			p.mu.Unlock()
		})
	}
}

// Close stops the change watcher
func (p *RPCProvider) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *RPCProvider) watch() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		if err := p.Poll(ctx); err != nil {
			p.logger.Debug(ctx, "[WALLET_POLL] Poll failed", logging.Fields{"error": err.Error()})
		}
		cancel()

		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
	}
}

// Poll observes accounts and chain once and notifies subscribers of changes.
// The first observation only records the baseline.
func (p *RPCProvider) Poll(ctx context.Context) error {
	accounts, err := p.Request(ctx, "eth_accounts")
	if err != nil {
		return err
	}
	var chainID string
	if err := p.caller.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return asProviderError(err)
	}
	chainPayload, _ := json.Marshal(chainID)

	p.mu.Lock()
	first := !p.observed
	accountsChanged := !first && string(accounts) != p.accounts
	chainChanged := !first && chainID != p.chainID
	p.observed = true
	p.accounts = string(accounts)
	p.chainID = chainID
	p.mu.Unlock()

	if accountsChanged {
		p.dispatch(EventAccountsChanged, accounts)
	}
	if chainChanged {
		p.dispatch(EventChainChanged, chainPayload)
	}
	return nil
}

func (p *RPCProvider) dispatch(event string, payload json.RawMessage) {
	p.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(p.handlers[event]))
	for _, h := range p.handlers[event] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func asProviderError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return err
}
