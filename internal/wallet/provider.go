// Package wallet tracks the signer session the ledger gateway writes with:
// which account is connected and whether it is on the expected chain.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Provider events
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// EIP-1193 and wallet error codes the session reacts to
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeChainUnavailable  = 4901
	CodeUnrecognizedChain = 4902
)

// Provider is a request/subscribe wallet boundary
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	// Subscribe registers handler for event; the returned func removes it
	Subscribe(event string, handler func(payload json.RawMessage)) (unsubscribe func())
}

// ProviderError is a coded provider failure
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode matches the interface go-ethereum's rpc errors expose
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// NetworkConfig describes the chain sessions must be connected to
type NetworkConfig struct {
	ChainID        int64
	ChainName      string
	CurrencyName   string
	CurrencySymbol string
	Decimals       int
	RPCURLs        []string
	ExplorerURLs   []string
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallets use
func (n NetworkConfig) ChainIDHex() string {
	return hexutil.EncodeBig(big.NewInt(n.ChainID))
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// AddChainParams is the wallet_addEthereumChain parameter object
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// AddChainParams builds the request body for wallet_addEthereumChain
func (n NetworkConfig) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:   n.ChainIDHex(),
		ChainName: n.ChainName,
		RPCURLs:   n.RPCURLs,
		NativeCurrency: nativeCurrency{
			Name:     n.CurrencyName,
			Symbol:   n.CurrencySymbol,
			Decimals: n.Decimals,
		},
		BlockExplorerURLs: n.ExplorerURLs,
	}
}

// SwitchChainParams is the wallet_switchEthereumChain parameter object
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// ParseChainID accepts hex ("0x413") or decimal ("1043") chain ids
func ParseChainID(s string) (int64, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(strings.ToLower(s))
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return v.Int64(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	return v.Int64(), nil
}
