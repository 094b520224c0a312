package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the contract-bound RPC surface the gateway drives
type Backend interface {
	ContractAddress() common.Address
	// From returns the signing account, false when the backend is read-only
	From() (common.Address, bool)
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	EstimateGas(ctx context.Context, method string, value *big.Int, args ...interface{}) (uint64, error)
	Transact(ctx context.Context, method string, value *big.Int, gasLimit uint64, args ...interface{}) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// EthBackend implements Backend over an ethclient connection
type EthBackend struct {
	client   *ethclient.Client
	address  common.Address
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

// NewEthBackend binds the FloodPredictor contract at address. privateKeyHex
// may be empty for a read-only backend.
func NewEthBackend(client *ethclient.Client, address common.Address, chainID *big.Int, privateKeyHex string) (*EthBackend, error) {
	b := &EthBackend{
		client:   client,
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
	}

	if privateKeyHex == "" {
		return b, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid ledger private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	b.auth = auth

	return b, nil
}

// SignerAddress derives the account for a hex private key
func SignerAddress(privateKeyHex string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid ledger private key: %w", err)
	}
	return crypto.PubkeyToAddress(*key.Public().(*ecdsa.PublicKey)), nil
}

func (b *EthBackend) ContractAddress() common.Address {
	return b.address
}

func (b *EthBackend) From() (common.Address, bool) {
	if b.auth == nil {
		return common.Address{}, false
	}
	return b.auth.From, true
}

func (b *EthBackend) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.client.CodeAt(ctx, account, nil)
}

func (b *EthBackend) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return b.client.BalanceAt(ctx, account, nil)
}

func (b *EthBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.client.ChainID(ctx)
}

func (b *EthBackend) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if from, ok := b.From(); ok {
		opts.From = from
	}
	if err := b.contract.Call(opts, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *EthBackend) EstimateGas(ctx context.Context, method string, value *big.Int, args ...interface{}) (uint64, error) {
	input, err := parsedABI.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:    &b.address,
		Value: value,
		Data:  input,
	}
	if from, ok := b.From(); ok {
		msg.From = from
	}
	return b.client.EstimateGas(ctx, msg)
}

func (b *EthBackend) Transact(ctx context.Context, method string, value *big.Int, gasLimit uint64, args ...interface{}) (*types.Transaction, error) {
	if b.auth == nil {
		return nil, fmt.Errorf("no signer configured")
	}
	opts := *b.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit
	opts.Value = value
	return b.contract.Transact(&opts, method, args...)
}

func (b *EthBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, b.client, tx)
}
