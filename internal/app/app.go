// Package app wires configuration into the running components shared by the
// server, the syncer and floodctl.
package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"floodguard/internal/config"
	"floodguard/internal/ledger"
	"floodguard/internal/noaa"
	"floodguard/internal/notifier"
	"floodguard/internal/repository"
	"floodguard/internal/services"
	"floodguard/internal/wallet"
	"floodguard/pkg/database"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config  *config.Config
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector

	DB    *database.DB
	Repo  repository.SnapshotRepository
	Stats *services.StatisticsService

	NOAA  *noaa.Client
	Flood *services.FloodDataService

	Gateway  *ledger.Gateway
	Provider wallet.Provider
	Session  *wallet.Session

	Notifier notifier.Notifier
	Sync     *services.SyncService

	closers []func()
}

// New builds every component enabled in cfg
func New(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, m *metrics.Collector) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: m}

	if err := a.openDatabase(); err != nil {
		a.Close()
		return nil, err
	}

	a.NOAA = noaa.NewClient(noaa.Options{
		BaseURL:     cfg.NOAA.BaseURL,
		Datum:       cfg.NOAA.Datum,
		Units:       cfg.NOAA.Units,
		TimeZone:    cfg.NOAA.TimeZone,
		Application: cfg.NOAA.Application,
		UserAgent:   cfg.NOAA.UserAgent,
		Timeout:     cfg.NOAA.Timeout,
	}, logger, m)

	a.Flood = services.NewFloodDataService(a.NOAA, services.FloodDataOptions{
		DefaultStation:  cfg.NOAA.DefaultStation,
		Timeout:         cfg.NOAA.Timeout,
		FallbackEnabled: cfg.NOAA.FallbackEnabled,
		Fallbacks: services.Fallbacks{
			WaterLevel:     cfg.NOAA.Fallback.WaterLevel,
			TidePrediction: cfg.NOAA.Fallback.TidePrediction,
			CurrentSpeed:   cfg.NOAA.Fallback.CurrentSpeed,
		},
	}, logger, m)

	if err := a.openLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openNotifier(); err != nil {
		a.Close()
		return nil, err
	}

	var syncer services.LedgerSyncer
	if a.Gateway != nil {
		syncer = a.Gateway
	}
	a.Sync = services.NewSyncService(a.Flood, a.Repo, syncer, a.Session, a.Notifier, services.SyncOptions{
		DefaultStation: cfg.SyncStation(),
		SubmitOnChain:  cfg.Sync.SubmitOnChain,
	}, logger, m)

	return a, nil
}

func (a *App) openDatabase() error {
	if !a.Config.Database.Enabled {
		a.Logger.Info(context.Background(), "[STARTUP] Database disabled, running without history", logging.Fields{})
		return nil
	}

	db, err := database.Open(a.Config.DatabaseOptions(), a.Logger, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { db.Close() })

	a.Repo = repository.NewSnapshotRepository(db, a.Logger, a.Metrics)
	a.Stats = services.NewStatisticsService(a.Repo, a.Logger, a.Metrics)
	return nil
}

// Network returns the chain sessions must be connected to
func Network(cfg *config.Config) wallet.NetworkConfig {
	network := wallet.NetworkConfig{
		ChainID:        cfg.Ledger.ChainID,
		ChainName:      cfg.Ledger.ChainName,
		CurrencyName:   cfg.Ledger.CurrencyName,
		CurrencySymbol: cfg.Ledger.CurrencySymbol,
		Decimals:       cfg.Ledger.CurrencyDecimals,
		RPCURLs:        []string{cfg.Ledger.RPCURL},
	}
	if cfg.Ledger.ExplorerURL != "" {
		network.ExplorerURLs = []string{cfg.Ledger.ExplorerURL}
	}
	return network
}

func (a *App) openLedger(ctx context.Context) error {
	cfg := a.Config.Ledger
	if !cfg.Enabled {
		a.Session = wallet.NewSession(nil, Network(a.Config), a.Logger)
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial ledger RPC: %w", err)
	}
	a.closers = append(a.closers, rpcClient.Close)

	backend, err := ledger.NewEthBackend(ethclient.NewClient(rpcClient), common.HexToAddress(cfg.ContractAddress), big.NewInt(cfg.ChainID), cfg.PrivateKey)
	if err != nil {
		return err
	}

	var signer *common.Address
	if cfg.PrivateKey != "" {
		addr, err := ledger.SignerAddress(cfg.PrivateKey)
		if err != nil {
			return err
		}
		signer = &addr
	}

	provider := wallet.NewRPCProvider(rpcClient, signer, a.Config.Wallet.PollInterval, a.Logger)
	a.closers = append(a.closers, provider.Close)
	a.Provider = provider
	a.Session = wallet.NewSession(provider, Network(a.Config), a.Logger)

	a.Gateway = ledger.NewGateway(backend, ledger.Options{
		NetworkName: cfg.ChainName,
		Decimals:    int32(cfg.CurrencyDecimals),
		GasLimit:    cfg.GasLimit,
		Timeout:     cfg.Timeout,
	}, a.Logger, a.Metrics)

	a.Logger.Info(ctx, "[STARTUP] Ledger gateway ready", logging.Fields{
		"contract": a.Gateway.Address(),
		"chain_id": cfg.ChainID,
		"signer":   signer != nil,
	})
	return nil
}

func (a *App) openNotifier() error {
	cfg := a.Config.Telegram
	if !cfg.Enabled {
		a.Notifier = notifier.Nop{}
		return nil
	}

	tg, err := notifier.NewTelegram(cfg.BotToken, notifier.TelegramOptions{
		ChatID:         cfg.ChatID,
		MaxRetries:     cfg.MaxRetries,
		RetryDelayBase: cfg.RetryDelayBase,
		ExplorerURL:    a.Config.Ledger.ExplorerURL,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Notifier = tg
	return nil
}

// ConnectSession connects the signer session, switches to the configured
// chain when needed and starts watching for account and chain changes
func (a *App) ConnectSession(ctx context.Context) error {
	if a.Provider == nil {
		return nil
	}

	unsubscribe := a.Session.Watch(a.Provider)
	a.closers = append(a.closers, unsubscribe)

	if err := a.Session.Connect(ctx); err != nil {
		return err
	}
	if !a.Session.Snapshot().IsCorrectNetwork {
		return a.Session.SwitchNetwork(ctx)
	}
	return nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
