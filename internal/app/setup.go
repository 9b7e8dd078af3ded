package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/balance"
	"github.com/polyarb/polyarb/internal/detector"
	"github.com/polyarb/polyarb/internal/execution"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/notify"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/internal/redemption"
	"github.com/polyarb/polyarb/internal/storage"
	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/healthprobe"
	"github.com/polyarb/polyarb/pkg/httpserver"
	"github.com/polyarb/polyarb/pkg/types"
	"github.com/polyarb/polyarb/pkg/wallet"
	"github.com/polyarb/polyarb/pkg/websocket"
)

// New wires the application. Live mode requires trading credentials.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if !cfg.DryRun && !cfg.TradingConfigured() {
		return nil, fmt.Errorf("live mode requires POLYMARKET_PRIVATE_KEY and L2 API credentials")
	}

	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:       cfg,
		logger:    logger,
		polling:   opts.Polling,
		health:    healthprobe.New(),
		alertChan: make(chan *types.Alert, 1000),
		ctx:       ctx,
		cancel:    cancel,
	}

	metaCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000, // 10x the token universe
		MaxCost:     10000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	a.negRisk = markets.NewNegRiskCache(cfg.CLOBURL, metaCache, logger)

	a.marketSvc = markets.New(&markets.Config{
		Client:          markets.NewClient(cfg.GammaURL, logger),
		Logger:          logger,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MaxMarkets:      (websocket.MaxAssetsPerConn / 2) * cfg.NumWSConnections,
		RefreshInterval: cfg.MarketRefreshInterval,
		Tolerance:       cfg.MarketRefreshTolerance,
	})

	a.pool = websocket.NewPool(websocket.PoolConfig{
		Size:        cfg.NumWSConnections,
		URL:         cfg.WSURL,
		DialTimeout: cfg.WSDialTimeout,
		Reconnect: websocket.ReconnectConfig{
			InitialDelay: cfg.WSReconnectInitial,
			FirstWaitCap: cfg.WSReconnectFirstMax,
			MaxDelay:     cfg.WSReconnectCeiling,
		},
		MessageBuffer:    cfg.WSMessageBuffer,
		WatchdogInterval: cfg.WatchdogInterval,
		StaleThreshold:   cfg.StaleThreshold,
		Logger:           logger,
	})

	a.bookStore = orderbook.New(&orderbook.Config{
		Logger:        logger,
		UpdateChannel: a.pool.UpdateChan(),
	})

	a.store, err = setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	a.writer = storage.NewAsyncWriter(a.store, 4, 4096, logger)

	if cfg.SlackWebhookURL != "" {
		a.notifier = notify.NewSlack(cfg.SlackWebhookURL, logger)
	} else {
		a.notifier = notify.Nop{}
	}

	a.redeemer = redemption.Nop{}

	err = a.setupTrading()
	if err != nil {
		cancel()
		return nil, err
	}

	a.det = detector.New(detector.Config{
		Threshold:       cfg.MinProfitThreshold,
		MaxDaysUntilRes: cfg.MaxDaysUntilRes,
		Logger:          logger,
	}, a.bookStore, a.marketSvc, a.pool, a.writer, a.onAlert)

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.health,
		Status:        a.statusSnapshot,
	})

	return a, nil
}

// setupTrading wires the balance cache and executor. In dry-run mode no
// order client or chain source exists; the executor skips submission
// before it would ever touch them.
func (a *App) setupTrading() error {
	var orderClient execution.OrderPlacer
	var reserver execution.Reserver

	if !a.cfg.DryRun {
		walletClient, err := a.newWalletClient()
		if err != nil {
			return fmt.Errorf("setup wallet client: %w", err)
		}

		a.bal = balance.New(walletClient, a.writer, a.logger)
		reserver = a.bal

		client, err := execution.NewOrderClient(&execution.OrderClientConfig{
			APIKey:       a.cfg.APIKey,
			Secret:       a.cfg.APISecret,
			Passphrase:   a.cfg.Passphrase,
			PrivateKey:   a.cfg.PrivateKey,
			Address:      a.cfg.WalletAddr,
			ProxyAddress: a.cfg.ProxyAddress,
			ChainID:      a.cfg.ChainID,
			BaseURL:      a.cfg.CLOBURL,
			Socks5Proxy:  a.cfg.Socks5ProxyURL(),
			Logger:       a.logger,
		})
		if err != nil {
			return fmt.Errorf("setup order client: %w", err)
		}
		orderClient = client
	}

	a.exec = execution.New(execution.Config{
		DryRun:             a.cfg.DryRun,
		MaxPositionSizeUSD: a.cfg.MaxPositionSizeUSD,
		Logger:             a.logger,
	}, orderClient, a.negRisk, reserver, a.writer, a.notifier, a.scheduleBalanceRefresh)

	return nil
}

func (a *App) newWalletClient() (*wallet.Client, error) {
	addr := a.cfg.WalletAddr
	if addr == "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(a.cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
		addr = crypto.PubkeyToAddress(*publicKey).Hex()
	}

	return wallet.NewClient(a.cfg.PolygonRPC, a.cfg.DataAPIURL, common.HexToAddress(addr), a.logger)
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// scheduleBalanceRefresh requests an async refresh after a failed or
// partial execution; the executor never credits the cache back directly.
func (a *App) scheduleBalanceRefresh() {
	if a.bal == nil {
		return
	}

	go func() {
		_, err := a.bal.Refresh(a.ctx)
		if err != nil {
			a.logger.Warn("post-trade-balance-refresh-failed", zap.Error(err))
		}
	}()
}
