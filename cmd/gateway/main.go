package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reservelabs/reserve-gateway/internal/ai"
	"github.com/reservelabs/reserve-gateway/internal/chain"
	"github.com/reservelabs/reserve-gateway/internal/config"
	"github.com/reservelabs/reserve-gateway/internal/history"
	"github.com/reservelabs/reserve-gateway/internal/marketswap"
	"github.com/reservelabs/reserve-gateway/internal/models"
	"github.com/reservelabs/reserve-gateway/internal/oracle"
	"github.com/reservelabs/reserve-gateway/internal/pool"
	"github.com/reservelabs/reserve-gateway/internal/reserve"
	"github.com/reservelabs/reserve-gateway/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main wires the reserve gateway: Redis pool state, settings source, block
// clock, conversion history, and the HTTP API, with graceful shutdown.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Redis backs the pool state, the deposit ledger, and the recent cache.
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	poolStore, err := pool.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create pool store")
	}
	ledger, err := reserve.NewRedisLedger(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create deposit ledger")
	}

	// Settings come from the protocol API when configured, otherwise from
	// the static env-backed values.
	var settings reserve.SettingsSource
	if cfg.SettingsAPIURL != "" {
		settings = oracle.NewClient(cfg.SettingsAPIURL, cfg.SettingsAPIKey)
		logger.WithField("url", cfg.SettingsAPIURL).Info("using settings API")
	} else {
		settings = oracle.NewStatic(reserve.Settings{
			DepositFeeRate:     cfg.DepositFeeRate,
			DepositsEnabled:    cfg.DepositsEnabled,
			MaxDepositAmount:   cfg.MaxDepositAmount,
			DepositDelayBlocks: cfg.DepositDelayBlocks,
		})
		logger.Info("using static settings from environment")
	}

	// Block clock: chain RPC when configured, manual clock otherwise.
	var clock reserve.BlockClock
	if cfg.ChainRPCURL != "" {
		rpcClock, err := chain.DialRPCClock(ctx, cfg.ChainRPCURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to dial chain RPC")
		}
		defer rpcClock.Close()
		clock = rpcClock
	} else {
		clock = chain.NewManualClock(0)
		logger.Warn("no CHAIN_RPC_URL set, using manual block clock")
	}

	gateway, err := reserve.NewGateway(reserve.GatewayDeps{
		Settings: settings,
		Reserve:  poolStore,
		Token:    poolStore,
		Sink:     poolStore,
		Ledger:   ledger,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create gateway")
	}

	histCache, err := history.NewRedisCache(rclient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create history cache")
	}

	// Fan committed receipts out to the history pipeline. Failures here are
	// logged, never propagated: the conversion has already committed.
	gateway.OnReceipt(func(r *reserve.Receipt) {
		ev := &models.ConversionEvent{
			ID:        uuid.NewString(),
			Timestamp: r.Timestamp,
			Account:   r.Account.Hex(),
			Kind:      r.Kind,
			AmountIn:  r.AmountIn.String(),
			AmountOut: r.AmountOut.String(),
			Fee:       r.Fee.String(),
			Block:     r.Block,
		}
		if err := histCache.AddRecentConversion(ctx, ev); err != nil {
			logger.WithError(err).Warn("failed to cache conversion event")
		}
		if err := histCache.PublishConversion(ctx, ev); err != nil {
			logger.WithError(err).Warn("failed to publish conversion event")
		}
	})

	// AI analytics agent (optional).
	var agent *ai.Agent
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              "openai/gpt-4.1-mini",
		Logger:             logger,
	}
	if cfg.OpenRouterAPIKey != "" {
		a, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			agent = a
			defer func() {
				_ = agent.Close()
			}()
		}
	}

	h := &server.Handlers{
		Gateway:      gateway,
		Token:        poolStore,
		History:      histCache,
		Router:       marketswap.NewClient(cfg.RouterAPIURL, cfg.RouterAPIKey),
		AI:           agent,
		AIBaseConfig: aiBase,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}

	go func() {
		logger.WithField("addr", cfg.APIAddr).Info("starting gateway API")
		if err := srv.Start(); err != nil {
			logger.WithError(err).Info("server stopped")
		}
	}()

	<-sigCh
	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
	if err := rclient.Close(); err != nil {
		logger.WithError(err).Error("redis close error")
	}
}
