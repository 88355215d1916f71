package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reservelabs/reserve-gateway/internal/config"
	"github.com/reservelabs/reserve-gateway/internal/constants"
	"github.com/reservelabs/reserve-gateway/internal/history"
	"github.com/reservelabs/reserve-gateway/internal/models"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

// main consumes live conversion events and persists them to ClickHouse.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	cache, err := history.NewRedisCache(rclient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create history cache")
	}

	store, err := history.NewClickHouseStore(ctx, history.ClickHouseConfig{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to ClickHouse")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ensure conversions schema")
	}

	go func() {
		err := cache.SubscribeConversions(ctx, constants.PubSubChannelConversions, func(ev *models.ConversionEvent) {
			if err := store.InsertConversion(ctx, ev); err != nil {
				logger.WithError(err).WithField("id", ev.ID).Error("failed to persist conversion")
				return
			}
			logger.WithFields(logrus.Fields{
				"id":      ev.ID,
				"kind":    ev.Kind,
				"account": ev.Account,
				"in":      ev.AmountIn,
				"out":     ev.AmountOut,
			}).Info("persisted conversion")
		})
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("subscription ended")
		}
	}()

	logger.Info("subscriber running")
	<-sigCh
	logger.Info("shutting down subscriber")
	cancel()
}
