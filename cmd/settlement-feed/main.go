package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/feed"
	"github.com/radieske/coinflip-platform-poc/internal/shared/cache"
	"github.com/radieske/coinflip-platform-poc/internal/shared/config"
	"github.com/radieske/coinflip-platform-poc/internal/shared/logger"
	"github.com/radieske/coinflip-platform-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx := context.Background()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	hub := feed.NewHub(func(r *http.Request) bool { return true })
	feed.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("settlement-feed listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Fatal("feed", zap.Error(err))
	}
}
