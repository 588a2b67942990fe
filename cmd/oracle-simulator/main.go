package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	mrand "math/rand"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/shared/config"
	"github.com/radieske/coinflip-platform-poc/internal/shared/kafka"
	"github.com/radieske/coinflip-platform-poc/internal/shared/logger"
	"github.com/radieske/coinflip-platform-poc/internal/shared/metrics"
	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

// Métricas Prometheus do oráculo simulado
var (
	requestsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_requests_served_total",
		Help: "Pedidos de randomness atendidos",
	})
	requestsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_requests_dropped_total",
		Help: "Pedidos descartados de propósito (simula oráculo mudo)",
	})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessRequested, cfg.OracleGroupID)
	defer reader.Close()
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessFulfilled)
	defer writer.Close()

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	// DROP_PCT simula um oráculo que nunca responde (testa o refund por
	// timeout); LATENCY_MS aproxima o round-trip real de um VRF.
	dropPct := int(envInt("ORACLE_DROP_PCT", 0))
	latency := time.Duration(envInt("ORACLE_LATENCY_MS", 250)) * time.Millisecond

	log.Info("oracle-simulator started",
		zap.String("consume", cfg.TopicRandomnessRequested),
		zap.String("publish", cfg.TopicRandomnessFulfilled),
		zap.Int("drop_pct", dropPct),
	)

	ctx := context.Background()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var req events.RandomnessRequested
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			log.Error("unmarshal request", zap.Error(err))
			continue
		}

		if dropPct > 0 && mrand.Intn(100) < dropPct {
			requestsDropped.Inc()
			log.Info("dropping request", zap.String("token", req.Token))
			continue
		}

		time.Sleep(latency)

		// 256 bits uniformes, como um VRF de verdade entregaria
		word := make([]byte, 32)
		if _, err := rand.Read(word); err != nil {
			log.Error("rand read", zap.Error(err))
			continue
		}

		ev := events.RandomnessFulfilled{
			Token:    req.Token,
			Value:    hex.EncodeToString(word),
			TsUnixMs: time.Now().UnixMilli(),
		}
		b, _ := json.Marshal(ev)
		if err := kafka.WriteJSON(ctx, writer, req.Token, b); err != nil {
			log.Error("publish fulfillment", zap.String("token", req.Token), zap.Error(err))
			continue
		}
		requestsServed.Inc()
	}
}

func envInt(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
