package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/access"
	"github.com/radieske/coinflip-platform-poc/internal/custody"
	"github.com/radieske/coinflip-platform-poc/internal/engine"
	"github.com/radieske/coinflip-platform-poc/internal/httpapi"
	"github.com/radieske/coinflip-platform-poc/internal/notify"
	"github.com/radieske/coinflip-platform-poc/internal/randomness"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/shared/cache"
	"github.com/radieske/coinflip-platform-poc/internal/shared/config"
	"github.com/radieske/coinflip-platform-poc/internal/shared/db"
	"github.com/radieske/coinflip-platform-poc/internal/shared/kafka"
	"github.com/radieske/coinflip-platform-poc/internal/shared/logger"
	"github.com/radieske/coinflip-platform-poc/internal/shared/metrics"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
	"github.com/radieske/coinflip-platform-poc/internal/store"
	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

// Métricas do consumer de randomness (fases do loop)
var (
	fulfillConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flip_fulfillments_consumed_total",
		Help: "Mensagens de randomness consumidas do Kafka",
	})
	fulfillApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flip_fulfillments_applied_total",
		Help: "Entregas de randomness aplicadas a uma aposta",
	})
	fulfillErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_fulfillment_errors_total",
		Help: "Erros no processamento de fulfillments, por fase",
	}, []string{"phase"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers
	reqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequested)
	defer reqWriter.Close()
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFulfilledDLQ)
	defer dlqWriter.Close()
	assetWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAssetRegistered)
	defer assetWriter.Close()

	// Kafka reader: entregas do oráculo
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessFulfilled, "flip-service")
	defer reader.Close()

	// deps
	st := store.NewPostgres(pg)
	ledger := custody.NewPostgres(pg)
	sl := stats.NewLedger()
	guard := access.New(getEnv("ROOT_OPERATOR", "root"))

	publ := &notify.Publisher{
		Log:         log,
		Writer:      settledWriter,
		Redis:       rdb,
		Channel:     cfg.RedisPubSubChannel,
		AssetWriter: assetWriter,
	}

	native := registry.AssetConfig{
		ID:       getEnv("NATIVE_ASSET_ID", "native"),
		Symbol:   getEnv("NATIVE_ASSET_SYMBOL", "COIN"),
		Name:     getEnv("NATIVE_ASSET_NAME", "Native Coin"),
		Decimals: int(getEnvInt("NATIVE_ASSET_DECIMALS", 8)),
		MinWager: getEnvInt("NATIVE_MIN_WAGER", 100_000),       // 0.001 com 8 casas
		MaxWager: getEnvInt("NATIVE_MAX_WAGER", 1_000_000_000), // 10 com 8 casas
	}
	reg, err := registry.New(native, st.SaveAsset, func(a registry.AssetConfig) {
		publ.PublishAssetRegistered(ctx, events.AssetRegistered{
			Asset:    a.ID,
			Symbol:   a.Symbol,
			MinWager: a.MinWager,
			MaxWager: a.MaxWager,
			By:       a.RegisteredBy,
			Ts:       a.RegisteredAt,
		})
	})
	if err != nil {
		log.Fatal("registry", zap.Error(err))
	}
	// recarrega ativos persistidos (inclui flags atuais do nativo)
	saved, err := st.ListAssets(ctx)
	if err != nil {
		log.Fatal("load assets", zap.Error(err))
	}
	for _, a := range saved {
		reg.Restore(a)
	}
	nativeCfg, _ := reg.Get(native.ID)
	if err := st.SaveAsset(ctx, nativeCfg); err != nil {
		log.Fatal("persist native asset", zap.Error(err))
	}

	rng := randomness.NewKafkaPort(reqWriter)

	eng, err := engine.New(ctx, log, st, reg, ledger, rng, sl, guard, publ, engine.Params{
		MaxPending:   cfg.MaxPending,
		StaleTimeout: cfg.StaleTimeout,
		FeeRateBps:   cfg.FeeRateBps,
		FeeRecipient: cfg.FeeRecipient,
		Randomness: randomness.Config{
			Provider:     "kafka-oracle",
			RequestTopic: cfg.TopicRandomnessRequested,
			FulfillTopic: cfg.TopicRandomnessFulfilled,
			Subscription: "flip-service",
		},
	})
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}

	// consumer das entregas do oráculo, em goroutine própria
	consumer := &randomness.Consumer{
		Log:    log,
		Source: reader,
		Sink:   eng,
		DLQ:    dlqWriter,
		IsConflict: func(err error) bool {
			return errors.Is(err, engine.ErrUnknownCorrelation) ||
				errors.Is(err, engine.ErrAlreadySettled) ||
				errors.Is(err, engine.ErrAlreadyRefunded)
		},
		OnConsumed: func() { fulfillConsumed.Inc() },
		OnApplied:  func() { fulfillApplied.Inc() },
		OnError:    func(phase string) { fulfillErrors.WithLabelValues(phase).Inc() },
	}
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("fulfillment consumer stopped", zap.Error(err))
		}
	}()

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	// HTTP público
	api := &httpapi.Server{
		Log:    log,
		Engine: eng,
		Reg:    reg,
		Guard:  guard,
		Stats:  sl,
		Cache:  httpapi.NewStatsCache(rdb),
	}
	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("flip-service listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, api.Router()); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
