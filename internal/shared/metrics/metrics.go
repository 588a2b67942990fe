package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas Prometheus do domínio de apostas, particionadas por ativo
var (
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_bets_placed_total",
		Help: "Apostas abertas com sucesso",
	}, []string{"asset"})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_bets_settled_total",
		Help: "Apostas liquidadas, particionadas por resultado",
	}, []string{"asset", "result"}) // result: "won" | "lost"

	BetsRefunded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_bets_refunded_total",
		Help: "Apostas reembolsadas por timeout do oráculo",
	}, []string{"asset"})

	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_bets_rejected_total",
		Help: "Apostas rejeitadas na validação, por motivo",
	}, []string{"reason"})

	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flip_fees_collected_base_units",
		Help: "Taxas coletadas em unidades base do ativo",
	}, []string{"asset"})

	PendingBets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flip_pending_bets",
		Help: "Apostas aguardando randomness",
	})

	RandomnessLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flip_randomness_roundtrip_seconds",
		Help:    "Tempo entre o pedido de randomness e a liquidação",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800, 3600},
	})
)
