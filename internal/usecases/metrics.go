package usecases

import "github.com/prometheus/client_golang/prometheus"

// Orchestrator metrics. Registered once at package init so every PaymentUsecase
// instance in the process shares the same series.
var (
	chargeAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paymentcore",
		Subsystem: "orchestrator",
		Name:      "charge_attempts_total",
		Help:      "Provider charge attempts made by the payment orchestrator, by provider and outcome.",
	}, []string{"provider", "outcome"})

	chargeRetryRounds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paymentcore",
		Subsystem: "orchestrator",
		Name:      "charge_retry_rounds",
		Help:      "Number of charge attempts consumed before a payment reached a terminal provider outcome.",
		Buckets:   prometheus.LinearBuckets(1, 1, 3),
	})

	reservationOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paymentcore",
		Subsystem: "orchestrator",
		Name:      "reservation_outcomes_total",
		Help:      "Wallet reservation outcomes observed while processing payments.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(chargeAttemptsTotal, chargeRetryRounds, reservationOutcomesTotal)
}
