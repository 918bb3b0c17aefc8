package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StoreRetries counts operations retried after a connection error.
	StoreRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_store_retries_total",
			Help: "Database operations retried after a connectivity error.",
		},
	)

	// Verifications counts code word checks by outcome and channel.
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consult_verifications_total",
			Help: "Code word verifications by outcome.",
		},
		[]string{"outcome", "channel"},
	)

	// PaymentTransitions counts ledger status changes driven by the provider.
	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consult_payment_transitions_total",
			Help: "Ledger status transitions by resulting status.",
		},
		[]string{"status"},
	)

	// OperatorSession is 1 while the operator identity holds a valid session.
	OperatorSession = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consult_operator_session_valid",
			Help: "Whether the operator identity session is valid.",
		},
	)
)

func init() {
	prometheus.MustRegister(StoreRetries, Verifications, PaymentTransitions, OperatorSession)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
