package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsPartitioned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "records_partitioned_total",
		Help:      "Candidate records allocated to operator chunks.",
	})
	AccountsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "accounts_created_total",
		Help:      "Guest accounts reported created by the provider.",
	})
	CreationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "creation_failures_total",
		Help:      "Account creation calls that failed for reasons other than quota.",
	})
	QuotaStops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "quota_stops_total",
		Help:      "Operator runs halted early by a provider quota signal.",
	})
	OperatorsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "operators_failed_total",
		Help:      "Operators that produced a failure ledger entry.",
	})
	OperatorsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "guest_provisioner",
		Name:      "operators_succeeded_total",
		Help:      "Operators that produced a success ledger entry.",
	})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(
		RecordsPartitioned, AccountsCreated, CreationFailures,
		QuotaStops, OperatorsFailed, OperatorsSucceeded,
	)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
