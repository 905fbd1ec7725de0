package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cx_fetcher"

type metrics struct {
	acquisitions *prometheus.CounterVec
	updateChecks *prometheus.CounterVec
	inFlight     prometheus.Gauge
	registered   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		acquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acquisitions_total",
			Help:      "Extension acquisitions by result (success, failure, contended)",
		}, []string{"result"}),

		updateChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "update_checks_total",
			Help:      "Update checks by result (available, current, failure)",
		}, []string{"result"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "in_flight",
			Help:      "Extensions currently being acquired",
		}),

		registered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "registered",
			Help:      "Extensions present in the registry",
		}),
	}
}
