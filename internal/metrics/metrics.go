// Package metrics holds the Prometheus collectors of the bridge node.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VAAPosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebridge",
		Subsystem: "vaa",
		Name:      "posts_total",
		Help:      "Number of VAA post attempts by result.",
	}, []string{"result"})
	Claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebridge",
		Subsystem: "claim",
		Name:      "claims_total",
		Help:      "Number of claim attempts by result. Duplicates are replayed VAAs.",
	}, []string{"result"})
	Decrees = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebridge",
		Subsystem: "governance",
		Name:      "decrees_total",
		Help:      "Number of governance decrees applied by module, action and result.",
	}, []string{"module", "action", "result"})
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebridge",
		Subsystem: "message",
		Name:      "published_total",
		Help:      "Number of published outbound messages.",
	}, []string{"kind"})
	RelayedVAAs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebridge",
		Subsystem: "relayer",
		Name:      "vaas_total",
		Help:      "Number of VAAs received from the spy by processing result.",
	}, []string{"result"})
	LedgerApplyDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "corebridge",
		Subsystem: "ledger",
		Name:      "apply_duration_seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend"})
)

// Result labels err as "ok", "duplicate" (err matches one of duplicates) or "error".
func Result(err error, duplicates ...error) string {
	if err == nil {
		return "ok"
	}
	for _, d := range duplicates {
		if errors.Is(err, d) {
			return "duplicate"
		}
	}
	return "error"
}

func ObserveApply(backend string) func() time.Duration {
	return prometheus.NewTimer(LedgerApplyDurations.WithLabelValues(backend)).ObserveDuration
}
