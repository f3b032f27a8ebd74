// Package metrics holds the Prometheus collectors for the boot and
// registration layers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every snail collector is registered with.
var Registry = prometheus.NewRegistry()

var (
	ModulesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snail_modules_registered_total",
		Help: "Wrapped modules that published their heap handle.",
	})

	ModulesReady = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snail_modules_ready_total",
		Help: "Wrapped modules that signalled runtime readiness.",
	})

	ProtocolViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snail_protocol_violations_total", Help: "Rejected handshake calls by operation."},
		[]string{"op"},
	)

	LoaderLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snail_loader_lookups_total", Help: "Loader resolutions by outcome."},
		[]string{"result"},
	)

	ProcessExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snail_process_exits_total", Help: "Finished processes by status."},
		[]string{"status"},
	)

	EntryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snail_entry_duration_seconds",
		Help:    "Time spent in the OS entry point.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 300},
	})
)

// Loader lookup results.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		ModulesRegistered,
		ModulesReady,
		ProtocolViolations,
		LoaderLookups,
		ProcessExits,
		EntryDuration,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Value returns the current value of a counter, or of the counter with the
// given label values in a vector, summed over matches.
func Value(name string, labels ...string) float64 {
	families, err := Registry.Gather()
	if err != nil {
		return 0
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !matches(m.GetLabel(), labels) {
				continue
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func matches[L labelPair](pairs []L, want []string) bool {
	for i := 0; i+1 < len(want); i += 2 {
		found := false
		for _, p := range pairs {
			if p.GetName() == want[i] && p.GetValue() == want[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
