// Package metrics exposes zxferd's Prometheus counters and histograms:
// transfer counts by outcome, records transferred, and transfer
// duration.
//
// Grounded on straticus1-dnsscienced's prometheus/client_golang usage
// (its engine package registers query-path counters the same way:
// package-level metric vars registered once via promauto, incremented
// inline at the call sites that observe the event).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TransfersOutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zxfer",
		Subsystem: "ixfrout",
		Name:      "transfers_total",
		Help:      "Outgoing transfer sessions by zone and outcome.",
	}, []string{"zone", "outcome"})

	TransfersInTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zxfer",
		Subsystem: "ixfrin",
		Name:      "transfers_total",
		Help:      "Incoming transfer sessions by zone and outcome.",
	}, []string{"zone", "outcome"})

	RecordsTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zxfer",
		Name:      "records_transferred_total",
		Help:      "Resource records sent or received during zone transfers.",
	}, []string{"zone", "direction"})

	TransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zxfer",
		Name:      "transfer_duration_seconds",
		Help:      "Wall-clock duration of a completed zone transfer.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"zone", "direction"})

	ZoneSerial = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zxfer",
		Name:      "zone_serial",
		Help:      "Current SOA serial of a served zone.",
	}, []string{"zone"})
)

// Handler returns the http.Handler to mount at the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
