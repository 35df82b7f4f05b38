// Package metrics exports dedup run results in the Prometheus text format
// for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/signature"
)

const namespace = "wasmtriage"

// DedupRun holds the gauges for one dedup pass over a corpus.
type DedupRun struct {
	Registry *prometheus.Registry

	records   *prometheus.GaugeVec
	buckets   *prometheus.GaugeVec
	duration  prometheus.Gauge
	timestamp prometheus.Gauge
}

// NewDedupRun registers the dedup gauges on a fresh registry. corpus is
// attached as a constant label.
func NewDedupRun(corpus string) *DedupRun {
	labels := prometheus.Labels{"corpus": corpus}
	m := &DedupRun{
		Registry: prometheus.NewRegistry(),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dedup",
			Name:        "records",
			Help:        "Records seen in the last dedup run, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		buckets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dedup",
			Name:        "buckets",
			Help:        "Unique signatures in the last dedup run that mention each category.",
			ConstLabels: labels,
		}, []string{"category"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dedup",
			Name:        "duration_seconds",
			Help:        "Wall time of the last dedup run.",
			ConstLabels: labels,
		}),
		timestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dedup",
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last dedup run finished.",
			ConstLabels: labels,
		}),
	}
	m.Registry.MustRegister(m.records, m.buckets, m.duration, m.timestamp)
	return m
}

// Observe sets every gauge from plan.
func (m *DedupRun) Observe(plan *dedup.Plan, elapsed time.Duration, finished time.Time) {
	unique := plan.Index.Buckets()
	m.records.WithLabelValues("scanned").Set(float64(plan.Scanned))
	m.records.WithLabelValues("unique").Set(float64(len(unique)))
	m.records.WithLabelValues("duplicate").Set(float64(len(plan.Duplicates)))
	m.records.WithLabelValues("incomplete").Set(float64(len(plan.Incomplete)))
	m.records.WithLabelValues("empty").Set(float64(len(plan.Empty)))
	m.records.WithLabelValues("error").Set(float64(len(plan.Errors)))

	counts := make(map[string]int)
	for _, b := range unique {
		cats := signature.Categories(b.Body)
		if len(cats) == 0 {
			counts["none"]++
		}
		for _, c := range cats {
			counts[string(c)]++
		}
	}
	for c, n := range counts {
		m.buckets.WithLabelValues(c).Set(float64(n))
	}
	m.duration.Set(elapsed.Seconds())
	m.timestamp.Set(float64(finished.Unix()))
}

// WriteFile writes the registry to path atomically.
func (m *DedupRun) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
