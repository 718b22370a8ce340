// Package prometheus exposes event counts as a Prometheus counter family.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricName is the family every event key is reported under.
	MetricName = "eventcounter_events_total"
	keyLabel   = "key"
)

// Source supplies point-in-time counts.
type Source interface {
	Snapshot() map[string]int64
}

// Collector reports one sample per event key on every scrape. Keys appear and
// disappear with the source, so a reset removes the series.
type Collector struct {
	source Source
	desc   *prometheus.Desc
}

var _ prometheus.Collector = new(Collector)

// Options tweak the exported family.
type Options struct {
	Namespace   string            // prefixed to MetricName when set
	ConstLabels prometheus.Labels // e.g. {"service": "checkout"}
}

// NewCollector creates a collector over source.
func NewCollector(source Source, opts Options) *Collector {
	name := MetricName
	if opts.Namespace != "" {
		name = opts.Namespace + "_" + name
	}
	return &Collector{
		source: source,
		desc: prometheus.NewDesc(
			name,
			"Number of times each tracked event occurred since the last reset.",
			[]string{keyLabel},
			opts.ConstLabels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for key, count := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(count), key)
	}
}
