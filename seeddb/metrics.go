package seeddb

import (
	"github.com/overlaynet/seeddb/seed"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the size, the accumulated fields and the number of resets
// of every tier of a registry.
type Collector struct {
	db *DB

	sizeDesc   *prometheus.Desc
	sumDesc    *prometheus.Desc
	resetsDesc *prometheus.Desc
}

// A compile time check to ensure Collector implements prometheus.Collector.
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reporting on the registry.
func NewCollector(db *DB) *Collector {
	return &Collector{
		db: db,
		sizeDesc: prometheus.NewDesc(
			"seeddb_tier_size",
			"Number of seeds stored in the tier.",
			[]string{"tier"},
			nil),
		sumDesc: prometheus.NewDesc(
			"seeddb_tier_sum",
			"Sum of a numeric seed attribute over the tier.",
			[]string{"tier", "field"},
			nil),
		resetsDesc: prometheus.NewDesc(
			"seeddb_tier_resets_total",
			"Number of times the tier was reset.",
			[]string{"tier"},
			nil),
	}
}

// Describe sends the descriptors of all metrics to ch.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeDesc
	ch <- c.sumDesc
	ch <- c.resetsDesc
}

// Collect reads the current values from the registry and sends them to ch.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, tier := range Tiers {
		name := tier.String()

		ch <- prometheus.MustNewConstMetric(
			c.sizeDesc, prometheus.GaugeValue,
			float64(c.db.Size(tier)), name,
		)

		for _, field := range seed.AccFields {
			ch <- prometheus.MustNewConstMetric(
				c.sumDesc, prometheus.GaugeValue,
				float64(c.db.Sum(tier, field)), name, field,
			)
		}

		ch <- prometheus.MustNewConstMetric(
			c.resetsDesc, prometheus.CounterValue,
			float64(c.db.Resets(tier)), name,
		)
	}
}
