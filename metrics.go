// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time snapshot of a parallel pool's counters.
type Stats struct {
	// Acquires counts successful pooled allocations.
	Acquires uint64
	// Releases counts pointers pushed onto their owner's trash.
	Releases uint64
	// Reclaimed counts pointers drained by explicit Reclaim calls.
	// Drains performed inside Acquire, Flush, and Detach are not
	// counted.
	Reclaimed uint64
	// FallbackAcquires counts allocations served by the
	// supplementary allocator; zero unless the pool backs the
	// façade.
	FallbackAcquires uint64
	// FallbackReleases counts frees routed to the supplementary
	// allocator; zero unless the pool backs the façade.
	FallbackReleases uint64
	// Records is the number of registered goroutine records.
	Records int
	// TrashItems is the number of pointers awaiting reclamation.
	TrashItems int
}

// Stats snapshots the pool's counters.
func (p *ParallelPool) Stats() Stats {
	return Stats{
		Acquires:   p.acquires.Load(),
		Releases:   p.releases.Load(),
		Reclaimed:  p.reclaimed.Load(),
		Records:    p.Records(),
		TrashItems: p.TrashTotal(),
	}
}

// FacadeStats snapshots the default pool's counters, including the
// supplementary-allocator traffic only the façade sees.
func FacadeStats() (Stats, error) {
	f, err := current()
	if err != nil {
		return Stats{}, err
	}
	s := f.pool.Stats()
	s.FallbackAcquires = f.fallbackAcquires.Load()
	s.FallbackReleases = f.fallbackReleases.Load()
	return s, nil
}

// Collector exposes pool counters as Prometheus metrics.
type Collector struct {
	stats func() (Stats, error)

	acquires         *prometheus.Desc
	releases         *prometheus.Desc
	reclaimed        *prometheus.Desc
	fallbackAcquires *prometheus.Desc
	fallbackReleases *prometheus.Desc
	records          *prometheus.Desc
	trashItems       *prometheus.Desc
}

// NewCollector returns a collector over one parallel pool.
func NewCollector(pool *ParallelPool) *Collector {
	return newCollector(func() (Stats, error) { return pool.Stats(), nil })
}

// DefaultCollector returns a collector over the façade's default
// pool, including supplementary-allocator traffic.
func DefaultCollector() *Collector {
	return newCollector(FacadeStats)
}

func newCollector(stats func() (Stats, error)) *Collector {
	return &Collector{
		stats: stats,
		acquires: prometheus.NewDesc("slab_acquires_total",
			"Successful pooled allocations.", nil, nil),
		releases: prometheus.NewDesc("slab_releases_total",
			"Pointers pushed onto their owner's trash.", nil, nil),
		reclaimed: prometheus.NewDesc("slab_reclaimed_total",
			"Pointers drained from trashes by explicit reclaim calls.", nil, nil),
		fallbackAcquires: prometheus.NewDesc("slab_fallback_acquires_total",
			"Allocations served by the supplementary allocator.", nil, nil),
		fallbackReleases: prometheus.NewDesc("slab_fallback_releases_total",
			"Frees routed to the supplementary allocator.", nil, nil),
		records: prometheus.NewDesc("slab_goroutine_records",
			"Registered per-goroutine pool records.", nil, nil),
		trashItems: prometheus.NewDesc("slab_trash_items",
			"Pointers awaiting reclamation.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquires
	ch <- c.releases
	ch <- c.reclaimed
	ch <- c.fallbackAcquires
	ch <- c.fallbackReleases
	ch <- c.records
	ch <- c.trashItems
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s, err := c.stats()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.acquires, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.Acquires))
	ch <- prometheus.MustNewConstMetric(c.releases, prometheus.CounterValue, float64(s.Releases))
	ch <- prometheus.MustNewConstMetric(c.reclaimed, prometheus.CounterValue, float64(s.Reclaimed))
	ch <- prometheus.MustNewConstMetric(c.fallbackAcquires, prometheus.CounterValue, float64(s.FallbackAcquires))
	ch <- prometheus.MustNewConstMetric(c.fallbackReleases, prometheus.CounterValue, float64(s.FallbackReleases))
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(s.Records))
	ch <- prometheus.MustNewConstMetric(c.trashItems, prometheus.GaugeValue, float64(s.TrashItems))
}
