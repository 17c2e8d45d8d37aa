package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the subset of *pgxpool.Stat the collector reads.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
	EmptyAcquireCount() int64
	CanceledAcquireCount() int64
}

// PoolStatsCollector exports connection pool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	stat    func() PoolStats
	service string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
	waited   *prometheus.Desc
	canceled *prometheus.Desc
}

func poolDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil)
}

// NewPoolStatsCollector builds a collector that samples stat on every scrape.
func NewPoolStatsCollector(stat func() PoolStats, service string) *PoolStatsCollector {
	return &PoolStatsCollector{
		stat:     stat,
		service:  service,
		acquired: poolDesc("acquired_connections", "Number of currently acquired connections"),
		idle:     poolDesc("idle_connections", "Number of currently idle connections"),
		total:    poolDesc("total_connections", "Total number of connections in the pool"),
		max:      poolDesc("max_connections", "Maximum number of connections allowed"),
		acquires: poolDesc("acquire_count_total", "Total number of connection acquires"),
		waited:   poolDesc("empty_acquire_count_total", "Acquires that had to wait for a connection"),
		canceled: poolDesc("canceled_acquire_count_total", "Acquires canceled by their context"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.acquired, c.idle, c.total, c.max, c.acquires, c.waited, c.canceled} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	gauge := func(d *prometheus.Desc, v int32) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), c.service)
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), c.service)
	}
	gauge(c.acquired, s.AcquiredConns())
	gauge(c.idle, s.IdleConns())
	gauge(c.total, s.TotalConns())
	gauge(c.max, s.MaxConns())
	counter(c.acquires, s.AcquireCount())
	counter(c.waited, s.EmptyAcquireCount())
	counter(c.canceled, s.CanceledAcquireCount())
}

// RegisterPoolMetrics registers a collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(func() PoolStats { return pool.Stat() }, service))
}
