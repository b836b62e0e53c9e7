package adaptor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	descBytesCurrent = iota
	descBytesPeak
	descBytesTotal
	descAllocationsCurrent
	descAllocationsPeak
	descAllocationsTotal
	descCount
)

// StatisticsCollector exports a Statistics adaptor as Prometheus metrics.
type StatisticsCollector struct {
	stats *Statistics
	descs [descCount]*prometheus.Desc
}

// NewStatisticsCollector returns a collector for stats. name is attached as
// the "resource" label.
func NewStatisticsCollector(name string, stats *Statistics) *StatisticsCollector {
	labels := prometheus.Labels{"resource": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("rmmkit", "resource", metric), help, nil, labels)
	}
	return &StatisticsCollector{
		stats: stats,
		descs: [descCount]*prometheus.Desc{
			descBytesCurrent:       desc("bytes_current", "Bytes currently allocated."),
			descBytesPeak:          desc("bytes_peak", "Highest number of bytes allocated at once."),
			descBytesTotal:         desc("bytes_total", "Bytes allocated over the resource lifetime."),
			descAllocationsCurrent: desc("allocations_current", "Allocations currently outstanding."),
			descAllocationsPeak:    desc("allocations_peak", "Highest number of allocations outstanding at once."),
			descAllocationsTotal:   desc("allocations_total", "Allocations made over the resource lifetime."),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *StatisticsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *StatisticsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	values := [descCount]struct {
		kind  prometheus.ValueType
		value int64
	}{
		descBytesCurrent:       {prometheus.GaugeValue, snap.Bytes.Current},
		descBytesPeak:          {prometheus.GaugeValue, snap.Bytes.Peak},
		descBytesTotal:         {prometheus.CounterValue, snap.Bytes.Total},
		descAllocationsCurrent: {prometheus.GaugeValue, snap.Allocations.Current},
		descAllocationsPeak:    {prometheus.GaugeValue, snap.Allocations.Peak},
		descAllocationsTotal:   {prometheus.CounterValue, snap.Allocations.Total},
	}
	for i, v := range values {
		ch <- prometheus.MustNewConstMetric(c.descs[i], v.kind, float64(v.value))
	}
}
