package observability

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BaSui01/cancelable/operation"
	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/types"
)

// Collector 按需读取 registry 统计并导出 prometheus 指标。
type Collector struct {
	reg *registry.Registry

	activeDesc  *prometheus.Desc
	historyDesc *prometheus.Desc
}

// NewCollector creates a prometheus collector over reg.
func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{
		reg: reg,
		activeDesc: prometheus.NewDesc(
			"cancelable_operations_active",
			"Active operations by status.",
			[]string{"status"}, nil,
		),
		historyDesc: prometheus.NewDesc(
			"cancelable_operations_completed_total",
			"Retained completed operations by final status.",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeDesc
	ch <- c.historyDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.reg.Stats()
	for status, count := range stats.ActiveByStatus {
		ch <- prometheus.MustNewConstMetric(c.activeDesc,
			prometheus.GaugeValue, float64(count), string(status))
	}
	for status, count := range stats.HistoryByStatus {
		ch <- prometheus.MustNewConstMetric(c.historyDesc,
			prometheus.GaugeValue, float64(count), string(status))
	}
}

// CancellationCounter 按取消原因计数，经 OnCancel 回调馈入。
type CancellationCounter struct {
	counter *prometheus.CounterVec

	mu       sync.Mutex
	attached map[string]bool
}

// NewCancellationCounter creates a counter vector labelled by reason.
func NewCancellationCounter() *CancellationCounter {
	return &CancellationCounter{
		counter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cancelable_cancellations_total",
			Help: "Cancellations by reason.",
		}, []string{"reason"}),
		attached: make(map[string]bool),
	}
}

// Describe implements prometheus.Collector.
func (c *CancellationCounter) Describe(ch chan<- *prometheus.Desc) {
	c.counter.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *CancellationCounter) Collect(ch chan<- prometheus.Metric) {
	c.counter.Collect(ch)
}

// Attach subscribes the counter to op's cancellation. Attaching the same
// operation twice counts once.
func (c *CancellationCounter) Attach(op *operation.Operation) {
	c.mu.Lock()
	if c.attached[op.ID()] {
		c.mu.Unlock()
		return
	}
	c.attached[op.ID()] = true
	c.mu.Unlock()

	op.OnCancel(func(ctx context.Context, snap types.Snapshot) error {
		c.counter.WithLabelValues(string(snap.CancelReason)).Inc()
		return nil
	})
}
