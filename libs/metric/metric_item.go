package metric

import (
	jsoniter "github.com/json-iterator/go"
	metrics "github.com/rcrowley/go-metrics"
)

// MetricItem - 一个独立的metric模块对应一个MetricItem
type MetricItem interface {
	JSONString() string
}

type mockMetricItem struct {
	name string
}

func (mock *mockMetricItem) JSONString() string {
	return mock.name
}

const histogramSampleSize = 1028

// RegistryItem 用go-metrics的registry记录一个模块的计数器、仪表和直方图，
// JSONString时导出当前的快照
type RegistryItem struct {
	registry metrics.Registry
}

func NewRegistryItem() *RegistryItem {
	return &RegistryItem{registry: metrics.NewRegistry()}
}

func (ri *RegistryItem) Counter(name string) metrics.Counter {
	return metrics.GetOrRegisterCounter(name, ri.registry)
}

func (ri *RegistryItem) Gauge(name string) metrics.Gauge {
	return metrics.GetOrRegisterGauge(name, ri.registry)
}

func (ri *RegistryItem) Histogram(name string) metrics.Histogram {
	return metrics.GetOrRegisterHistogram(name, ri.registry, metrics.NewUniformSample(histogramSampleSize))
}

func (ri *RegistryItem) JSONString() string {
	snapshot := make(map[string]interface{})
	ri.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			snapshot[name] = m.Count()
		case metrics.Gauge:
			snapshot[name] = m.Value()
		case metrics.Histogram:
			h := m.Snapshot()
			ps := h.Percentiles([]float64{0.5, 0.99})
			snapshot[name] = map[string]interface{}{
				"count": h.Count(),
				"min":   h.Min(),
				"max":   h.Max(),
				"mean":  h.Mean(),
				"p50":   ps[0],
				"p99":   ps[1],
			}
		}
	})
	s, _ := jsoniter.MarshalToString(snapshot)
	return s
}
