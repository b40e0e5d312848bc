package metric

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetric() *MetricSet {
	m := NewMetricSet()
	m.metrics["TEST"] = &mockMetricItem{name: "TEST"}
	return m
}

func TestMetricSet_HasMetrics(t *testing.T) {
	metric := newTestMetric()

	assert.True(t, metric.HasMetrics("TEST"), "should contain label(TEST)")
	assert.False(t, metric.HasMetrics("FTEST"), "shouldn't contain label(FTEST)")
}

func TestMetricSet_SetMetrics(t *testing.T) {
	metric := newTestMetric()

	mockItem := &mockMetricItem{name: "TEST"}
	assert.Equal(t, ErrMetricLabelExist, metric.SetMetrics("TEST", mockItem), "label(TEST)不应该设置成功")

	assert.Nil(t, metric.SetMetrics("TEST1", mockItem), "label(TEST1)应该设置成功")

	assert.True(t, metric.HasMetrics("TEST"), "should contain label(TEST)")
	assert.True(t, metric.HasMetrics("TEST1"), "should contain label(TEST1)")
}

func TestMetricSet_GetAllLabels(t *testing.T) {
	metric := newTestMetric()
	require.NoError(t, metric.SetMetrics("A", &mockMetricItem{name: "A"}))

	labels := metric.GetAllLabels()

	assert.Equal(t, []string{"A", "TEST"}, labels)
}

func TestMetricSet_Snapshot(t *testing.T) {
	metric := newTestMetric()

	assert.Equal(t, map[string]string{"TEST": "TEST"}, metric.Snapshot(""))
	assert.Equal(t, map[string]string{"TEST": "TEST"}, metric.Snapshot("TEST"))
	assert.Empty(t, metric.Snapshot("MISSING"))
}

func TestRegistryItem_JSONString(t *testing.T) {
	item := NewRegistryItem()
	item.Counter("proposals").Inc(3)
	item.Gauge("pending").Update(7)
	h := item.Histogram("batches_per_proposal")
	h.Update(1)
	h.Update(3)

	var decoded map[string]interface{}
	require.NoError(t, jsoniter.UnmarshalFromString(item.JSONString(), &decoded))

	assert.EqualValues(t, 3, decoded["proposals"])
	assert.EqualValues(t, 7, decoded["pending"])
	hist, ok := decoded["batches_per_proposal"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, hist["count"])
	assert.EqualValues(t, 2, hist["mean"])

	// 同名的计数器是同一个
	item.Counter("proposals").Inc(1)
	assert.EqualValues(t, 4, item.Counter("proposals").Count())
}
