package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationsNilSafe(t *testing.T) {
	// All methods on a nil *Operations must not panic.
	m := Null()

	m.RecordCall("snapshot", "success", 0.01)
	m.RecordSoftMisses("destroy_snapshots", 3)
	m.RecordEngineStatus("hold", 2)
	m.RecordOutputRetry()
	m.RecordStreamBytes("send", 1024)
}

func TestRecordCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperations(reg)

	m.RecordCall("snapshot", "success", 0.002)
	m.RecordCall("snapshot", "success", 0.004)
	m.RecordCall("snapshot", "fault", 0.001)
	m.RecordCall("hold", "soft_misses", 0.003)

	assert.Equal(t, float64(2), counterValue(t, m.CallsTotal, "snapshot", "success"))
	assert.Equal(t, float64(1), counterValue(t, m.CallsTotal, "snapshot", "fault"))
	assert.Equal(t, float64(1), counterValue(t, m.CallsTotal, "hold", "soft_misses"))
}

func TestRecordSoftMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperations(reg)

	m.RecordSoftMisses("release", 2)
	m.RecordSoftMisses("release", 1)
	m.RecordSoftMisses("release", 0) // ignored

	assert.Equal(t, float64(3), counterValue(t, m.SoftMissesTotal, "release"))
}

func TestRecordEngineStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperations(reg)

	m.RecordEngineStatus("snapshot", 17)
	m.RecordEngineStatus("snapshot", 17)
	m.RecordEngineStatus("snapshot", 0) // success is not an engine failure

	assert.Equal(t, float64(2), counterValue(t, m.EngineStatus, "snapshot", "17"))
}

func TestRecordStreamBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperations(reg)

	m.RecordStreamBytes("send", 4096)
	m.RecordStreamBytes("send", 4096)
	m.RecordStreamBytes("receive", 1024)

	assert.Equal(t, float64(8192), counterValue(t, m.StreamBytes, "send"))
	assert.Equal(t, float64(1024), counterValue(t, m.StreamBytes, "receive"))
}

// counterValue extracts the value from a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := cv.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	var metric io_prometheus_client.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}
