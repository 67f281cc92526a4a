package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(metricForceStops.WithLabelValues("length"))
	RecordForceStop("length")
	assert.Equal(t, before+1, testutil.ToFloat64(metricForceStops.WithLabelValues("length")))

	before = testutil.ToFloat64(metricDenials.WithLabelValues("scope_violation"))
	RecordDenial("scope_violation")
	assert.Equal(t, before+1, testutil.ToFloat64(metricDenials.WithLabelValues("scope_violation")))

	before = testutil.ToFloat64(metricTasks.WithLabelValues("CREATE_FILE"))
	RecordTask("CREATE_FILE")
	assert.Equal(t, before+1, testutil.ToFloat64(metricTasks.WithLabelValues("CREATE_FILE")))

	before = testutil.ToFloat64(metricReentrancyRejections)
	RecordReentrancyRejection()
	assert.Equal(t, before+1, testutil.ToFloat64(metricReentrancyRejections))

	before = testutil.ToFloat64(metricMemoryCompressions)
	RecordMemoryCompression()
	assert.Equal(t, before+1, testutil.ToFloat64(metricMemoryCompressions))
}
