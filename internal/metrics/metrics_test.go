package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics()

	assert.True(t, IsMetricsRegistered())
	assert.NotNil(t, GetCallsStartedTotal())
	assert.NotNil(t, GetCallsCompletedTotal())
	assert.NotNil(t, GetPendingCalls())
	assert.NotNil(t, GetOperationsTotal())
}

func TestCallMetrics_StartedAndCompleted(t *testing.T) {
	InitMetrics()

	m := NewCallMetrics()
	method := "org.freedesktop.Secret.Service.TestOnly"

	before := testutil.ToFloat64(GetPendingCalls())

	m.RecordCallStarted(method)
	assert.Equal(t, float64(1), testutil.ToFloat64(GetCallsStartedTotal().WithLabelValues(method)))
	assert.Equal(t, before+1, testutil.ToFloat64(GetPendingCalls()))

	m.RecordCallCompleted(method, StatusSuccess, 3*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(GetCallsCompletedTotal().WithLabelValues(method, StatusSuccess)))
	assert.Equal(t, before, testutil.ToFloat64(GetPendingCalls()))
}

func TestCallMetrics_RecordOperation(t *testing.T) {
	InitMetrics()

	m := NewCallMetrics()
	m.RecordOperation("test-lookup", StatusCancelled)
	m.RecordOperation("test-lookup", StatusCancelled)

	assert.Equal(t, float64(2), testutil.ToFloat64(GetOperationsTotal().WithLabelValues("test-lookup", StatusCancelled)))
}
