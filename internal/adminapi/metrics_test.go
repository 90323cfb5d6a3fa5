package adminapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveAppend("orders", "clicks", 3, 128, 0.002)
	m.ObservePoll("orders", "clicks", 0.001)
	m.ObserveSegmentRoll("orders", "clicks")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tidelog_appends_total")
	assert.Contains(t, body, "tidelog_polls_total")
	assert.Contains(t, body, "tidelog_segment_rolls_total")
}

func TestNewMetricsDoesNotPanicOnMultipleInstances(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
