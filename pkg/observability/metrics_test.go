package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RegisterAndObserve(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveToolCall("lookup", true)
	m.ObserveToolCall("lookup", true)
	m.ObserveToolCall("lookup", false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ToolCalls.WithLabelValues("lookup", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolCalls.WithLabelValues("lookup", "false")))

	m.ObserveHookRun("learning", "AFTER_AGENT", nil)
	m.ObserveHookRun("learning", "AFTER_AGENT", errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HookRuns.WithLabelValues("learning", "AFTER_AGENT", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HookRuns.WithLabelValues("learning", "AFTER_AGENT", "error")))

	m.ObserveLearningExtraction("saved")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LearningExtraction.WithLabelValues("saved")))

	m.ObserveCriterion("suite-1", "SUCCESS", 50*time.Millisecond)
	m.ObserveTurn(200 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.TurnDuration))
}

func TestMetrics_DoubleRegisterFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}
