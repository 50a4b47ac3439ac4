package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	m := NewMetrics()
	m.RecordRun("ranked", 2*time.Second, 2, 100, 20)
	m.RecordRun("", time.Second, 10, 0, 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("ranked")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("unknown")))
	require.Equal(t, 100.0, testutil.ToFloat64(m.Tokens.WithLabelValues("prompt")))
	require.Equal(t, 20.0, testutil.ToFloat64(m.Tokens.WithLabelValues("completion")))
}

func TestRecordToolCallAndViolations(t *testing.T) {
	m := NewMetrics()
	m.RecordToolCall("search_file", "ok")
	m.RecordToolCall("search_file", "ok")
	m.RecordToolCall("", "error")
	m.RecordPolicyViolation()

	require.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("search_file", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("unknown", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PolicyOverrides))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRun("ranked", time.Second, 1, 1, 1)
	m.RecordToolCall("x", "ok")
	m.RecordPolicyViolation()
	m.RecordTransportError("", "")
	m.RecordModelUsage("")
}
