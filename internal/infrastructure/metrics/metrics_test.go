package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.RecordTipSubmitted(PathCrossChain)
	c.RecordTipSubmitted(PathCrossChain)
	c.RecordTipSubmitted(PathSameChain)
	c.RecordSendFailure("quote")
	c.RecordTerminal("COMPLETED", 90*time.Second)
	c.RecordRetry()
	c.RecordPoll("PENDING")
	c.RecordPollError()
	c.RecordQuote(200*time.Millisecond, nil)
	c.RecordQuote(time.Second, errors.New("no route"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tipsSubmitted.WithLabelValues(PathCrossChain)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tipsSubmitted.WithLabelValues(PathSameChain)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sendFailures.WithLabelValues("quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tipsTerminal.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollResults.WithLabelValues("PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollErrors))
}

func TestCollector_ActiveMonitors(t *testing.T) {
	c := NewCollector("")

	c.MonitorStarted()
	c.MonitorStarted()
	c.MonitorStopped()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeMonitors))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordTipSubmitted(PathCrossChain)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_settlement_submitted_total{path="cross_chain"} 1`)
}
