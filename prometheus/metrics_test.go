package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/suteetoe/tradeflow/pkg/config"
)

func TestRecordHelpersBeforeInitAreNoops(t *testing.T) {
	assert.NotPanics(t, func() {
		TrackDBOperation("query")(time.Now())
		RecordQuoteTransition("accepted", 1)
		TrackExtraction()("completed")
		RecordUpstreamCall("carrier", 200, time.Now())
	})
}

func TestRecordHelpersAfterInit(t *testing.T) {
	InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "tradeflow_test"}})

	RecordQuoteTransition("rejected", 3)
	RecordQuoteTransition("rejected", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(QuoteTransitionsCounter.WithLabelValues("rejected")))

	done := TrackExtraction()
	assert.Equal(t, 1.0, testutil.ToFloat64(ExtractionInFlight))
	done("failed")
	assert.Equal(t, 0.0, testutil.ToFloat64(ExtractionInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(ExtractionJobsCounter.WithLabelValues("failed")))

	RecordUpstreamCall("customs", 502, time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(UpstreamCallsCounter.WithLabelValues("customs", "502")))
}
