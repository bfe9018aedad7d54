package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSyncRun(t *testing.T) {
	before := testutil.ToFloat64(SyncRuns.WithLabelValues("manual", "partial"))
	failedBefore := testutil.ToFloat64(SyncItems.WithLabelValues("failed"))

	RecordSyncRun("manual", "partial", 3, 1, 1)

	assert.Equal(t, before+1, testutil.ToFloat64(SyncRuns.WithLabelValues("manual", "partial")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(SyncItems.WithLabelValues("failed")))
}

func TestObserveProviderCallLabelsResult(t *testing.T) {
	var err error = errors.New("boom")
	ObserveProviderCall("forms.create", time.Now(), &err)
	var ok error
	ObserveProviderCall("forms.create", time.Now(), &ok)

	assert.Equal(t, 2, testutil.CollectAndCount(ProviderCalls))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
