package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordItem(t *testing.T) {
	before := testutil.ToFloat64(ItemsProcessedTotal.WithLabelValues("import", "imported"))
	RecordItem("import", "imported")
	assert.Equal(t, before+1, testutil.ToFloat64(ItemsProcessedTotal.WithLabelValues("import", "imported")))
}

func TestRecordOutboundRequest(t *testing.T) {
	before := testutil.ToFloat64(OutboundRequestsTotal.WithLabelValues("places", "2xx"))
	RecordOutboundRequest("places", "2xx", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(OutboundRequestsTotal.WithLabelValues("places", "2xx")))
}
